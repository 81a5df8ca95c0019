package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"squad-planner/internal/auth"
	"squad-planner/internal/config"
	"squad-planner/internal/database"
	"squad-planner/internal/db"
	"squad-planner/internal/derive"
	"squad-planner/internal/domain"
	"squad-planner/internal/middleware"
	"squad-planner/internal/repository"
	"squad-planner/internal/service"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminEmail = "admin@example.com"

type stubRecognizer map[string]string

func (s stubRecognizer) Recognize(_ context.Context, image []byte) (string, error) {
	if text, ok := s[string(image)]; ok {
		return text, nil
	}
	return "", errors.New("unreadable image")
}

func newTestHandler(t *testing.T, rec stubRecognizer) http.Handler {
	t.Helper()

	logger := zerolog.Nop()
	sqlDB, err := database.New(&config.Config{DBPath: filepath.Join(t.TempDir(), "planner.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	store := repository.NewDocumentStore(sqlDB, db.New(sqlDB), logger)
	playerRepo := repository.NewPlayerRepository(store, logger)
	settingsRepo := repository.NewSettingsRepository(store, logger)

	seed := config.DefaultSeed()
	checker := auth.NewChecker([]string{adminEmail}, logger)
	ocr := service.NewOCRService(rec, logger)
	settings := service.NewSettingsService(settingsRepo, checker, seed, logger)
	tiers := service.NewTierService(playerRepo, settings, repository.NewSnapshotRepository(store, logger), checker, logger)
	hub := NewHub(logger)
	t.Cleanup(hub.Close)

	srv := NewPlannerServer(
		service.NewPlayerService(playerRepo, ocr, checker, derive.NewCalculator(seed.RolePrefixes), seed, logger),
		settings,
		tiers,
		service.NewFormationService(settingsRepo, repository.NewFormationRepository(store, logger), tiers, checker, seed, logger),
		ocr,
		checker,
		hub,
	)
	return middleware.RequestID(logger)(srv.Routes())
}

func do(t *testing.T, h http.Handler, method, path, actor string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(middleware.ActorHeader, actor)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const aliceText = "Troop Attack 100000\nTroop Attack Blessing 10\nArcher Damage 50%\nCavalry Damage 20%"

func TestPlayerEndpoints(t *testing.T) {
	h := newTestHandler(t, stubRecognizer{})

	rec := do(t, h, http.MethodPost, "/api/players", "", submitTextRequest{Name: "alice", Text: aliceText})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/players", adminEmail, submitTextRequest{Name: "alice", Text: aliceText})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Name        string             `json:"name"`
		FinalDamage map[string]float64 `json:"final_damage"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "alice", created.Name)
	assert.Equal(t, 67.0, created.FinalDamage["archer"])

	rec = do(t, h, http.MethodGet, "/api/players/alice", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/players/nobody", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPatch, "/api/players/alice", adminEmail, updateFieldRequest{Field: "Multiplier", Value: "2"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"archer":134`)

	rec = do(t, h, http.MethodPatch, "/api/players/alice", adminEmail, updateFieldRequest{Field: "Average Damage", Value: "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/players", adminEmail, submitTextRequest{Name: "bob", Text: aliceText})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/players/alice/rename", adminEmail, renameRequest{Name: "bob"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/players/alice/rename", adminEmail, renameRequest{Name: "ally"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"ally"`)

	rec = do(t, h, http.MethodGet, "/api/players/export", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/tab-separated-values"))
	assert.Len(t, strings.Split(strings.TrimSpace(rec.Body.String()), "\n"), 3)

	rec = do(t, h, http.MethodDelete, "/api/players/ally", adminEmail, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/players", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "bob", list[0]["name"])
}

func TestSubmitScreenshots(t *testing.T) {
	h := newTestHandler(t, stubRecognizer{"png-1": aliceText})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("name", "carol"))
	part, err := mw.CreateFormFile("images", "stats.png")
	require.NoError(t, err)
	part.Write([]byte("png-1"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/players", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(middleware.ActorHeader, adminEmail)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"name":"carol"`)
}

func TestRecognizeEndpoint(t *testing.T) {
	h := newTestHandler(t, stubRecognizer{"raw-image": "Lethal Hit Rate 5%"})

	req := httptest.NewRequest(http.MethodPost, "/api/ocr", strings.NewReader("raw-image"))
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set(middleware.ActorHeader, adminEmail)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"text":"Lethal Hit Rate 5%"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/ocr", strings.NewReader("raw-image"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSettingsAndTiers(t *testing.T) {
	h := newTestHandler(t, stubRecognizer{})

	rules := []domain.ThresholdRule{{Limit: 50, Color: "blue", Name: "Blue"}}
	rec := do(t, h, http.MethodPut, "/api/settings/thresholds", "viewer@example.com", rules)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/settings/thresholds", adminEmail, rules)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/settings/thresholds", adminEmail, []domain.ThresholdRule{{Limit: 1}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/settings/thresholds", adminEmail, []domain.ThresholdRule{
		{Limit: 10, Color: "red", Name: "Top"},
		{Limit: 20, Color: "blue", Name: "Top"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/settings/atlantis", adminEmail, []domain.AtlantisOption{{Label: "Lv 2", Value: 20}, {Label: "None", Value: 0}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"label":"None","value":0},{"label":"Lv 2","value":20}]`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/players", adminEmail, submitTextRequest{Name: "alice", Text: aliceText})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/tiers", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var views map[string][]derive.TierBucket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views["archer"], 2)
	assert.Equal(t, "Blue", views["archer"][0].Tier.Name)
	assert.Equal(t, 67.0, views["archer"][0].AvgScore)

	rec = do(t, h, http.MethodGet, "/api/tiers/published", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/tiers/publish", adminEmail, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/tiers/published", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"revision"`)
}

func TestFormationEndpoints(t *testing.T) {
	h := newTestHandler(t, stubRecognizer{})

	rec := do(t, h, http.MethodPut, "/api/settings/thresholds", adminEmail, []domain.ThresholdRule{{Limit: 50, Color: "blue", Name: "Blue"}})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/players", adminEmail, submitTextRequest{Name: "alice", Text: aliceText})
	require.Equal(t, http.StatusCreated, rec.Code)

	settings := domain.FormationSettings{Archers: 40000, T10: 25, T9: 25, T8: 20, T7: 20, T6: 10}
	rec = do(t, h, http.MethodPut, "/api/formations/archer/tower/settings", adminEmail, settings)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/formations/archer/tower", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp formationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Rows, 2)
	assert.Equal(t, 40000.0, resp.Rows[0].Troops)
	assert.Equal(t, "Blue - 10k - 10k - 8k - 8k - 4k", resp.Rows[0].March)

	rec = do(t, h, http.MethodPut, "/api/formations/archer/tower/groups/Blue", adminEmail, countRequest{Count: 2})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Rows[0].Count)
	assert.Equal(t, 20000.0, resp.Rows[0].Troops)

	rec = do(t, h, http.MethodPut, "/api/formations/archer/tower/groups/Blue", adminEmail, countRequest{Count: -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/formations/mage/tower", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/formations/archer/tower/groups/Gold", adminEmail, countRequest{Count: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/settings/thresholds", adminEmail, []domain.ThresholdRule{{Limit: 50, Color: "blue", Name: "settings"}})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodPut, "/api/formations/archer/tower/groups/settings", adminEmail, countRequest{Count: 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "settings", resp.Rows[0].Group)
	assert.Equal(t, 3, resp.Rows[0].Count)
}

func TestChangeFeed(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t, stubRecognizer{}))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventHello, ev.Type)

	body, err := json.Marshal(submitTextRequest{Name: "alice", Text: aliceText})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/players", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.ActorHeader, adminEmail)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventPlayerSaved, ev.Type)
	assert.Equal(t, "alice", ev.Key)
	assert.Equal(t, adminEmail, ev.From)
	assert.False(t, ev.At.IsZero())
}

func TestHubRejectsAfterClose(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ts := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer ts.Close()

	hub.Close()
	hub.Broadcast(Event{Type: EventAtlantisSaved})
	assert.Equal(t, 0, hub.Len())

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{auth.ErrForbidden, http.StatusForbidden},
		{service.ErrPlayerNotFound, http.StatusNotFound},
		{service.ErrPlayerExists, http.StatusConflict},
		{service.ErrInvalidCount, http.StatusBadRequest},
		{errBadRequest, http.StatusBadRequest},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
