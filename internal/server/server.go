package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"squad-planner/internal/auth"
	"squad-planner/internal/middleware"
	"squad-planner/internal/repository"
	"squad-planner/internal/service"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type PlannerServer struct {
	players    *service.PlayerService
	settings   *service.SettingsService
	tiers      *service.TierService
	formations *service.FormationService
	ocr        *service.OCRService
	checker    *auth.Checker
	events     *Hub
}

func NewPlannerServer(
	players *service.PlayerService,
	settings *service.SettingsService,
	tiers *service.TierService,
	formations *service.FormationService,
	ocr *service.OCRService,
	checker *auth.Checker,
	events *Hub,
) *PlannerServer {
	return &PlannerServer{
		players:    players,
		settings:   settings,
		tiers:      tiers,
		formations: formations,
		ocr:        ocr,
		checker:    checker,
		events:     events,
	}
}

// Routes builds the API router. Request ids and CORS are applied by the
// caller around the returned handler.
func (s *PlannerServer) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Actor)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/players", s.listPlayers).Methods(http.MethodGet)
	api.HandleFunc("/players", s.submitPlayer).Methods(http.MethodPost)
	api.HandleFunc("/players/export", s.exportPlayers).Methods(http.MethodGet)
	api.HandleFunc("/players/{name}", s.getPlayer).Methods(http.MethodGet)
	api.HandleFunc("/players/{name}", s.updatePlayer).Methods(http.MethodPatch)
	api.HandleFunc("/players/{name}", s.deletePlayer).Methods(http.MethodDelete)
	api.HandleFunc("/players/{name}/rename", s.renamePlayer).Methods(http.MethodPost)

	api.HandleFunc("/settings/thresholds", s.getThresholds).Methods(http.MethodGet)
	api.HandleFunc("/settings/thresholds", s.putThresholds).Methods(http.MethodPut)
	api.HandleFunc("/settings/atlantis", s.getAtlantis).Methods(http.MethodGet)
	api.HandleFunc("/settings/atlantis", s.putAtlantis).Methods(http.MethodPut)

	api.HandleFunc("/tiers", s.getTiers).Methods(http.MethodGet)
	api.HandleFunc("/tiers/published", s.getPublishedTiers).Methods(http.MethodGet)
	api.HandleFunc("/tiers/publish", s.publishTiers).Methods(http.MethodPost)

	api.HandleFunc("/formations/{role}/{slot}/settings", s.getFormationSettings).Methods(http.MethodGet)
	api.HandleFunc("/formations/{role}/{slot}/settings", s.putFormationSettings).Methods(http.MethodPut)
	api.HandleFunc("/formations/{role}/{slot}", s.getFormation).Methods(http.MethodGet)
	api.HandleFunc("/formations/{role}/{slot}/groups/{group}", s.putFormationCount).Methods(http.MethodPut)

	api.HandleFunc("/ocr", s.recognize).Methods(http.MethodPost)

	if s.events != nil {
		api.HandleFunc("/ws", s.events.ServeWS).Methods(http.MethodGet)
	}

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else {
		logger.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

var errBadRequest = errors.New("malformed request")

func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrPlayerNotFound),
		errors.Is(err, service.ErrTierNotFound),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrPlayerExists):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, service.ErrInvalidName),
		errors.Is(err, service.ErrReadOnlyField),
		errors.Is(err, service.ErrNoImages),
		errors.Is(err, service.ErrTooManyImages),
		errors.Is(err, service.ErrInvalidCount),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidSlot),
		errors.Is(err, service.ErrInvalidThreshold),
		errors.Is(err, service.ErrDuplicateTier),
		errors.Is(err, service.ErrInvalidOption),
		errors.Is(err, service.ErrInvalidSettings):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}
