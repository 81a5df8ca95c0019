package server

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"squad-planner/internal/auth"
	"squad-planner/internal/constants"
	"squad-planner/internal/derive"
	"squad-planner/internal/domain"

	"github.com/gorilla/mux"
)

type submitTextRequest struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

type updateFieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type renameRequest struct {
	Name string `json:"name"`
}

type countRequest struct {
	Count int `json:"count"`
}

type playerResponse struct {
	Name string `json:"name"`
	*domain.Player
}

type formationRowResponse struct {
	domain.FormationRow
	March string `json:"march"`
}

type formationResponse struct {
	Role     domain.Role              `json:"role"`
	Slot     domain.Slot              `json:"slot"`
	Settings domain.FormationSettings `json:"settings"`
	Rows     []formationRowResponse   `json:"rows"`
}

func toPlayerResponse(p *domain.Player) playerResponse {
	return playerResponse{Name: p.Name, Player: p}
}

func (s *PlannerServer) listPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := s.players.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]playerResponse, len(players))
	for i := range players {
		out[i] = toPlayerResponse(&players[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *PlannerServer) getPlayer(w http.ResponseWriter, r *http.Request) {
	player, err := s.players.Get(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlayerResponse(player))
}

// submitPlayer accepts either a multipart form with a name field and one or
// more image files, or a JSON body with already recognized text.
func (s *PlannerServer) submitPlayer(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFrom(r.Context())

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		name, images, err := readImages(w, r, "images")
		if err != nil {
			writeError(w, r, err)
			return
		}
		player, err := s.players.Submit(r.Context(), actor, name, images)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.notify(r, EventPlayerSaved, player.Name)
		writeJSON(w, http.StatusCreated, toPlayerResponse(player))
		return
	}

	var req submitTextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	player, err := s.players.SubmitText(r.Context(), actor, req.Name, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.notify(r, EventPlayerSaved, player.Name)
	writeJSON(w, http.StatusCreated, toPlayerResponse(player))
}

func readImages(w http.ResponseWriter, r *http.Request, field string) (string, [][]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadBytes)
	if err := r.ParseMultipartForm(constants.MaxUploadBytes); err != nil {
		return "", nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}

	var images [][]byte
	for _, fh := range r.MultipartForm.File[field] {
		f, err := fh.Open()
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		b, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		images = append(images, b)
	}
	return r.FormValue("name"), images, nil
}

func (s *PlannerServer) updatePlayer(w http.ResponseWriter, r *http.Request) {
	var req updateFieldRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Field) == "" {
		writeError(w, r, fmt.Errorf("%w: field is required", errBadRequest))
		return
	}

	player, err := s.players.UpdateField(r.Context(), auth.ActorFrom(r.Context()), mux.Vars(r)["name"], req.Field, req.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.notify(r, EventPlayerSaved, player.Name)
	writeJSON(w, http.StatusOK, toPlayerResponse(player))
}

func (s *PlannerServer) renamePlayer(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.players.Rename(r.Context(), auth.ActorFrom(r.Context()), mux.Vars(r)["name"], req.Name); err != nil {
		writeError(w, r, err)
		return
	}
	s.notify(r, EventPlayerRenamed, strings.TrimSpace(req.Name))

	player, err := s.players.Get(r.Context(), strings.TrimSpace(req.Name))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlayerResponse(player))
}

func (s *PlannerServer) deletePlayer(w http.ResponseWriter, r *http.Request) {
	if err := s.players.Delete(r.Context(), auth.ActorFrom(r.Context()), mux.Vars(r)["name"]); err != nil {
		writeError(w, r, err)
		return
	}
	s.notify(r, EventPlayerDeleted, mux.Vars(r)["name"])
	w.WriteHeader(http.StatusNoContent)
}

func (s *PlannerServer) exportPlayers(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	if err := s.players.ExportTSV(r.Context(), &b); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/tab-separated-values; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, b.String())
}

func (s *PlannerServer) getThresholds(w http.ResponseWriter, r *http.Request) {
	rules, err := s.settings.Thresholds(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *PlannerServer) putThresholds(w http.ResponseWriter, r *http.Request) {
	var rules []domain.ThresholdRule
	if err := decodeJSON(r, &rules); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.settings.UpdateThresholds(r.Context(), auth.ActorFrom(r.Context()), rules); err != nil {
		writeError(w, r, err)
		return
	}
	s.notify(r, EventThresholdsSaved, "")
	writeJSON(w, http.StatusOK, rules)
}

func (s *PlannerServer) getAtlantis(w http.ResponseWriter, r *http.Request) {
	options, err := s.settings.AtlantisOptions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, options)
}

func (s *PlannerServer) putAtlantis(w http.ResponseWriter, r *http.Request) {
	var options []domain.AtlantisOption
	if err := decodeJSON(r, &options); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.settings.SetAtlantisOptions(r.Context(), auth.ActorFrom(r.Context()), options); err != nil {
		writeError(w, r, err)
		return
	}
	s.notify(r, EventAtlantisSaved, "")
	s.getAtlantis(w, r)
}

func (s *PlannerServer) getTiers(w http.ResponseWriter, r *http.Request) {
	views, err := s.tiers.Recompute(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *PlannerServer) getPublishedTiers(w http.ResponseWriter, r *http.Request) {
	snap, err := s.tiers.Latest(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *PlannerServer) publishTiers(w http.ResponseWriter, r *http.Request) {
	snap, err := s.tiers.Publish(r.Context(), auth.ActorFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.notify(r, EventTiersPublished, snap.Revision)
	writeJSON(w, http.StatusCreated, snap)
}

// formationTarget reads role and slot path variables. Unknown values are
// passed through so the service reports them.
func formationTarget(r *http.Request) (domain.Role, domain.Slot) {
	vars := mux.Vars(r)
	role, ok := domain.ParseRole(vars["role"])
	if !ok {
		role = domain.Role(vars["role"])
	}
	slot, ok := domain.ParseSlot(vars["slot"])
	if !ok {
		slot = domain.Slot(vars["slot"])
	}
	return role, slot
}

func (s *PlannerServer) getFormationSettings(w http.ResponseWriter, r *http.Request) {
	role, slot := formationTarget(r)
	settings, err := s.formations.Settings(r.Context(), role, slot)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *PlannerServer) putFormationSettings(w http.ResponseWriter, r *http.Request) {
	role, slot := formationTarget(r)
	var settings domain.FormationSettings
	if err := decodeJSON(r, &settings); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.formations.SaveSettings(r.Context(), auth.ActorFrom(r.Context()), role, slot, settings); err != nil {
		writeError(w, r, err)
		return
	}
	s.notify(r, EventFormationSettings, string(role)+"_"+string(slot))
	writeJSON(w, http.StatusOK, settings)
}

func (s *PlannerServer) getFormation(w http.ResponseWriter, r *http.Request) {
	role, slot := formationTarget(r)
	rows, err := s.formations.Load(r.Context(), role, slot)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeFormation(w, r, role, slot, rows)
}

func (s *PlannerServer) putFormationCount(w http.ResponseWriter, r *http.Request) {
	role, slot := formationTarget(r)
	var req countRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	rows, err := s.formations.SetCount(r.Context(), auth.ActorFrom(r.Context()), role, slot, mux.Vars(r)["group"], req.Count)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.notify(r, EventFormationCounts, string(role)+"_"+string(slot))
	s.writeFormation(w, r, role, slot, rows)
}

func (s *PlannerServer) writeFormation(w http.ResponseWriter, r *http.Request, role domain.Role, slot domain.Slot, rows []domain.FormationRow) {
	settings, err := s.formations.Settings(r.Context(), role, slot)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := formationResponse{
		Role:     role,
		Slot:     slot,
		Settings: settings,
		Rows:     make([]formationRowResponse, len(rows)),
	}
	for i, row := range rows {
		resp.Rows[i] = formationRowResponse{FormationRow: row, March: derive.MarchText(row)}
	}
	writeJSON(w, http.StatusOK, resp)
}

// recognize runs text detection on one uploaded image, sent either as the
// "image" field of a multipart form or as the raw request body.
func (s *PlannerServer) recognize(w http.ResponseWriter, r *http.Request) {
	if err := s.checker.AssertPrivileged(auth.ActorFrom(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}

	var image []byte
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		_, images, err := readImages(w, r, "image")
		if err != nil {
			writeError(w, r, err)
			return
		}
		if len(images) > 0 {
			image = images[0]
		}
	} else {
		b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, constants.MaxUploadBytes))
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		image = b
	}
	if len(image) == 0 {
		writeError(w, r, fmt.Errorf("%w: empty image", errBadRequest))
		return
	}

	text, err := s.ocr.Recognize(r.Context(), image)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}
