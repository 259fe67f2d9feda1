package api

import (
	"fmt"
	"net/http"

	service "github.com/okian/triagebooth/internal/app"
	"github.com/okian/triagebooth/internal/domain/model"
	"github.com/okian/triagebooth/internal/domain/types"
)

// GameHandler serves the booth session endpoints.
type GameHandler struct {
	engine Engine
}

// NewGameHandler creates a new game handler.
func NewGameHandler(engine Engine) *GameHandler {
	return &GameHandler{engine: engine}
}

type scenarioResponse struct {
	OK      bool           `json:"ok"`
	Session *model.Session `json:"session"`
}

type operatorResponse struct {
	OK           bool       `json:"ok"`
	OperatorName string     `json:"operatorName"`
	OperatorMode model.Mode `json:"operatorMode"`
}

type scanResponse struct {
	OK           bool                      `json:"ok"`
	Part         model.VitalKey            `json:"part"`
	TotalScanned int                       `json:"totalScanned"`
	Total        int                       `json:"total"`
	Message      string                    `json:"message"`
	Vital        types.VitalScannedPayload `json:"vital"`
}

type decisionResponse struct {
	OK          bool                   `json:"ok"`
	Result      *model.Result          `json:"result"`
	Leaderboard []types.LeaderboardRow `json:"leaderboard"`
}

// HandleState handles GET /api/state requests.
func (h *GameHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Snapshot(r.Context()))
}

// HandleScenario handles POST /api/scenario requests. It starts a session.
func (h *GameHandler) HandleScenario(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req types.StartPayload
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, types.CodeMalformed, err)
		return
	}

	name, mode := req.Operator()
	s, err := h.engine.StartSession(r.Context(), name, mode, req.ScenarioID)
	if err != nil {
		text, code := service.Describe(err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: text, Code: code, Message: text})
		return
	}
	writeJSON(w, http.StatusOK, scenarioResponse{OK: true, Session: s})
}

// HandleOperator handles POST /api/operator requests.
func (h *GameHandler) HandleOperator(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req types.OperatorPayload
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, types.CodeMalformed, err)
		return
	}

	op := h.engine.SetOperator(r.Context(), req.Name, req.Mode)
	writeJSON(w, http.StatusOK, operatorResponse{OK: true, OperatorName: op.Name, OperatorMode: op.Mode})
}

// HandleScan handles POST /api/scan requests. An operator in the body is set
// before the scan. Rejected scans answer 200 with ok false, as phones show the
// message rather than an HTTP error.
func (h *GameHandler) HandleScan(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req types.ScanPayload
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, types.CodeMalformed, err)
		return
	}

	if req.Operator != nil {
		h.engine.SetOperator(r.Context(), req.Operator.Name, req.Operator.Mode)
	}
	v, err := h.engine.Scan(r.Context(), req.Raw())
	if err != nil {
		text, code := service.Describe(err)
		writeJSON(w, http.StatusOK, errorResponse{Code: code, Message: text})
		return
	}
	writeJSON(w, http.StatusOK, scanResponse{
		OK:           true,
		Part:         v.Key,
		TotalScanned: v.Count,
		Total:        v.Total,
		Message:      fmt.Sprintf("%s tag received. (%d/%d vitals)", v.Label, v.Count, v.Total),
		Vital:        v,
	})
}

// HandleDecision handles POST /api/decision requests.
func (h *GameHandler) HandleDecision(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req types.DecisionPayload
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, types.CodeMalformed, err)
		return
	}

	res, ok := h.engine.Submit(r.Context(), req.Decision())
	if !ok {
		writeJSON(w, http.StatusOK, errorResponse{Code: "ignored", Message: ErrNoDecision.Error()})
		return
	}
	writeJSON(w, http.StatusOK, decisionResponse{
		OK:          true,
		Result:      res,
		Leaderboard: h.engine.Leaderboard(r.Context()),
	})
}

// HandleReset handles POST /api/reset requests. The leaderboard is kept.
func (h *GameHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	h.engine.Reset(r.Context())
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// HandleResetLeaderboard handles POST /api/reset-leaderboard requests.
func (h *GameHandler) HandleResetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	h.engine.ResetLeaderboard(r.Context())
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
