package httpapi

import (
	"fmt"
	"net/http"

	"github.com/riskibarqy/contest-leaderboard/internal/usecase"
)

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetLeaderboard")
	defer span.End()

	contestID, err := contestIDFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}

	lb, ok, err := h.leaderboards.GetLeaderboard(ctx, contestID)
	if err != nil {
		h.logFailure(ctx, "get leaderboard failed", contestID, err)
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, fmt.Errorf("%w: leaderboard for contest %s is not initialized", usecase.ErrNotFound, contestID))
		return
	}

	writeSuccess(w, http.StatusOK, toLeaderboardDTO(lb))
}

func (h *Handler) InitLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.InitLeaderboard")
	defer span.End()

	contestID, err := contestIDFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req initLeaderboardRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(w, err)
		return
	}

	participants, problems := req.roster()
	lb, err := h.leaderboards.InitLeaderboard(ctx, contestID, participants, problems)
	if err != nil {
		h.logFailure(ctx, "init leaderboard failed", contestID, err)
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, toLeaderboardDTO(lb))
}

func (h *Handler) RebuildLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RebuildLeaderboard")
	defer span.End()

	contestID, err := contestIDFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}

	lb, err := h.leaderboards.RebuildLeaderboard(ctx, contestID)
	if err != nil {
		h.logFailure(ctx, "rebuild leaderboard failed", contestID, err)
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, toLeaderboardDTO(lb))
}

func (h *Handler) DeleteLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.DeleteLeaderboard")
	defer span.End()

	contestID, err := contestIDFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.leaderboards.DeleteLeaderboard(ctx, contestID); err != nil {
		h.logFailure(ctx, "delete leaderboard failed", contestID, err)
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]string{"contest_id": contestID, "status": "deleted"})
}

// UpdateScore is the manual score feed. Outcomes that leave the snapshot
// untouched still answer 200 with the outcome in the body.
func (h *Handler) UpdateScore(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.UpdateScore")
	defer span.End()

	contestID, err := contestIDFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateScoreRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.leaderboards.UpdateScore(ctx, contestID, req.UserID, req.ProblemID, *req.Score)
	if err != nil {
		h.logFailure(ctx, "update score failed", contestID, err)
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, result)
}
