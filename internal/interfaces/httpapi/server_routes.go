package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
}

func registerPublicLeaderboardRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/contests/{contestID}/leaderboard", handler.GetLeaderboard)
	mux.HandleFunc("GET /v1/contests/{contestID}/leaderboard/stream", handler.StreamLeaderboard)
}

func registerInternalLeaderboardRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	internal := func(h http.HandlerFunc) http.Handler {
		return RequireInternalJobToken(internalJobToken, h)
	}

	mux.Handle("POST /v1/internal/contests/{contestID}/leaderboard", internal(handler.InitLeaderboard))
	mux.Handle("POST /v1/internal/contests/{contestID}/leaderboard/rebuild", internal(handler.RebuildLeaderboard))
	mux.Handle("DELETE /v1/internal/contests/{contestID}/leaderboard", internal(handler.DeleteLeaderboard))
	mux.Handle("POST /v1/internal/contests/{contestID}/scores", internal(handler.UpdateScore))
}
