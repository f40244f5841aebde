package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
}

func registerLiveRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("POST /live/submit_match", handler.SubmitMatch)
	mux.HandleFunc("GET /live/watch_match", handler.WatchMatch)
	mux.HandleFunc("GET /live/watch_match/{matchID}", handler.WatchMatch)
	mux.HandleFunc("GET /live/get_match", handler.GetMatch)
}

func registerInternalRoutes(mux *http.ServeMux, handler *Handler, internalToken string) {
	mux.Handle("POST /live/finalize_match/{matchID}", RequireInternalToken(internalToken, http.HandlerFunc(handler.FinalizeMatch)))
}
