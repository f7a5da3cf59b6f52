package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/maraichr/reviewlens/pkg/apierr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeAPIError answers with e's status and code, tagged with the chi
// request id. Server-side failures are logged with their cause, which is
// never sent to the client.
func writeAPIError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, e *apierr.Error) {
	reqID := chimw.GetReqID(r.Context())
	if e.Status() >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed",
			slog.String("code", string(e.Code())),
			slog.String("path", r.URL.Path),
			slog.String("request_id", reqID),
			slog.String("error", e.Error()))
	}
	writeJSON(w, e.Status(), e.Response(reqID))
}
