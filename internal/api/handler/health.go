package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/maraichr/reviewlens/pkg/apierr"
)

// Check is one readiness dependency.
type Check struct {
	Name     string
	Ping     func(ctx context.Context) error
	NotReady func() *apierr.Error
}

type HealthHandler struct {
	logger *slog.Logger
	checks []Check
}

func NewHealthHandler(logger *slog.Logger, checks ...Check) *HealthHandler {
	return &HealthHandler{logger: logger, checks: checks}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz pings every dependency in order and reports the first one down.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	for _, c := range h.checks {
		err := c.Ping(r.Context())
		if err == nil {
			continue
		}
		if h.logger != nil {
			h.logger.Warn("readiness check failed", slog.String("check", c.Name), slog.String("error", err.Error()))
		}
		notReady := apierr.InternalError(err)
		if c.NotReady != nil {
			notReady = c.NotReady()
		}
		// Probes run every few seconds; the warning above is enough.
		writeAPIError(w, r, nil, notReady)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
