package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/taskmate/pkg/logger"
)

type healthResponse struct {
	Status     string `json:"status"`
	Timestamp  string `json:"timestamp"`
	InstanceID string `json:"instance_id,omitempty"`
}

// HealthHandler serves liveness and readiness probes. With no dependency
// probes it always reports ok; with probes it runs each and reports 503 on
// the first failure. The instance id identifies the replica in a fleet.
func HealthHandler(log *slog.Logger, instanceID string, probes ...func(context.Context) error) http.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		resp := healthResponse{
			Status:     "ok",
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			InstanceID: instanceID,
		}

		status := http.StatusOK
		for _, probe := range probes {
			if err := probe(ctx); err != nil {
				log.ErrorContext(ctx, "readiness probe failed",
					logger.Error(err),
					logger.Component("healthcheck"),
				)
				resp.Status = "unavailable"
				status = http.StatusServiceUnavailable
				break
			}
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
