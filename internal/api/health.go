package api

import (
	"context"
	"net/http"
	"time"

	"github.com/kjannette/cryptodash/internal/scheduler"
)

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Uptime    string            `json:"uptime,omitempty"`
	Polled    map[string]string `json:"polled,omitempty"`
}

// handleHealth always answers 200; a failing dependency degrades the
// status instead.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string, len(s.checks)),
	}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.logger.Warn("health check failed", "service", name, "err", err)
			resp.Services[name] = "down"
			resp.Status = "degraded"
			continue
		}
		resp.Services[name] = "ok"
	}
	if s.wallet != nil {
		resp.Uptime = s.wallet.Uptime().Round(time.Second).String()
	}
	if s.board != nil {
		resp.Polled = make(map[string]string)
		for _, job := range []string{scheduler.JobPrices, scheduler.JobGlobal, scheduler.JobTrending} {
			if at := s.board.UpdatedAt(job); !at.IsZero() {
				resp.Polled[job] = at.UTC().Format(time.RFC3339)
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
