package observability

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
)

// readinessReport is the body of the readiness probe.
type readinessReport struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

// liveness responds with 200 OK while the process can serve HTTP.
func (s *Server) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness runs every checker in parallel and answers 200 only if all pass.
// The whole probe is bounded by Timeout and each check by CheckTimeout.
func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	results := make([]error, len(s.checkers))
	var wg sync.WaitGroup
	for i, c := range s.checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.check(ctx, c)
		}()
	}
	wg.Wait()

	report := readinessReport{Status: "up", Components: make(map[string]string, len(s.checkers))}
	for i, c := range s.checkers {
		if err := results[i]; err != nil {
			s.logger.Warn("readiness check failed",
				slog.String("component", c.Name()),
				slog.Any("error", err),
			)
			report.Components[c.Name()] = "down: " + err.Error()
			report.Status = "down"
			continue
		}
		report.Components[c.Name()] = "up"
	}

	status := http.StatusOK
	if report.Status != "up" {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(report)
}

func (s *Server) check(ctx context.Context, c Checker) error {
	if s.cfg.CheckTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CheckTimeout)
		defer cancel()
	}
	return c.Check(ctx)
}
