package api

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/gate"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/pipeline"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/sources"
)

// handleScrape starts a sweep in the background and answers 202. Only one
// manual sweep runs at a time; a second request gets 409.
func (s *Server) handleScrape() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("categoria")))
		if category != "" && !slices.Contains(sources.Categories(), category) {
			respondError(w, http.StatusBadRequest, "unknown categoria: "+category)
			return
		}
		if !s.sweeping.CompareAndSwap(false, true) {
			respondError(w, http.StatusConflict, "a sweep is already running")
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.sweeping.Store(false)
			s.runSweep(s.base, category)
		}()

		resp := map[string]string{"status": "started"}
		if category != "" {
			resp["categoria"] = category
		}
		respondJSON(w, http.StatusAccepted, resp)
	}
}

func (s *Server) runSweep(ctx context.Context, category string) {
	var report *pipeline.SweepReport
	if category == "" {
		report = s.sweeper.RunFullSweep(ctx)
	} else {
		var err error
		report, err = s.sweeper.RunSweepForCategory(ctx, category)
		if err != nil {
			s.logger.Warn("manual sweep rejected", zap.String("category", category), zap.Error(err))
			return
		}
	}
	s.logger.Info("manual sweep finished",
		zap.String("run_id", report.RunID),
		zap.String("category", category),
		zap.Int("inserted", report.Total(gate.Inserted)),
		zap.Int("failures", report.Failures()),
	)
}
