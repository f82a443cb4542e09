package api

import (
	"net/http"
	"time"

	"github.com/alishhde/Couriers-Planning-Problem/internal/buildinfo"
	"github.com/alishhde/Couriers-Planning-Problem/internal/sysinfo"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build":  buildinfo.Info(),
		"host":   sysinfo.Current(),
		"time":   time.Now().UTC().Format(time.RFC3339),
		"config": s.Settings,
	}
	if s.Pipeline != nil {
		cfg := s.Pipeline.Config()
		info["pipeline"] = map[string]any{
			"dznDir":        cfg.DznDir,
			"modelsDir":     cfg.ModelsDir,
			"budgetSec":     int(cfg.Budget.Seconds()),
			"defaultSolver": cfg.DefaultSolver,
		}
	}
	writeJSON(w, http.StatusOK, info)
}
