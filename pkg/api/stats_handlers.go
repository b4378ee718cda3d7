package api

import (
	"net/http"

	"github.com/Cheegro/milledright-timber-web/pkg/httputil"
	"github.com/Cheegro/milledright-timber-web/pkg/stats"
)

const maxWindowDays = 365

// getStatistics handles GET /api/v1/stats?days=30
func (s *Server) getStatistics(w http.ResponseWriter, r *http.Request) {
	days, err := httputil.ParseQueryInt(r, "days", stats.DefaultWindowDays)
	if err != nil || days < 0 || days > maxWindowDays {
		httputil.WriteBadRequest(w, "days must be an integer between 1 and 365")
		return
	}

	result := s.stats.ComputeStatistics(r.Context(), days)
	httputil.WriteSuccess(w, result)
}

// getRecentActivity handles GET /api/v1/stats/recent?limit=20
func (s *Server) getRecentActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", stats.DefaultRecentLimit)
	if err != nil || limit < 0 || limit > 200 {
		httputil.WriteBadRequest(w, "limit must be an integer between 1 and 200")
		return
	}

	feed := s.stats.RecentActivity(r.Context(), limit)
	httputil.WriteSuccess(w, feed)
}
