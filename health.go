package gtfslocator

import "net/http"

type bannerResponse struct {
	Service string `json:"service"`
	OK      bool   `json:"ok"`
}

type healthResponse struct {
	Status       string `json:"status"`
	CachedFeeds  int64  `json:"cached_feed_builds"`
	FeedCacheHit int64  `json:"feed_cache_hits"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, bannerResponse{Service: "gtfs-locator", OK: true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.cache.Stats()
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:       "ok",
		CachedFeeds:  stats.Builds,
		FeedCacheHit: stats.Hits,
	})
}
