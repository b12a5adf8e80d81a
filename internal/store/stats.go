package store

import (
	"turbopix/internal/metrics"
)

// LibraryStats satisfies metrics.LibraryStatsProvider: it reports the
// aggregate counts the periodic collector samples.
func (s *Store) LibraryStats() metrics.LibraryStats {
	var stats metrics.LibraryStats

	row := s.db.QueryRow(`
		SELECT
			COUNT(*) FILTER (WHERE media_type = 'image'),
			COUNT(*) FILTER (WHERE media_type = 'raw'),
			COUNT(*) FILTER (WHERE media_type = 'video'),
			COUNT(*) FILTER (WHERE is_favorite = 1)
		FROM photos
	`)
	if err := row.Scan(&stats.TotalImages, &stats.TotalRaw, &stats.TotalVideos, &stats.TotalFavorites); err != nil {
		return metrics.LibraryStats{}
	}
	return stats
}
