package engine

import "time"

// IndexStats contains dashboard-level figures computed from the index.
type IndexStats struct {
	TotalEntries int            `json:"totalEntries"`
	Files        int            `json:"files"`
	Users        int            `json:"users"`
	DiskUsage    int64          `json:"diskUsage"` // bytes
	LevelDist    map[string]int `json:"levelDist"`
	TopCompanies map[string]int `json:"topCompanies"`
	TopEvents    map[string]int `json:"topEvents"`
	Newest       string         `json:"newest,omitempty"`
	Oldest       string         `json:"oldest,omitempty"`
	RebuiltAt    time.Time      `json:"rebuiltAt"`
}

// Stats aggregates the current snapshot.
func (ix *Index) Stats() IndexStats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	stats := IndexStats{
		TotalEntries: len(ix.entries),
		Files:        ix.files,
		LevelDist:    make(map[string]int),
		TopCompanies: make(map[string]int),
		TopEvents:    make(map[string]int),
		RebuiltAt:    ix.rebuiltAt,
	}

	users := make(map[string]struct{})
	for i, e := range ix.entries {
		lvl := string(e.Level)
		if lvl == "" {
			lvl = "unknown"
		}
		stats.LevelDist[lvl]++
		stats.TopCompanies[e.CompanyID]++
		stats.TopEvents[e.Event]++
		users[e.CompanyID+"\x00"+e.UserName] = struct{}{}

		if ix.times[i].IsZero() {
			continue
		}
		// entries are sorted newest first with unparseable timestamps last
		if stats.Newest == "" {
			stats.Newest = e.Timestamp
		}
		stats.Oldest = e.Timestamp
	}
	stats.Users = len(users)
	return stats
}

// Stats returns index statistics plus the current disk usage.
func (e *Engine) Stats() IndexStats {
	stats := e.index.Stats()
	stats.DiskUsage = e.store.DiskUsage()
	return stats
}
