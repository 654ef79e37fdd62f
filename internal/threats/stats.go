package threats

// ScanStats aggregates a threat list for display.
type ScanStats struct {
	Total               int                `json:"total"`
	HighRisk            int                `json:"high_risk"`
	MediumRisk          int                `json:"medium_risk"`
	LowRisk             int                `json:"low_risk"`
	ByCategory          map[Category]int   `json:"by_category"`
	ByRemovalDifficulty map[Difficulty]int `json:"by_removal_difficulty"`
}

// CalculateScanStats counts threats by risk band, category and removal
// difficulty. Critical severity folds into HighRisk; anything unrecognised
// counts as low risk so the bands always sum to Total.
func CalculateScanStats(threats []Threat) ScanStats {
	stats := ScanStats{
		Total:               len(threats),
		ByCategory:          make(map[Category]int),
		ByRemovalDifficulty: make(map[Difficulty]int),
	}

	for _, t := range threats {
		switch t.Severity {
		case SeverityHigh, SeverityCritical:
			stats.HighRisk++
		case SeverityMedium:
			stats.MediumRisk++
		default:
			stats.LowRisk++
		}
		stats.ByCategory[t.SiteCategory]++
		stats.ByRemovalDifficulty[t.RemovalDifficulty]++
	}

	return stats
}
