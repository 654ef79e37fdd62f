package api

import (
	"github.com/exposure-scanner/autoscan/internal/history"
	"github.com/exposure-scanner/autoscan/internal/scheduler"
	"github.com/exposure-scanner/autoscan/internal/sites"
	"github.com/exposure-scanner/autoscan/internal/threats"
)

// ThreatScanResponse is returned by a threat scan. ReportID is set only when
// the report was stored.
type ThreatScanResponse struct {
	ReportID          string            `json:"report_id,omitempty"`
	Threats           []threats.Threat  `json:"threats"`
	Stats             threats.ScanStats `json:"stats"`
	IsTrialSimulation bool              `json:"is_trial_simulation"`
}

// SitesResponse lists the broker catalog.
type SitesResponse struct {
	Sites []sites.Site `json:"sites"`
	Total int          `json:"total"`
}

// ResultsResponse lists recent per-site results, newest first.
type ResultsResponse struct {
	Results []scheduler.ScanResult `json:"results"`
	Count   int                    `json:"count"`
}

// CyclesResponse lists recorded cycles, newest first.
type CyclesResponse struct {
	Cycles []history.CycleRecord `json:"cycles"`
	Count  int                   `json:"count"`
}
