package handlers

import (
	"net/http"

	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/database"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse is the read-only kiosk configuration
type ConfigResponse struct {
	Site             *SiteInfo `json:"site,omitempty"`
	Threshold        float64   `json:"threshold"`
	Policy           string    `json:"policy"`
	DescriptorDim    int       `json:"descriptor_dim"`
	CooldownMS       int64     `json:"cooldown_ms"`
	SampleIntervalMS int64     `json:"sample_interval_ms"`
	FixedLocation    bool      `json:"fixed_location"`
	Backends         []string  `json:"backends"`
	Ledger           bool      `json:"ledger"`
	Events           bool      `json:"events"`
	Cache            bool      `json:"cache"`
}

// SiteInfo describes the reference site
type SiteInfo struct {
	Name         string  `json:"name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radius_meters"`
}

// Get returns the active configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	backends := database.Backends()
	if backends == nil {
		backends = []string{}
	}

	response := ConfigResponse{
		Threshold:        h.config.Matching.Threshold,
		Policy:           h.config.Matching.Policy,
		DescriptorDim:    h.config.Matching.Dim,
		CooldownMS:       h.config.Kiosk.Cooldown.Milliseconds(),
		SampleIntervalMS: h.config.Kiosk.SampleInterval.Milliseconds(),
		FixedLocation:    h.config.Kiosk.HasFixedLocation(),
		Backends:         backends,
		Ledger:           h.config.Ledger.URL != "",
		Events:           h.config.NATS.URL != "",
		Cache:            h.config.Valkey.Addr != "",
	}

	if site, err := h.config.ReferenceSite(); err == nil {
		response.Site = &SiteInfo{
			Name:         site.Name,
			Latitude:     site.Latitude,
			Longitude:    site.Longitude,
			RadiusMeters: site.RadiusMeters,
		}
	}

	respondJSON(w, http.StatusOK, response)
}
