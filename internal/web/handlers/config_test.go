package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Kiosk:    config.KioskConfig{SiteName: "headquarters", Cooldown: 3 * time.Second, SampleInterval: 100 * time.Millisecond},
		Matching: config.MatchingConfig{Threshold: 0.55, Policy: "first", Dim: 128},
		Sites: config.SitesConfig{Sites: map[string]config.SiteConfig{
			"headquarters": {Latitude: 13.374875, Longitude: 103.842436, RadiusMeters: 100},
		}},
	}
}

func TestConfigHandler_Get(t *testing.T) {
	handler := NewConfigHandler(testConfig())

	recorder := httptest.NewRecorder()
	handler.Get(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp ConfigResponse
	parseJSONResponse(t, recorder, &resp)

	if resp.Site == nil || resp.Site.Name != "headquarters" || resp.Site.RadiusMeters != 100 {
		t.Errorf("unexpected site %+v", resp.Site)
	}
	if resp.Threshold != 0.55 || resp.Policy != "first" || resp.DescriptorDim != 128 {
		t.Errorf("unexpected matching config %+v", resp)
	}
	if resp.CooldownMS != 3000 || resp.SampleIntervalMS != 100 {
		t.Errorf("unexpected timings %d/%d", resp.CooldownMS, resp.SampleIntervalMS)
	}
	if resp.FixedLocation || resp.Ledger || resp.Events || resp.Cache {
		t.Errorf("expected optional integrations off, got %+v", resp)
	}
	if resp.Backends == nil {
		t.Error("expected backends to encode as an empty list")
	}
}

func TestConfigHandler_Get_UnknownSite(t *testing.T) {
	cfg := testConfig()
	cfg.Kiosk.SiteName = "warehouse"
	lat, lng := 13.0, 103.0
	cfg.Kiosk.Latitude, cfg.Kiosk.Longitude = &lat, &lng
	cfg.NATS.URL = "nats://localhost:4222"

	recorder := httptest.NewRecorder()
	NewConfigHandler(cfg).Get(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))

	var resp ConfigResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Site != nil {
		t.Errorf("expected no site, got %+v", resp.Site)
	}
	if !resp.FixedLocation || !resp.Events {
		t.Errorf("expected fixed location and events, got %+v", resp)
	}
}
