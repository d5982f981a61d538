package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed sites.yaml
var sitesYAML []byte

type Config struct {
	Kiosk     KioskConfig
	Matching  MatchingConfig
	Embedding EmbeddingConfig
	Ledger    LedgerConfig
	Database  DatabaseConfig
	MariaDB   MariaDBConfig
	Valkey    ValkeyConfig
	NATS      NATSConfig
	Web       WebConfig
	Log       LogConfig
	Sites     SitesConfig
}

type KioskConfig struct {
	SiteName       string        // key into the embedded sites table (defaults to headquarters)
	DeviceID       string        // camera device identifier used by the CLI scanner
	CameraDir      string        // directory of frames for the directory camera
	CameraURL      string        // IP camera snapshot URL (e.g. http://cam.local/snapshot.jpg)
	Latitude       *float64      // fixed kiosk position, nil if the location comes from clients
	Longitude      *float64      //
	Cooldown       time.Duration // defaults to 3s
	SampleInterval time.Duration // defaults to 100ms
}

type MatchingConfig struct {
	Threshold float64 // defaults to 0.55
	Policy    string  // "first" (default) or "nearest"
	Dim       int     // defaults to 128
}

type EmbeddingConfig struct {
	URL string // defaults to http://localhost:8000
}

type LedgerConfig struct {
	URL   string // attendance API base URL (e.g. https://hr.example.com/api)
	Token string // optional bearer token
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 10)
	MaxIdleConns int    // Maximum idle connections (default 2)
}

type MariaDBConfig struct {
	DSN string // legacy employees database (e.g. kiosk:secret@tcp(mariadb:3306)/hr)
}

type ValkeyConfig struct {
	Addr string        // empty disables snapshot caching
	TTL  time.Duration // defaults to 5m
}

type NATSConfig struct {
	URL string // empty disables event publishing
}

type WebConfig struct {
	Host           string   // defaults to 0.0.0.0
	Port           int      // defaults to 8080
	AllowedOrigins []string // extra CORS origins; localhost is always allowed
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

type SitesConfig struct {
	Sites map[string]SiteConfig `yaml:"sites"`
}

type SiteConfig struct {
	Name         string  `yaml:"-"`
	Latitude     float64 `yaml:"latitude"`
	Longitude    float64 `yaml:"longitude"`
	RadiusMeters float64 `yaml:"radius_meters"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable as a time.Duration ("3s", "250ms").
// Zero is accepted so tests and demos can disable pacing.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	return defaultVal
}

// envCoordinate reads an optional coordinate; nil when unset or invalid.
func envCoordinate(key string) *float64 {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList reads a comma-separated list, dropping empty entries.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	var sites SitesConfig
	if err := yaml.Unmarshal(sitesYAML, &sites); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded sites.yaml: " + err.Error())
	}

	return &Config{
		Kiosk: KioskConfig{
			SiteName:       envString("KIOSK_SITE", constants.DefaultSiteName),
			DeviceID:       envString("KIOSK_DEVICE_ID", "kiosk-0"),
			CameraDir:      os.Getenv("KIOSK_CAMERA_DIR"),
			CameraURL:      os.Getenv("KIOSK_CAMERA_URL"),
			Latitude:       envCoordinate("KIOSK_LATITUDE"),
			Longitude:      envCoordinate("KIOSK_LONGITUDE"),
			Cooldown:       envDuration("KIOSK_COOLDOWN", constants.DefaultCooldown),
			SampleInterval: envDuration("KIOSK_SAMPLE_INTERVAL", constants.DefaultSampleInterval),
		},
		Matching: MatchingConfig{
			Threshold: envFloat("MATCH_THRESHOLD", constants.DefaultMatchThreshold),
			Policy:    strings.ToLower(envString("MATCH_POLICY", "first")),
			Dim:       envInt("DESCRIPTOR_DIM", constants.DescriptorDim),
		},
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
		},
		Ledger: LedgerConfig{
			URL:   os.Getenv("LEDGER_URL"),
			Token: os.Getenv("LEDGER_TOKEN"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 2),
		},
		MariaDB: MariaDBConfig{
			DSN: os.Getenv("MARIADB_DSN"),
		},
		Valkey: ValkeyConfig{
			Addr: os.Getenv("VALKEY_ADDR"),
			TTL:  envDuration("SNAPSHOT_CACHE_TTL", constants.DefaultSnapshotCacheTTL),
		},
		NATS: NATSConfig{
			URL: os.Getenv("NATS_URL"),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "text"),
		},
		Sites: sites,
	}
}

// ReferenceSite returns the geofence site selected by KIOSK_SITE.
func (c *Config) ReferenceSite() (SiteConfig, error) {
	site, ok := c.Sites.Sites[c.Kiosk.SiteName]
	if !ok {
		return SiteConfig{}, fmt.Errorf("unknown site %q (known: %s)", c.Kiosk.SiteName, strings.Join(c.SiteNames(), ", "))
	}
	if site.RadiusMeters <= 0 {
		site.RadiusMeters = constants.DefaultSiteRadiusMeters
	}
	site.Name = c.Kiosk.SiteName
	return site, nil
}

// SiteNames returns the sorted names of all configured sites.
func (c *Config) SiteNames() []string {
	names := make([]string, 0, len(c.Sites.Sites))
	for name := range c.Sites.Sites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasFixedLocation reports whether the kiosk position is configured.
func (k *KioskConfig) HasFixedLocation() bool {
	return k.Latitude != nil && k.Longitude != nil
}
