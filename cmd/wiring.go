package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/attendance-kiosk/internal/cache"
	"github.com/kozaktomas/attendance-kiosk/internal/camera"
	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/database"
	"github.com/kozaktomas/attendance-kiosk/internal/database/mariadb"
	"github.com/kozaktomas/attendance-kiosk/internal/database/postgres"
	"github.com/kozaktomas/attendance-kiosk/internal/embedding"
	"github.com/kozaktomas/attendance-kiosk/internal/events"
	"github.com/kozaktomas/attendance-kiosk/internal/facematch"
	"github.com/kozaktomas/attendance-kiosk/internal/geofence"
	"github.com/kozaktomas/attendance-kiosk/internal/kiosk"
	"github.com/kozaktomas/attendance-kiosk/internal/ledger"
)

// services holds the collaborators shared by every session of a process.
type services struct {
	cfg       *config.Config
	site      geofence.Site
	matcher   facematch.Matcher
	extractor kiosk.Extractor
	store     kiosk.EnrollmentStore
	source    string
	ledger    *ledger.Client        // nil without LEDGER_URL
	snapshots *cache.SnapshotCache  // nil without VALKEY_ADDR
	publisher *events.NATSPublisher // nil without NATS_URL
	closers   []func()
}

// loadServices connects the configured backends. requireLedger is set by
// commands that record attendance.
func loadServices(ctx context.Context, cfg *config.Config, requireLedger bool) (*services, error) {
	site, err := siteFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	policy, err := facematch.ParsePolicy(cfg.Matching.Policy)
	if err != nil {
		return nil, err
	}

	svc := &services{
		cfg:       cfg,
		site:      site,
		matcher:   facematch.NewMatcher(cfg.Matching.Threshold, policy, cfg.Matching.Dim),
		extractor: embedding.NewClient(cfg.Embedding.URL),
	}

	if err := svc.openDatabases(ctx); err != nil {
		svc.Close()
		return nil, err
	}

	if cfg.Ledger.URL != "" {
		client, err := ledger.NewClient(cfg.Ledger.URL, cfg.Ledger.Token, cfg.Matching.Dim)
		if err != nil {
			svc.Close()
			return nil, err
		}
		svc.ledger = client
	} else if requireLedger {
		svc.Close()
		return nil, errors.New("LEDGER_URL environment variable is required to record attendance")
	}

	if err := svc.selectStore(ctx); err != nil {
		svc.Close()
		return nil, err
	}

	if cfg.NATS.URL != "" {
		publisher, err := events.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			svc.Close()
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		svc.publisher = publisher
		svc.closers = append(svc.closers, publisher.Close)
		fmt.Printf("Publishing attendance events to NATS stream %s\n", events.StreamName)
	}

	return svc, nil
}

// openDatabases registers the PostgreSQL and legacy MariaDB backends that are configured.
func (s *services) openDatabases(ctx context.Context) error {
	dim := s.cfg.Matching.Dim

	if s.cfg.Database.URL != "" {
		fmt.Printf("Connecting to PostgreSQL database...\n")
		pool, err := postgres.Open(ctx, &s.cfg.Database, dim)
		if err != nil {
			return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		s.closers = append(s.closers, func() { pool.Close() })

		repo := postgres.NewEmployeeRepository(pool, dim)
		database.RegisterPostgresBackend(
			func() database.EmployeeReader { return repo },
			func() database.EmployeeWriter { return repo },
		)
		fmt.Printf("Using PostgreSQL backend\n")
	}

	if s.cfg.MariaDB.DSN != "" {
		pool, err := mariadb.NewPool(ctx, s.cfg.MariaDB.DSN)
		if err != nil {
			return fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		s.closers = append(s.closers, func() { pool.Close() })

		reader := mariadb.NewEmployeeReader(pool, dim)
		database.RegisterMariaDBBackend(func() database.EmployeeReader { return reader })
		fmt.Printf("Legacy MariaDB employees table available (read-only)\n")
	}
	return nil
}

// selectStore picks the enrollment source: a database when one is
// registered, otherwise the ledger API. The choice is wrapped in the Valkey
// snapshot cache when configured.
func (s *services) selectStore(ctx context.Context) error {
	var next cache.Fetcher
	switch {
	case database.IsInitialized():
		reader, err := database.GetEmployeeReader(ctx)
		if err != nil {
			return err
		}
		next = reader
		s.source = database.Backends()[0]
	case s.ledger != nil:
		next = s.ledger
		s.source = "ledger"
	default:
		return errors.New("no enrollment source configured: set DATABASE_URL, MARIADB_DSN or LEDGER_URL")
	}
	s.store = next

	if s.cfg.Valkey.Addr == "" {
		return nil
	}
	store, err := cache.NewValkey(s.cfg.Valkey.Addr)
	if err != nil {
		return fmt.Errorf("failed to connect to Valkey: %w", err)
	}
	s.closers = append(s.closers, store.Close)
	s.snapshots = cache.NewSnapshotCache(store, next, s.source, s.cfg.Valkey.TTL)
	s.store = s.snapshots
	fmt.Printf("Caching %s enrollment snapshots in Valkey (ttl %s)\n", s.source, s.cfg.Valkey.TTL)
	return nil
}

// submitterFor returns the attendance sink for one device.
func (s *services) submitterFor(deviceID string) kiosk.Submitter {
	var sub kiosk.Submitter = s.ledger
	if s.publisher != nil {
		sub = events.NewPublishingSubmitter(sub, s.publisher.JetStream(), deviceID, s.site.Name)
	}
	return sub
}

// sessionOptions assembles the options of a session on deviceID.
func (s *services) sessionOptions(deviceID string, cam camera.Device, locator geofence.Locator) kiosk.Options {
	return kiosk.Options{
		DeviceID:       deviceID,
		Camera:         cam,
		Locator:        locator,
		Site:           s.site,
		Extractor:      s.extractor,
		Store:          s.store,
		Submitter:      s.submitterFor(deviceID),
		Matcher:        s.matcher,
		Cooldown:       s.cfg.Kiosk.Cooldown,
		SampleInterval: s.cfg.Kiosk.SampleInterval,
	}
}

// invalidateSnapshots drops the cached enrollment snapshot after a change.
func (s *services) invalidateSnapshots(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Invalidate(ctx); err != nil {
		slog.Warn("failed to invalidate snapshot cache", "error", err)
	}
}

// Close releases connections in reverse order of opening.
func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// siteFromConfig resolves the reference site selected by KIOSK_SITE.
func siteFromConfig(cfg *config.Config) (geofence.Site, error) {
	site, err := cfg.ReferenceSite()
	if err != nil {
		return geofence.Site{}, err
	}
	return geofence.Site{
		Name:         site.Name,
		Center:       geofence.Coordinate{Latitude: site.Latitude, Longitude: site.Longitude},
		RadiusMeters: site.RadiusMeters,
	}, nil
}

// configuredCamera returns the camera named by KIOSK_CAMERA_DIR or
// KIOSK_CAMERA_URL, or nil when neither is set.
func configuredCamera(dir, url string) camera.Device {
	switch {
	case dir != "":
		return camera.Directory{Path: dir}
	case url != "":
		return camera.Snapshot{URL: url}
	default:
		return nil
	}
}

// fixedLocator returns the configured kiosk position, or nil.
func fixedLocator(k *config.KioskConfig) geofence.Locator {
	if !k.HasFixedLocation() {
		return nil
	}
	return geofence.StaticLocator{Position: geofence.Coordinate{Latitude: *k.Latitude, Longitude: *k.Longitude}}
}
