// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Descriptor matching constants
const (
	// DescriptorDim is the default face descriptor dimension produced by the
	// extraction model.
	DescriptorDim = 128

	// DefaultMatchThreshold is the default maximum Euclidean distance for a
	// descriptor to count as the same person. Lower values = stricter matching.
	DefaultMatchThreshold = 0.55

	// NearestIndexMinSize is the snapshot size from which the nearest-match
	// policy builds an HNSW graph instead of scanning every record.
	NearestIndexMinSize = 256

	// NearestSearchK is the number of HNSW candidates re-verified against the
	// strict threshold.
	NearestSearchK = 8
)

// Geofence constants
const (
	// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
	EarthRadiusMeters = 6_371_000.0

	// DefaultSiteRadiusMeters is the authorized radius around the reference site.
	DefaultSiteRadiusMeters = 100.0

	// DefaultSiteName selects the entry from the embedded sites table.
	DefaultSiteName = "headquarters"
)

// Scan session constants
const (
	// DefaultCooldown is how long success feedback stays visible before the
	// session re-arms.
	DefaultCooldown = 3 * time.Second

	// DefaultSampleInterval paces frame sampling. It is a fixed cadence, not a
	// backoff: retries stay unbounded until the session is stopped.
	DefaultSampleInterval = 100 * time.Millisecond

	// MaxFrameSize is the maximum dimension (width or height) of a frame sent
	// for extraction. Matches the 640x480 camera request of the kiosk page.
	MaxFrameSize = 640

	// FrameJPEGQuality is the JPEG quality used when re-encoding frames.
	FrameJPEGQuality = 85

	// EventChannelBuffer is the buffer size for SSE listener channels.
	EventChannelBuffer = 64
)

// Enrollment constants
const (
	// DefaultSnapshotCacheTTL is how long a fetched enrollment snapshot may be
	// reused by later sessions when the Valkey cache is enabled.
	DefaultSnapshotCacheTTL = 5 * time.Minute

	// WorkerPoolSize is the default number of parallel workers for bulk enrollment.
	WorkerPoolSize = 4
)
