package prof

import "errors"

// Profiling errors.
var (
	// ErrActive indicates a profiling session is already running.
	ErrActive = errors.New("profiling session already active")

	// ErrInvalidProfile indicates an unknown snapshot profile.
	ErrInvalidProfile = errors.New("invalid profile")
)

// Config names the output file of each profile to collect. Empty paths
// are skipped.
type Config struct {
	CPU   string // CPU samples, streamed while the session runs
	Heap  string // Live heap at stop
	Block string // Blocking events; enables block profiling
	Mutex string // Mutex contention; enables mutex profiling
}

// IsZero reports whether no profile is requested.
func (c Config) IsZero() bool {
	return c == Config{}
}
