//go:build !profile

package prof

// Enabled reports whether profiling is compiled in.
const Enabled = false

// Session is inactive when built without the "profile" tag.
type Session struct{}

// Start returns an inactive session when built without the "profile" tag.
func Start(_ Config) (*Session, error) {
	return &Session{}, nil
}

// Stop is a no-op when built without the "profile" tag.
func (s *Session) Stop() error {
	return nil
}
