package health

import (
	"context"
	"time"
)

const checkTimeout = 2 * time.Second

// Pinger is anything that can report whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service encapsulates health-related checks.
type Service struct {
	checks map[string]Pinger
}

// NewService constructs a health service over named dependency checks.
func NewService(checks map[string]Pinger) *Service {
	return &Service{checks: checks}
}

// Status runs every check and returns a payload plus the overall result.
func (s *Service) Status(ctx context.Context) (map[string]any, bool) {
	ok := true
	deps := make(map[string]string, len(s.checks))
	for name, p := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := p.Ping(checkCtx)
		cancel()
		if err != nil {
			ok = false
			deps[name] = "down"
			continue
		}
		deps[name] = "up"
	}
	return map[string]any{"ok": ok, "checks": deps}, ok
}
