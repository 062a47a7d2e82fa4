package kernel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wagiedev/k-kernel-go/internal/config"
)

// slot holds the kernel's optional session driver.
type slot struct {
	log     *slog.Logger
	factory func() config.Driver

	mu     sync.Mutex
	driver config.Driver
}

// getOrCreate returns the live driver, starting a new one if the slot is
// empty or its interpreter has died.
func (s *slot) getOrCreate(ctx context.Context) (config.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.driver != nil {
		if s.driver.Alive() {
			return s.driver, nil
		}

		s.log.Warn("k session died, starting a new one")
		s.terminate(s.driver)
		s.driver = nil
	}

	driver := s.factory()

	if err := driver.Start(ctx); err != nil {
		s.terminate(driver)

		return nil, fmt.Errorf("start session: %w", err)
	}

	s.driver = driver
	s.log.Info("k session created")

	return driver, nil
}

// current returns the driver without creating one. It may be nil.
func (s *slot) current() config.Driver {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.driver
}

// reset terminates and forgets the current driver. It reports whether
// there was one.
func (s *slot) reset() bool {
	s.mu.Lock()
	driver := s.driver
	s.driver = nil
	s.mu.Unlock()

	if driver == nil {
		return false
	}

	s.terminate(driver)
	s.log.Info("k session removed")

	return true
}

// discard terminates driver and empties the slot if it still holds it.
func (s *slot) discard(driver config.Driver) {
	s.mu.Lock()
	if s.driver == driver {
		s.driver = nil
	}
	s.mu.Unlock()

	s.terminate(driver)
}

func (s *slot) terminate(driver config.Driver) {
	if err := driver.Terminate(); err != nil {
		s.log.Debug("Terminate k session", "error", err)
	}
}
