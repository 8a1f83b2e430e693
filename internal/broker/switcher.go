package broker

import (
	"sync"

	"options-deskv1/internal/model"
)

// Switcher tracks which single broker is active among the configured
// adapters. SetActive atomically replaces the value; a failed switch leaves
// the previous active broker unchanged.
type Switcher struct {
	mu     sync.RWMutex
	active string
}

// NewSwitcher creates a Switcher with the given default broker.
func NewSwitcher(defaultBroker string) *Switcher {
	return &Switcher{active: defaultBroker}
}

// Active returns the currently active broker name.
func (s *Switcher) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SetActive switches the active broker. It fails with an
// UnsupportedBrokerError if name is not among available.
func (s *Switcher) SetActive(name string, available []string) error {
	found := false
	for _, b := range available {
		if b == name {
			found = true
			break
		}
	}
	if !found {
		return &model.UnsupportedBrokerError{Broker: name}
	}
	s.mu.Lock()
	s.active = name
	s.mu.Unlock()
	return nil
}
