package source

import (
	"context"
	"sync"

	"mercator-hq/fieldguard/pkg/validation/engine"
)

// MemorySource is an in-memory rule source.
type MemorySource struct {
	mu       sync.RWMutex
	rules    []engine.Rule
	watchers []chan engine.RuleEvent
}

// NewMemorySource creates a rule source holding rules.
func NewMemorySource(rules ...engine.Rule) *MemorySource {
	return &MemorySource{rules: rules}
}

// LoadRules returns a copy of the rules held in memory.
func (s *MemorySource) LoadRules(ctx context.Context) ([]engine.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]engine.Rule, len(s.rules))
	copy(rules, s.rules)
	return rules, nil
}

// Watch returns a channel that receives an event after every SetRules.
// The channel is closed when ctx is cancelled.
func (s *MemorySource) Watch(ctx context.Context) (<-chan engine.RuleEvent, error) {
	ch := make(chan engine.RuleEvent, 1)

	s.mu.Lock()
	s.watchers = append(s.watchers, ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, w := range s.watchers {
			if w == ch {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}

// SetRules replaces the rules and notifies watchers. A watcher that has not
// consumed the previous event is not sent another one.
func (s *MemorySource) SetRules(rules []engine.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules = rules
	for _, w := range s.watchers {
		select {
		case w <- engine.RuleEvent{Type: engine.RuleEventModified, Path: "memory"}:
		default:
		}
	}
}
