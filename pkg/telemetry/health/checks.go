package health

import (
	"context"
	"fmt"
)

// RulesLoadedCheck fails while the engine holds no rules. count is usually
// a bound engine method such as func() int { return len(eng.Rules()) }.
func RulesLoadedCheck(count func() int) CheckFunc {
	return func(ctx context.Context) error {
		if n := count(); n == 0 {
			return fmt.Errorf("no rules loaded")
		}
		return nil
	}
}

// Pinger is implemented by stores that can verify their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck checks a store connection.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("ping failed: %w", err)
		}
		return nil
	}
}
