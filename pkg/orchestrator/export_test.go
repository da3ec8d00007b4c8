package orchestrator

import (
	"context"
	"time"
)

// SetSleep replaces the pacing/backoff sleep. Test hook.
func (o *Orchestrator) SetSleep(fn func(context.Context, time.Duration) error) {
	o.sleep = fn
}
