package provider

import (
	"context"
	"fmt"
	"time"

	"mcpchat/model"
)

// defaultPingTimeout bounds a connectivity check.
const defaultPingTimeout = 10 * time.Second

// CheckResult reports the outcome of Check.
type CheckResult struct {
	Provider string
	Valid    bool
	Err      error
	Latency  time.Duration
}

// Check verifies that p is reachable and its credentials are accepted.
// Providers that do not implement Pinger are reported valid without a call.
func Check(ctx context.Context, p model.Provider) CheckResult {
	result := CheckResult{Provider: p.Name()}

	pinger, ok := p.(Pinger)
	if !ok {
		result.Valid = true
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	start := time.Now()
	err := pinger.Ping(ctx)
	result.Latency = time.Since(start)
	if err != nil {
		result.Err = fmt.Errorf("connection failed: %w", err)
		return result
	}

	result.Valid = true
	return result
}
