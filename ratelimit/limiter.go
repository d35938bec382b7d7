package ratelimit

import (
	"context"
	"time"
)

// Result reports the outcome of a rate-limit check.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration // zero when allowed
}

// Limiter gates requests per client key. Implementations must never block
// traffic because of their own infrastructure failing; when the backing
// store is unreachable the check fails open.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) Result
}

// Profile pairs a request budget with its window.
type Profile struct {
	Limit  int
	Window time.Duration
}

// Named limit profiles, matching the portal's endpoint classes.
var (
	ProfileDefault    = Profile{Limit: 100, Window: 15 * time.Minute}
	ProfileAuth       = Profile{Limit: 10, Window: 15 * time.Minute}
	ProfileRoleAssign = Profile{Limit: 5, Window: time.Hour}
	ProfileUserUpdate = Profile{Limit: 20, Window: 5 * time.Minute}
)

const maxClientSignatureLen = 50

// ClientKey derives the limiter key from the client IP plus a truncated
// user-agent prefix. The signature reduces collisions between unrelated
// clients behind one IP without fragmenting legitimate shared-IP traffic.
func ClientKey(ip, userAgent string) string {
	if len(userAgent) > maxClientSignatureLen {
		userAgent = userAgent[:maxClientSignatureLen]
	}
	return ip + ":" + userAgent
}
