package session

import (
	"strings"
	"time"
)

// Fallback modes for token requests.
const (
	FallbackTrue  = "true"
	FallbackFalse = "false"
	FallbackOdd   = "odd"
	FallbackEven  = "even"
)

// TokenPolicy decides whether this server hands a registration token to a
// phone or sends it back to a higher priority server.
type TokenPolicy struct {
	// Secondary is set when a higher priority server is expected to be
	// available to the phones.
	Secondary bool
	// Mode is one of the Fallback constants. Unknown values behave like
	// FallbackFalse.
	Mode string
	// Backoff is the wait time reported in RegisterTokenReject.
	Backoff time.Duration
}

// Defer reports whether the token of deviceID must be rejected so the phone
// retries against the higher priority server.
func (p TokenPolicy) Defer(deviceID string) bool {
	return p.Secondary && FallbackMatches(p.Mode, deviceID)
}

// FallbackMatches evaluates the fallback predicate for a device. odd and
// even are decided on the last hex digit of the MAC in the device name.
func FallbackMatches(mode, deviceID string) bool {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case FallbackTrue, "yes", "on":
		return true
	case FallbackOdd:
		d, ok := lastDigit(deviceID)
		return ok && d%2 == 1
	case FallbackEven:
		d, ok := lastDigit(deviceID)
		return ok && d%2 == 0
	}
	return false
}

func lastDigit(deviceID string) (int, bool) {
	if deviceID == "" {
		return 0, false
	}
	c := deviceID[len(deviceID)-1]
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}
