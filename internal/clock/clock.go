// Package clock centralises time access so that deadline and auto-deny logic
// can be exercised deterministically in tests.
package clock

import "time"

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Now returns the current UTC time via NowFunc.
func Now() time.Time { return NowFunc().UTC() }
