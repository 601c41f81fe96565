// Package idgen wraps the UUID generator used for per-invocation correlation
// ids so that it can be stubbed in tests.  Callers should treat the returned
// identifiers as opaque strings.
package idgen

import "github.com/google/uuid"

// NewFunc produces a new globally unique identifier. It is a variable so
// tests can stub it.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new correlation id.
func New() string { return NewFunc() }
