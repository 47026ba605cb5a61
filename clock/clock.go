// Package clock provides an injectable time source.
//
// Updaters read the time only through a Clock so tests can step past the
// freshness threshold without sleeping. Production code uses Real();
// tests use Fake() and call Advance.
package clock

import "time"

// Clock abstracts time.Now.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

type realClock struct{}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }
