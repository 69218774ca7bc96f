// Package fatal implements the node's "crash rather than continue in an
// undefined state" policy for internal invariant violations: action-chain
// recursion, pending-request id corruption, and other bugs that indicate the
// state machine itself is broken rather than that an external actor
// misbehaved.
package fatal

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Assert panics if cond is false. It is reserved for conditions that can
// only be false because of a bug in this process, never because of
// attacker-controlled or network input — those get a typed error instead.
func Assert(cond bool, format string, args ...interface{}) {
	if cond {
		return
	}
	msg := fmt.Sprintf(format, args...)
	log.WithField("kind", "internal_assertion").Error(msg)
	panic("mina-core: internal assertion failed: " + msg)
}
