package recovery

import (
	"runtime/debug"

	"github.com/codetrail/codetrail/internal/logger"
)

// SafeGo runs fn in a goroutine with panic recovery so a single
// misbehaving background loop cannot take down the daemon.
func SafeGo(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("🚨 panic recovered in goroutine %q: %v", name, r)
				logger.Debugf("stack trace:\n%s", debug.Stack())
			}
		}()
		fn()
	}()
}
