package tickrunner

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-tick-runner/core"
)

// =============================================================================
// Global Host Loop Helper (Singleton)
// =============================================================================

var (
	globalLoop *core.HostLoop
	globalMu   sync.Mutex
)

// InitGlobalLoop creates the process-wide dispatcher and starts a host loop
// ticking it every interval. Later calls are no-ops until ShutdownGlobalLoop.
func InitGlobalLoop(interval time.Duration) {
	InitGlobalLoopWithConfig(nil, interval)
}

// InitGlobalLoopWithConfig is InitGlobalLoop with a dispatcher config.
func InitGlobalLoopWithConfig(config *DispatcherConfig, interval time.Duration) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLoop != nil {
		return // Already initialized
	}

	if config == nil {
		config = core.DefaultDispatcherConfig()
		config.Name = "global"
	}
	globalLoop = core.NewHostLoop(core.NewDispatcher(config), interval)
}

// GetGlobalLoop returns the global host loop.
// It panics if InitGlobalLoop has not been called.
func GetGlobalLoop() *HostLoop {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLoop == nil {
		panic("global loop not initialized. Call InitGlobalLoop() first.")
	}
	return globalLoop
}

// ShutdownGlobalLoop stops the global loop, canceling every active entry.
func ShutdownGlobalLoop() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLoop != nil {
		globalLoop.Stop()
		globalLoop = nil
	}
}

// Submit submits s to the global dispatcher from any goroutine.
func Submit(ctx context.Context, s Schedulable) (Handle, error) {
	return GetGlobalLoop().Submit(ctx, s)
}

// Cancel cancels h on the global dispatcher from any goroutine.
func Cancel(ctx context.Context, h Handle) (bool, error) {
	return GetGlobalLoop().Cancel(ctx, h)
}

// Observe registers fn for completions on the global dispatcher. fn runs on
// the loop goroutine.
func Observe(fn func(CompletionRecord)) error {
	return GetGlobalLoop().Post(func(d *core.Dispatcher) {
		d.AddObserver(core.CompletionObserverFunc(fn))
	})
}
