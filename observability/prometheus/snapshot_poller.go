package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-tick-runner/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// DispatcherSnapshotProvider provides current dispatcher stats snapshots.
type DispatcherSnapshotProvider interface {
	Stats() core.DispatcherStats
}

// LoopSnapshotProvider provides current host loop stats snapshots.
type LoopSnapshotProvider interface {
	Stats() core.HostLoopStats
}

// SnapshotPoller periodically exports dispatcher/loop Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	dispatchersMu sync.RWMutex
	dispatchers   map[string]DispatcherSnapshotProvider

	loopsMu sync.RWMutex
	loops   map[string]LoopSnapshotProvider

	dispatcherActive    *prom.GaugeVec
	dispatcherTicks     *prom.GaugeVec
	dispatcherRejected  *prom.GaugeVec
	dispatcherCompleted *prom.GaugeVec
	dispatcherClosed    *prom.GaugeVec
	dispatcherLastTick  *prom.GaugeVec

	loopPending    *prom.GaugeVec
	loopTicks      *prom.GaugeVec
	loopTickErrors *prom.GaugeVec
	loopClosed     *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, namespace string, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if namespace == "" {
		namespace = defaultNamespace
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string, labels ...string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}

	p := &SnapshotPoller{
		interval:    interval,
		dispatchers: make(map[string]DispatcherSnapshotProvider),
		loops:       make(map[string]LoopSnapshotProvider),

		dispatcherActive:    gauge("dispatcher_active", "Active root entries per dispatcher.", "dispatcher"),
		dispatcherTicks:     gauge("dispatcher_ticks", "Ticks processed per dispatcher.", "dispatcher"),
		dispatcherRejected:  gauge("dispatcher_rejected", "Dispatcher rejected submission count snapshot.", "dispatcher"),
		dispatcherCompleted: gauge("dispatcher_completed", "Retired root entries per terminal state.", "dispatcher", "state"),
		dispatcherClosed:    gauge("dispatcher_closed", "Dispatcher closed state (1=closed, 0=open).", "dispatcher"),
		dispatcherLastTick:  gauge("dispatcher_last_tick_seconds", "Duration of the most recent tick.", "dispatcher"),

		loopPending:    gauge("loop_pending", "Posted work waiting for the loop goroutine.", "loop"),
		loopTicks:      gauge("loop_ticks", "Ticks driven by the host loop.", "loop"),
		loopTickErrors: gauge("loop_tick_errors", "Ticks that returned an error.", "loop"),
		loopClosed:     gauge("loop_closed", "Loop closed state (1=closed, 0=open).", "loop"),
	}

	for _, g := range []**prom.GaugeVec{
		&p.dispatcherActive, &p.dispatcherTicks, &p.dispatcherRejected,
		&p.dispatcherCompleted, &p.dispatcherClosed, &p.dispatcherLastTick,
		&p.loopPending, &p.loopTicks, &p.loopTickErrors, &p.loopClosed,
	} {
		registered, err := registerCollector(reg, *g)
		if err != nil {
			return nil, err
		}
		*g = registered
	}

	return p, nil
}

// AddDispatcher adds or replaces a dispatcher snapshot provider by name.
func (p *SnapshotPoller) AddDispatcher(name string, provider DispatcherSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "dispatcher")
	p.dispatchersMu.Lock()
	p.dispatchers[name] = provider
	p.dispatchersMu.Unlock()
}

// AddLoop adds or replaces a host loop snapshot provider by name.
func (p *SnapshotPoller) AddLoop(name string, provider LoopSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "loop")
	p.loopsMu.Lock()
	p.loops[name] = provider
	p.loopsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx, p.done)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

// CollectOnce exports one snapshot of every provider immediately.
func (p *SnapshotPoller) CollectOnce() {
	if p == nil {
		return
	}
	p.collectOnce()
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.dispatchersMu.RLock()
	for name, provider := range p.dispatchers {
		stats := provider.Stats()
		p.dispatcherActive.WithLabelValues(name).Set(float64(stats.Active))
		p.dispatcherTicks.WithLabelValues(name).Set(float64(stats.Ticks))
		p.dispatcherRejected.WithLabelValues(name).Set(float64(stats.Rejected))
		p.dispatcherCompleted.WithLabelValues(name, core.StateSucceeded.String()).Set(float64(stats.Succeeded))
		p.dispatcherCompleted.WithLabelValues(name, core.StateFailed.String()).Set(float64(stats.Failed))
		p.dispatcherCompleted.WithLabelValues(name, core.StateCanceled.String()).Set(float64(stats.Canceled))
		p.dispatcherClosed.WithLabelValues(name).Set(boolGauge(stats.Closed))
		p.dispatcherLastTick.WithLabelValues(name).Set(stats.LastTickDuration.Seconds())
	}
	p.dispatchersMu.RUnlock()

	p.loopsMu.RLock()
	for name, provider := range p.loops {
		stats := provider.Stats()
		p.loopPending.WithLabelValues(name).Set(float64(stats.Pending))
		p.loopTicks.WithLabelValues(name).Set(float64(stats.Ticks))
		p.loopTickErrors.WithLabelValues(name).Set(float64(stats.TickErrors))
		p.loopClosed.WithLabelValues(name).Set(boolGauge(stats.Closed))
	}
	p.loopsMu.RUnlock()
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
