package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/Swind/go-tick-runner/core"
	promexporter "github.com/Swind/go-tick-runner/observability/prometheus"
	"github.com/Swind/go-tick-runner/plan"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

type runOptions struct {
	planPath    string
	ticks       int
	dt          float64
	realtime    bool
	timeout     time.Duration
	metricsAddr string
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a plan until it finishes",
		Long: `Builds the plan and submits it to a dispatcher. By default the
dispatcher is ticked back to back with a fixed delta (--dt) for at most
--ticks ticks. With --realtime a host loop ticks it at the configured
interval with the measured wall-clock delta.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.dt < 0 {
				return fmt.Errorf("--dt must be >= 0, got %v", opts.dt)
			}
			if opts.metricsAddr != "" {
				a.cfg.Metrics.Enabled = true
				a.cfg.Metrics.Addr = opts.metricsAddr
			}
			return runPlan(cmd.Context(), cmd.OutOrStdout(), a, opts)
		},
	}

	cmd.Flags().StringVar(&opts.planPath, "plan", "", "Plan file (YAML)")
	cmd.Flags().IntVar(&opts.ticks, "ticks", 1000, "Maximum number of ticks (fixed-step mode)")
	cmd.Flags().Float64Var(&opts.dt, "dt", 1.0, "Seconds per tick (fixed-step mode)")
	cmd.Flags().BoolVar(&opts.realtime, "realtime", false, "Tick from a host loop at the configured interval")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", time.Minute, "Wall-clock limit (realtime mode)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus /metrics on this address")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}

func runPlan(ctx context.Context, out io.Writer, a *app, opts runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	p, err := plan.Load(opts.planPath)
	if err != nil {
		return err
	}
	root, err := plan.Build(p)
	if err != nil {
		return err
	}

	dc := a.cfg.CoreDispatcherConfig()
	dc.Logger = a.logger

	var (
		reg    *prom.Registry
		poller *promexporter.SnapshotPoller
	)
	if a.cfg.Metrics.Enabled {
		reg = prom.NewRegistry()
		exporter, err := promexporter.NewMetricsExporter(a.cfg.Metrics.Namespace, reg, promexporter.ExporterOptions{})
		if err != nil {
			return err
		}
		dc.Metrics = exporter
		poller, err = promexporter.NewSnapshotPoller(reg, a.cfg.Metrics.Namespace, a.cfg.Metrics.PollInterval.Duration)
		if err != nil {
			return err
		}
	}

	d := core.NewDispatcher(dc)
	results := make(chan core.CompletionRecord, 1)
	d.AddObserver(core.CompletionObserverFunc(func(r core.CompletionRecord) {
		results <- r
	}))

	if reg != nil {
		stop, err := serveMetrics(a, reg)
		if err != nil {
			return err
		}
		defer stop()
		poller.AddDispatcher(d.Name(), d)
		poller.Start(ctx)
		defer poller.Stop()
	}

	a.logger.Info("running plan", core.F("plan", p.Name), core.F("realtime", opts.realtime))

	var record core.CompletionRecord
	if opts.realtime {
		record, err = runRealtime(ctx, a, d, root, poller, results, opts.timeout)
	} else {
		record, err = runFixedStep(d, root, results, opts.ticks, opts.dt)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s %s after %d ticks (%.3fs)\n", record.Name, record.State, record.FinishedTick, record.Elapsed)
	if poller != nil {
		poller.CollectOnce()
	}
	if record.State != core.StateSucceeded {
		if record.Err != nil {
			return fmt.Errorf("plan %q %s: %w", p.Name, record.State, record.Err)
		}
		return fmt.Errorf("plan %q %s", p.Name, record.State)
	}
	return nil
}

func runFixedStep(d *core.Dispatcher, root core.Schedulable, results <-chan core.CompletionRecord, ticks int, dt float64) (core.CompletionRecord, error) {
	if _, err := d.Submit(root); err != nil {
		return core.CompletionRecord{}, err
	}
	for i := 0; i < ticks && d.Len() > 0; i++ {
		if err := d.Tick(dt); err != nil {
			return core.CompletionRecord{}, err
		}
	}

	timedOut := d.Len() > 0
	d.Shutdown()
	record := <-results
	if timedOut {
		return record, fmt.Errorf("plan did not finish within %d ticks", ticks)
	}
	return record, nil
}

func runRealtime(ctx context.Context, a *app, d *core.Dispatcher, root core.Schedulable, poller *promexporter.SnapshotPoller, results <-chan core.CompletionRecord, timeout time.Duration) (core.CompletionRecord, error) {
	loop := core.NewHostLoop(d, a.cfg.Loop.Interval.Duration)
	defer loop.Stop()
	if poller != nil {
		poller.AddLoop(loop.Name(), loop)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := loop.Submit(ctx, root); err != nil {
		return core.CompletionRecord{}, err
	}

	select {
	case record := <-results:
		return record, nil
	case <-ctx.Done():
		loop.Stop()
		record := <-results
		return record, fmt.Errorf("plan did not finish: %w", ctx.Err())
	}
}

// serveMetrics serves reg on the configured address until stop is called.
func serveMetrics(a *app, reg *prom.Registry) (stop func(), err error) {
	ln, err := net.Listen("tcp", a.cfg.Metrics.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen for metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", core.F("error", err))
		}
	}()
	a.logger.Info("serving metrics", core.F("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
