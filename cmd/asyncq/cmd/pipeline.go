package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sarchlab/asyncqueue/datarecording"
	"github.com/sarchlab/asyncqueue/hooking"
	"github.com/sarchlab/asyncqueue/monitoring"
	"github.com/sarchlab/asyncqueue/queueing"
)

type pipelineReport struct {
	Pushed     int64
	Consumed   int64
	Sum        int64
	FullEvents int64
	Timeouts   int64
	Elapsed    time.Duration
	Recording  string
}

func (r pipelineReport) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "pushed:      %d\n", r.Pushed)
	fmt.Fprintf(&b, "consumed:    %d\n", r.Consumed)
	fmt.Fprintf(&b, "checksum:    %d\n", r.Sum)
	fmt.Fprintf(&b, "full events: %d\n", r.FullEvents)
	fmt.Fprintf(&b, "timeouts:    %d\n", r.Timeouts)
	fmt.Fprintf(&b, "elapsed:     %s\n", r.Elapsed)

	if r.Recording != "" {
		fmt.Fprintf(&b, "recording:   %s\n", r.Recording)
	}

	return b.String()
}

type pipeline struct {
	cfg   pipelineConfig
	queue *queueing.Queue[int]
	bar   *monitoring.ProgressBar

	remaining atomic.Int64
	report    pipelineReport
}

func runPipeline(
	ctx context.Context,
	cfg pipelineConfig,
	logger *log.Logger,
) (pipelineReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	p := &pipeline{cfg: cfg}
	p.queue = queueing.MakeBuilder[int]().
		WithCapacity(cfg.Capacity).
		WithOrder(cfg.Order).
		Build("Pipeline")
	p.remaining.Store(int64(cfg.Items))

	p.queue.On(hooking.HookPosFull, func(hooking.HookCtx[int]) {
		atomic.AddInt64(&p.report.FullEvents, 1)
	})

	if cfg.LogEvents {
		p.queue.AcceptHook(hooking.NewEventLogger[int](logger))
	}

	if cfg.RecordPath != "" {
		writer := datarecording.NewSQLiteWriter(cfg.RecordPath)
		defer writer.Close()

		p.queue.AcceptHook(datarecording.NewEventRecorder[int](writer))
		p.report.Recording = writer.Filename()
	}

	if cfg.Monitor {
		stop, err := p.startMonitor(logger)
		if err != nil {
			return p.report, err
		}
		defer stop()
	}

	start := time.Now()
	err := p.run(ctx)
	p.report.Elapsed = time.Since(start)

	return p.report, err
}

func (p *pipeline) startMonitor(logger *log.Logger) (func(), error) {
	m := monitoring.NewMonitor()
	if p.cfg.MonitorPort != 0 {
		m.WithPortNumber(p.cfg.MonitorPort)
	}

	m.RegisterQueue(p.queue)
	p.bar = m.CreateProgressBar("Pipeline", uint64(p.cfg.Items))

	url, err := m.StartServer()
	if err != nil {
		return nil, err
	}

	if p.cfg.OpenBrowser {
		err = monitoring.OpenInBrowser(url)
		if err != nil {
			logger.Printf("cannot open browser: %v", err)
		}
	}

	return func() {
		m.CompleteProgressBar(p.bar)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		_ = m.StopServer(ctx)
	}, nil
}

func (p *pipeline) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < p.cfg.Producers; i++ {
		first, count := share(p.cfg.Items, p.cfg.Producers, i)
		g.Go(func() error {
			return p.produce(gctx, first, count)
		})
	}

	for i := 0; i < p.cfg.Consumers; i++ {
		g.Go(func() error {
			return p.consume(gctx)
		})
	}

	return g.Wait()
}

// share splits total items into parts and returns the first item and count
// of part i.
func share(total, parts, i int) (first, count int) {
	base := total / parts
	extra := total % parts

	first = i*base + min(i, extra)
	count = base
	if i < extra {
		count++
	}

	return first, count
}

func (p *pipeline) produce(ctx context.Context, first, count int) error {
	var limiter *rate.Limiter
	if p.cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(p.cfg.Rate), p.cfg.Batch)
	}

	for next := first; next < first+count; {
		n := min(p.cfg.Batch, first+count-next)

		if limiter != nil {
			err := limiter.WaitN(ctx, n)
			if err != nil {
				return err
			}
		}

		items := make([]int, n)
		for i := range items {
			items[i] = next + i
		}

		err := p.pushItems(ctx, items)
		if err != nil {
			return err
		}

		atomic.AddInt64(&p.report.Pushed, int64(n))
		if p.bar != nil {
			p.bar.IncrementInProgress(uint64(n))
		}

		next += n
	}

	return nil
}

// pushItems pushes a batch. A single item is retried when its wait bound
// passes; batches wait without a bound, since a failed batch push cannot be
// retried without duplicating the items it already inserted.
func (p *pipeline) pushItems(ctx context.Context, items []int) error {
	if len(items) > 1 {
		return p.queue.PushBatch(ctx, items)
	}

	for {
		callCtx, cancel := p.callContext(ctx)
		err := p.queue.Push(callCtx, items[0])
		cancel()

		if !p.retryable(ctx, err) {
			return err
		}
	}
}

func (p *pipeline) consume(ctx context.Context) error {
	for {
		n := p.claim()
		if n == 0 {
			return nil
		}

		items, err := p.getItems(ctx, n)
		if err != nil {
			return err
		}

		for _, item := range items {
			atomic.AddInt64(&p.report.Sum, int64(item))
		}

		atomic.AddInt64(&p.report.Consumed, int64(len(items)))
		if p.bar != nil {
			p.bar.MoveInProgressToFinished(uint64(len(items)))
		}
	}
}

// claim reserves up to one batch of the items that are still to be consumed.
func (p *pipeline) claim() int {
	for {
		left := p.remaining.Load()
		if left <= 0 {
			return 0
		}

		n := min(int64(p.cfg.Batch), left)
		if p.remaining.CompareAndSwap(left, left-n) {
			return int(n)
		}
	}
}

func (p *pipeline) getItems(ctx context.Context, n int) ([]int, error) {
	if n > 1 {
		return p.queue.GetBatch(ctx, n)
	}

	for {
		callCtx, cancel := p.callContext(ctx)
		item, err := p.queue.Get(callCtx)
		cancel()

		if err == nil {
			return []int{item}, nil
		}

		if !p.retryable(ctx, err) {
			return nil, err
		}
	}
}

func (p *pipeline) callContext(
	ctx context.Context,
) (context.Context, context.CancelFunc) {
	if p.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, p.cfg.Timeout)
}

// retryable reports whether err is a per-call timeout while the pipeline
// itself is still running.
func (p *pipeline) retryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil || !errors.Is(err, queueing.ErrTimeout) {
		return false
	}

	atomic.AddInt64(&p.report.Timeouts, 1)

	return true
}
