package fixture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/cortexheap"
	"github.com/hupe1980/cortexheap/internal/memmap"
	"github.com/hupe1980/cortexheap/internal/resource"
)

// Outcome is how a fixture program ended.
type Outcome uint8

const (
	Passed Outcome = iota
	Halted
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "passed"
	case Halted:
		return "halted"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(o))
	}
}

// Result is the report for one program run.
type Result struct {
	Name     string
	Outcome  Outcome
	Output   string
	Stats    cortexheap.Stats
	Duration time.Duration
	Err      error
}

// Inspector is called with a program's heap after the program finished and
// before the heap is closed.
type Inspector func(ctx context.Context, name string, h *cortexheap.Heap) error

// Config configures a Runner.
type Config struct {
	HeapStart cortexheap.Addr
	HeapSize  uint32
	RAMEnd    uint32

	Logger  *cortexheap.Logger
	Metrics cortexheap.MetricsCollector
	// Resources bounds how many programs run at once and how much host
	// memory their heaps may reserve. Nil runs one program at a time.
	Resources *resource.Controller
	Inspect   Inspector
}

// DefaultConfig returns the configuration of the reference board.
func DefaultConfig() Config {
	return Config{
		HeapStart: cortexheap.Addr(memmap.DefaultHeapStart),
		HeapSize:  memmap.DefaultHeapSize,
		RAMEnd:    memmap.DefaultRAMEnd,
	}
}

// Runner executes fixture programs, each against its own heap.
type Runner struct {
	cfg Config
	rc  *resource.Controller
}

// NewRunner creates a runner.
func NewRunner(cfg Config) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = cortexheap.NoopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = cortexheap.NoopMetricsCollector{}
	}
	rc := cfg.Resources
	if rc == nil {
		rc = resource.NewController(resource.Config{MaxBackgroundWorkers: 1})
	}
	return &Runner{cfg: cfg, rc: rc}
}

// Run executes programs concurrently, bounded by the controller's worker
// slots. Results are returned in the order of programs. A program failing
// does not stop the others; the error is only non-nil when the configured
// heap can never fit the controller's memory limit, or when ctx ends before
// every program got a slot.
func (r *Runner) Run(ctx context.Context, programs ...Program) ([]Result, error) {
	if limit := r.rc.MemoryLimit(); limit > 0 && int64(r.cfg.HeapSize) > limit {
		return nil, fmt.Errorf("fixture: %d-byte heap exceeds the %d-byte memory limit: %w",
			r.cfg.HeapSize, limit, resource.ErrMemoryLimitExceeded)
	}

	results := make([]Result, len(programs))

	g, _ := errgroup.WithContext(ctx)
	for i, p := range programs {
		g.Go(func() error {
			if err := r.acquireSlot(ctx, p.Name()); err != nil {
				results[i] = Result{Name: p.Name(), Outcome: Failed, Err: err}
				return err
			}
			defer r.rc.ReleaseBackground()

			results[i] = r.runOne(ctx, p)
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

func (r *Runner) acquireSlot(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.rc.TryAcquireBackground() {
		return nil
	}
	r.cfg.Logger.DebugContext(ctx, "waiting for worker slot", "program", name)
	return r.rc.AcquireBackground(ctx)
}

func (r *Runner) runOne(ctx context.Context, p Program) (res Result) {
	var out bytes.Buffer
	logger := r.cfg.Logger.WithProgram(p.Name())
	env := &Env{
		HeapStart: r.cfg.HeapStart,
		HeapSize:  r.cfg.HeapSize,
		RAMEnd:    r.cfg.RAMEnd,
		Out:       &out,
		Logger:    logger,
		Metrics:   r.cfg.Metrics,
		Resources: r.cfg.Resources,
	}

	res.Name = p.Name()
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			res.Outcome, res.Err = classifyPanic(rec)
		}
		res.Duration = time.Since(start)
		res.Output = out.String()

		if h := env.Heap(); h != nil {
			res.Stats = h.Stats()
			if r.cfg.Inspect != nil {
				if err := r.cfg.Inspect(ctx, p.Name(), h); err != nil {
					res.Err = errors.Join(res.Err, fmt.Errorf("inspect: %w", err))
					res.Outcome = Failed
				}
			}
			_ = h.Close()
		}
		logger.LogFixture(ctx, p.Name(), res.Outcome.String(), res.Err)
	}()

	if err := p.Run(ctx, env); err != nil {
		res.Outcome = Failed
		res.Err = err
		return res
	}
	res.Outcome = Passed
	return res
}

func classifyPanic(rec any) (Outcome, error) {
	if err, ok := rec.(error); ok {
		var halt *cortexheap.HaltError
		if errors.As(err, &halt) {
			return Halted, halt
		}
		return Failed, fmt.Errorf("fixture: panic: %w", err)
	}
	return Failed, fmt.Errorf("fixture: panic: %v", rec)
}

// AnyFailed reports whether any result failed.
func AnyFailed(results []Result) bool {
	for _, r := range results {
		if r.Outcome == Failed {
			return true
		}
	}
	return false
}
