package fixture

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cortexheap"
	"github.com/hupe1980/cortexheap/internal/dump"
	"github.com/hupe1980/cortexheap/internal/resource"
	"github.com/hupe1980/cortexheap/internal/vec"
)

func newEnv(out *bytes.Buffer) *Env {
	cfg := DefaultConfig()
	return &Env{
		HeapStart: cfg.HeapStart,
		HeapSize:  cfg.HeapSize,
		RAMEnd:    cfg.RAMEnd,
		Out:       out,
		Logger:    cortexheap.NoopLogger(),
		Metrics:   cortexheap.NoopMetricsCollector{},
	}
}

func TestInit(t *testing.T) {
	var out bytes.Buffer
	env := newEnv(&out)

	require.NoError(t, Init{}.Run(t.Context(), env))
	defer env.Heap().Close()

	assert.Equal(t, "[0, 1, 2]\n", out.String())
	assert.Equal(t, uint32(12), env.Heap().Stats().Used)
}

func TestVec(t *testing.T) {
	var out bytes.Buffer
	env := newEnv(&out)

	require.NoError(t, Vec{N: 16}.Run(t.Context(), env))
	defer env.Heap().Close()

	assert.Equal(t, "[0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15]\npopped 16\n", out.String())

	// Capacities 4, 8 and 16: the two outgrown blocks leak.
	stats := env.Heap().Stats()
	assert.Equal(t, uint32(16+32+64), stats.Used)
	assert.Equal(t, uint64(2), stats.Deallocs)
}

func TestVec_OOMReturnsError(t *testing.T) {
	env := newEnv(nil)
	h, err := env.NewHeap(cortexheap.WithOOMHandler(cortexheap.ReturnError))
	require.NoError(t, err)
	defer h.Close()

	// Vec.Run initializes its own heap; drive the same pushes directly.
	xs, err := vec.New(heapAllocator{ctx: t.Context(), heap: h}, 0)
	require.NoError(t, err)
	for i := range uint32(16) {
		require.NoError(t, xs.Push(i))
	}
	assert.ErrorIs(t, xs.Push(16), cortexheap.ErrOutOfMemory)
	assert.Equal(t, uint32(16), xs.Len())
}

func TestOOM_Halts(t *testing.T) {
	var out bytes.Buffer
	env := newEnv(&out)
	defer func() {
		env.Heap().Close()

		var halt *cortexheap.HaltError
		rec := recover()
		require.NotNil(t, rec)
		require.ErrorAs(t, rec.(error), &halt)
		assert.Equal(t, cortexheap.Layout{Size: 128, Align: 4}, halt.Layout)
		assert.Equal(t, "len=1 cap=4 remaining=112\nlen=5 cap=8 remaining=80\nlen=9 cap=16 remaining=16\n", out.String())
	}()

	_ = OOM{}.Run(t.Context(), env)
	t.Fatal("oom fixture returned")
}

func TestRecursion(t *testing.T) {
	var out bytes.Buffer
	env := newEnv(&out)

	require.NoError(t, Recursion{N: 20, FrameSize: 32}.Run(t.Context(), env))
	defer env.Heap().Close()

	assert.Equal(t, "fib(20) = 6765\nstack high water: 640 bytes\n", out.String())
}

func TestRecursion_StackOverflow(t *testing.T) {
	var out bytes.Buffer
	env := newEnv(&out)
	// 256 bytes between the heap end and the stack top: eight frames.
	env.RAMEnd = uint32(env.HeapStart) + env.HeapSize + 256

	err := Recursion{N: 20, FrameSize: 32}.Run(t.Context(), env)
	defer env.Heap().Close()

	assert.ErrorIs(t, err, ErrStackOverflow)
}

func TestRecursion_RAMEndBelowHeap(t *testing.T) {
	env := newEnv(nil)
	env.RAMEnd = uint32(env.HeapStart)

	err := Recursion{N: 1, FrameSize: 32}.Run(t.Context(), env)
	defer env.Heap().Close()

	assert.Error(t, err)
}

func TestIRQ(t *testing.T) {
	var out bytes.Buffer
	env := newEnv(&out)
	env.HeapSize = 4096

	require.NoError(t, IRQ{Handlers: 4, BlockSize: 8}.Run(t.Context(), env))
	defer env.Heap().Close()

	// 4096 / 8 / 5 = 102 blocks per context.
	assert.Equal(t, "5 contexts allocated 510 blocks, 4080 bytes, no overlap\n", out.String())
}

func TestIRQ_UnalignedHeapStart(t *testing.T) {
	var out bytes.Buffer
	env := newEnv(&out)
	env.HeapStart += 4
	env.HeapSize = 120

	require.NoError(t, IRQ{Handlers: 4, BlockSize: 8}.Run(t.Context(), env))
	defer env.Heap().Close()

	// 4 bytes of padding leave 116: 14 blocks, 2 per context.
	assert.Equal(t, "5 contexts allocated 10 blocks, 80 bytes, no overlap\n", out.String())
	assert.Equal(t, uint64(4), env.Heap().Stats().BytesPadding)
}

func TestIRQ_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		p    IRQ
	}{
		{"zero block size", IRQ{Handlers: 4, BlockSize: 0}},
		{"block size not a power of two", IRQ{Handlers: 4, BlockSize: 12}},
		{"negative handlers", IRQ{Handlers: -1, BlockSize: 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(nil)
			err := tt.p.Run(t.Context(), env)
			defer env.Heap().Close()

			assert.Error(t, err)
			assert.Nil(t, env.Heap())
		})
	}
}

func TestIRQ_HeapTooSmall(t *testing.T) {
	env := newEnv(nil)
	env.HeapSize = 16

	err := IRQ{Handlers: 4, BlockSize: 8}.Run(t.Context(), env)
	defer env.Heap().Close()

	assert.Error(t, err)
}

func TestStack(t *testing.T) {
	s, err := NewStack(0x20000100, 0x20000080)
	require.NoError(t, err)

	require.NoError(t, s.Push(20)) // rounded to 24
	assert.Equal(t, uint32(0x200000e8), s.SP())
	require.NoError(t, s.Push(104))
	assert.Equal(t, uint32(0x20000080), s.SP())

	assert.ErrorIs(t, s.Push(1), ErrStackOverflow)

	s.Pop(104)
	s.Pop(20)
	assert.Equal(t, uint32(0x20000100), s.SP())
	assert.Equal(t, uint32(128), s.HighWater())

	_, err = NewStack(0x20000000, 0x20000080)
	assert.Error(t, err)
}

func TestLookup(t *testing.T) {
	for _, p := range Programs() {
		got, err := Lookup(p.Name())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	_, err := Lookup("blink")
	assert.ErrorIs(t, err, ErrUnknownProgram)
}

func TestEnv_NewHeapTwice(t *testing.T) {
	env := newEnv(nil)
	_, err := env.NewHeap()
	require.NoError(t, err)
	defer env.Heap().Close()

	_, err = env.NewHeap()
	assert.Error(t, err)
}

type failingProgram struct{}

func (failingProgram) Name() string { return "failing" }

func (failingProgram) Run(context.Context, *Env) error { return errors.New("boom") }

type panickingProgram struct{}

func (panickingProgram) Name() string { return "panicking" }

func (panickingProgram) Run(context.Context, *Env) error { panic("unexpected") }

func TestRunner(t *testing.T) {
	mc := &cortexheap.BasicMetricsCollector{}
	cfg := DefaultConfig()
	cfg.Metrics = mc

	// One worker keeps Inspect calls sequential.
	cfg.Resources = resource.NewController(resource.Config{MaxBackgroundWorkers: 1})

	var dumped []string
	cfg.Inspect = func(ctx context.Context, name string, h *cortexheap.Heap) error {
		var buf bytes.Buffer
		if _, err := h.Dump(ctx, &buf, cortexheap.CompressionLZ4); err != nil {
			return err
		}
		img, err := dump.Read(&buf)
		if err != nil {
			return err
		}
		if img.Cursor != uint32(h.Cursor()) {
			return errors.New("cursor mismatch")
		}
		dumped = append(dumped, name)
		return nil
	}
	programs := append(Programs(), failingProgram{}, panickingProgram{})
	results, err := NewRunner(cfg).Run(t.Context(), programs...)
	require.NoError(t, err)
	require.Len(t, results, len(programs))

	outcomes := map[string]Outcome{}
	for _, r := range results {
		outcomes[r.Name] = r.Outcome
	}
	assert.Equal(t, map[string]Outcome{
		"init":      Passed,
		"vec":       Passed,
		"oom":       Halted,
		"recursion": Passed,
		"irq":       Passed,
		"failing":   Failed,
		"panicking": Failed,
	}, outcomes)

	assert.Equal(t, "[0, 1, 2]\n", results[0].Output)
	assert.ErrorIs(t, results[2].Err, cortexheap.ErrOutOfMemory)
	assert.EqualError(t, results[5].Err, "boom")
	assert.ErrorContains(t, results[6].Err, "unexpected")
	assert.Equal(t, uint32(12), results[0].Stats.Used)

	assert.True(t, AnyFailed(results))
	assert.False(t, AnyFailed(results[:5]))

	assert.ElementsMatch(t, []string{"init", "vec", "oom", "recursion", "irq"}, dumped)
	assert.Equal(t, int64(1), mc.GetStats().OOMCount)
	assert.Equal(t, int64(5), mc.GetStats().DumpCount)
}

func TestRunner_MemoryBudget(t *testing.T) {
	cfg := DefaultConfig()
	// Room for one 128-byte heap at a time.
	cfg.Resources = resource.NewController(resource.Config{MemoryLimitBytes: 128, MaxBackgroundWorkers: 1})

	results, err := NewRunner(cfg).Run(t.Context(), Init{}, Vec{N: 4})
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, Passed, r.Outcome, r.Err)
	}
	assert.Equal(t, int64(0), cfg.Resources.MemoryUsage())
}

func TestRunner_HeapOverMemoryLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resources = resource.NewController(resource.Config{MemoryLimitBytes: int64(cfg.HeapSize) / 2})

	results, err := NewRunner(cfg).Run(t.Context(), Init{})
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	assert.ErrorContains(t, err, "128-byte heap exceeds the 64-byte memory limit")
	assert.Nil(t, results)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunner_WaitsForSlot(t *testing.T) {
	var logs lockedBuffer
	rc := resource.NewController(resource.Config{MaxBackgroundWorkers: 1})

	cfg := DefaultConfig()
	cfg.Resources = rc
	cfg.Logger = cortexheap.NewLogger(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Hold the only slot so the program has to queue.
	require.True(t, rc.TryAcquireBackground())

	done := make(chan []Result)
	go func() {
		results, err := NewRunner(cfg).Run(t.Context(), Init{})
		assert.NoError(t, err)
		done <- results
	}()

	assert.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "waiting for worker slot")
	}, time.Second, time.Millisecond)

	rc.ReleaseBackground()
	results := <-done
	require.Len(t, results, 1)
	assert.Equal(t, Passed, results[0].Outcome)
	assert.Contains(t, logs.String(), "program=init")
}

func TestRunner_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	cfg := DefaultConfig()
	cfg.Resources = resource.NewController(resource.Config{MaxBackgroundWorkers: 1})

	results, err := NewRunner(cfg).Run(ctx, Init{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Failed, results[0].Outcome)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "passed", Passed.String())
	assert.Equal(t, "halted", Halted.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "Outcome(9)", Outcome(9).String())
}
