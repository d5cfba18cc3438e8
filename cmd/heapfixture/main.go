// Command heapfixture runs the heap fixture programs on the host.
//
// Usage:
//
//	heapfixture -program all
//	heapfixture -program vec -heap-size 256 -dump vec.cmhd -compression zstd
//	heapfixture -program init -hexdump
//	heapfixture -inspect vec.cmhd
//
// Each program prints its semihosting output followed by a one-line report.
// The exit status is 1 when any program fails; a halted oom program is not
// a failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hupe1980/cortexheap"
	"github.com/hupe1980/cortexheap/internal/dump"
	"github.com/hupe1980/cortexheap/internal/fixture"
	"github.com/hupe1980/cortexheap/internal/fs"
	"github.com/hupe1980/cortexheap/internal/memmap"
	"github.com/hupe1980/cortexheap/internal/resource"
)

var (
	program     = flag.String("program", "all", "Fixture to run: init, vec, oom, recursion, irq or all")
	heapStart   = flag.String("heap-start", fmt.Sprintf("%#08x", memmap.DefaultHeapStart), "First heap address")
	heapSize    = flag.Uint64("heap-size", uint64(memmap.DefaultHeapSize), "Heap size in bytes")
	ramEnd      = flag.String("ram-end", fmt.Sprintf("%#08x", memmap.DefaultRAMEnd), "Top of RAM (initial stack pointer)")
	logLevel    = flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	jsonLogs    = flag.Bool("json", false, "Emit JSON logs")
	dumpPath    = flag.String("dump", "", "Write a heap image per program to this file (suffixed with the program name when running several)")
	compression = flag.String("compression", "lz4", "Heap image compression: none, lz4, zstd")
	hexdump     = flag.Bool("hexdump", false, "Print the allocated heap bytes after each program")
	workers     = flag.Int64("workers", 1, "Programs to run concurrently")
	ioLimit     = flag.Int64("io-limit", 0, "Heap image write limit in bytes per second (0 = unlimited)")
	memLimit    = flag.Int64("memory-limit", 0, "Host memory all concurrent heaps may reserve, in bytes (0 = unlimited)")
	inspect     = flag.String("inspect", "", "Print a heap image written by -dump and exit")
)

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		failed bool
		err    error
	)
	if *inspect != "" {
		err = inspectImage(*inspect)
	} else {
		failed, err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "heapfixture: %v\n", err)
		os.Exit(1)
	}
	if failed {
		os.Exit(1)
	}
}

func run(ctx context.Context) (bool, error) {
	level, err := parseLevel(*logLevel)
	if err != nil {
		return false, err
	}
	logger := cortexheap.NewTextLogger(level)
	if *jsonLogs {
		logger = cortexheap.NewJSONLogger(level)
	}

	start, err := parseAddr(*heapStart)
	if err != nil {
		return false, fmt.Errorf("-heap-start: %w", err)
	}
	end, err := parseAddr(*ramEnd)
	if err != nil {
		return false, fmt.Errorf("-ram-end: %w", err)
	}
	if *workers < 1 {
		return false, fmt.Errorf("-workers: must be at least 1, got %d", *workers)
	}
	if *heapSize > 1<<32-1 {
		return false, fmt.Errorf("-heap-size: %d exceeds the 32-bit address space", *heapSize)
	}
	codec, err := dump.ParseCompression(*compression)
	if err != nil {
		return false, fmt.Errorf("-compression: %w", err)
	}

	programs := fixture.Programs()
	if *program != "all" {
		p, err := fixture.Lookup(*program)
		if err != nil {
			return false, err
		}
		programs = []fixture.Program{p}
	}

	mc := &cortexheap.BasicMetricsCollector{}
	cfg := fixture.Config{
		HeapStart: cortexheap.Addr(start),
		HeapSize:  uint32(*heapSize),
		RAMEnd:    end,
		Logger:    logger,
		Metrics:   mc,
		Resources: resource.NewController(resource.Config{
			MemoryLimitBytes:     *memLimit,
			MaxBackgroundWorkers: *workers,
			IOLimitBytesPerSec:   *ioLimit,
		}),
	}
	if *dumpPath != "" || *hexdump {
		cfg.Inspect = inspector(codec, len(programs) > 1)
	}

	results, err := fixture.NewRunner(cfg).Run(ctx, programs...)
	for _, r := range results {
		os.Stdout.WriteString(r.Output)
		report(r)
	}
	if err != nil {
		return false, err
	}

	stats := mc.GetStats()
	fmt.Printf("allocs=%d failed=%d bytes=%d oom=%d dumps=%d dump_errors=%d\n",
		stats.AllocCount, stats.AllocErrors, stats.AllocBytes, stats.OOMCount, stats.DumpCount, stats.DumpErrors)

	return fixture.AnyFailed(results), nil
}

func report(r fixture.Result) {
	line := fmt.Sprintf("%-10s %-6s used=%d/%d allocs=%d padding=%d %s",
		r.Name, r.Outcome, r.Stats.Used, r.Stats.Capacity, r.Stats.Allocs, r.Stats.BytesPadding, r.Duration.Round(time.Microsecond))
	if r.Err != nil {
		line += ": " + r.Err.Error()
	}
	fmt.Println(line)
}

// inspector writes heap images and hex views. Runs concurrently when
// -workers > 1, so every program writes its own file.
func inspector(codec dump.Compression, several bool) fixture.Inspector {
	return func(ctx context.Context, name string, h *cortexheap.Heap) error {
		if *hexdump {
			img := h.Image()
			var sb strings.Builder
			fmt.Fprintf(&sb, "%s heap %s:\n", name, h.Region())
			if err := dump.Hexdump(&sb, img.Start, img.Data); err != nil {
				return err
			}
			os.Stdout.WriteString(sb.String())
		}

		if *dumpPath == "" {
			return nil
		}
		path := dumpFileName(*dumpPath, name, several)
		return fs.WriteFile(fs.Default, path, 0o644, func(w io.Writer) error {
			_, err := h.Dump(ctx, w, codec)
			return err
		})
	}
}

// dumpFileName inserts the program name before the extension of path when
// several programs share one -dump flag.
func dumpFileName(path, name string, several bool) string {
	if !several {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "." + name + ext
}

func inspectImage(path string) error {
	return fs.ReadFile(fs.Default, path, func(r io.Reader) error {
		img, err := dump.Read(r)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("heap [%#08x, %#08x) cursor %#08x used %d/%d\n",
			img.Start, img.End, img.Cursor, img.Cursor-img.Start, img.End-img.Start)
		return dump.Hexdump(os.Stdout, img.Start, img.Data)
	})
}

func parseAddr(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("-log-level: %w", err)
	}
	return level, nil
}
