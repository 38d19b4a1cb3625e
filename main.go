package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/bradleyjkemp/memviz"
	"github.com/zeozeozeo/gopm4/capture"
	"github.com/zeozeozeo/gopm4/config"
	"github.com/zeozeozeo/gopm4/emulator"
	"github.com/zeozeozeo/gopm4/logger"
	"github.com/zeozeozeo/gopm4/renderer"
	"github.com/zeozeozeo/gopm4/statsview"
	"github.com/zeozeozeo/gopm4/telemetry"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	// parse arguments
	capturePath := flag.String("capture", cfg.Capture, "path to the capture database")
	importPath := flag.String("import", "", "raw dump to import into the capture before replaying")
	demo := flag.Bool("demo", false, "run the built-in demo stream (recorded into -capture if set)")
	window := flag.Bool("window", false, "plot draw calls in a window")
	stats := flag.Bool("statsview", false, "serve runtime statistics")
	memvizPath := flag.String("memviz", "", "write the final draw state graph to a dot file")
	watch := flag.String("watch", "", "comma separated register offsets to watch")
	verbose := flag.Bool("verbose", cfg.Verbose, "log every packet")
	flag.Parse()

	if cfg.LogEcho {
		logger.SetEcho(os.Stderr)
	}
	if *stats {
		statsview.Launch(os.Stdout)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OtelEndpoint, cfg.OtelEnabled)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	// open capture
	var store *capture.Store
	if *capturePath != "" {
		store, err = capture.Open(*capturePath)
		if err != nil {
			log.Fatal(err)
		}
		defer store.Close()
	}
	if *importPath != "" {
		if store == nil {
			log.Fatal("-import needs a capture database")
		}
		importDump(ctx, store, *importPath)
	}
	if store == nil && !*demo {
		flag.Usage()
		os.Exit(2)
	}

	// start emulator
	mem, err := emulator.NewGuestMemory(uint64(cfg.MemoryBase), uint64(cfg.MemorySize))
	if err != nil {
		log.Fatal(err)
	}
	defer mem.Close()

	irq := emulator.NewIrqState()
	irq.OnRaise = func(id emulator.Interrupt) {
		logger.Logf(logger.Allow, "irq", "raised %s", id)
	}

	debugger := emulator.NewDebugger()
	for _, reg := range parseWatch(*watch) {
		debugger.AddWatchpoint(reg)
	}

	var rasterizer emulator.Rasterizer = emulator.NewDrawData(0)
	var viewer *renderer.Viewer
	if *window {
		viewer = renderer.NewViewer()
		rasterizer = viewer
	}

	perm := logger.Deny
	if *verbose {
		perm = logger.Allow
	}

	proc := emulator.NewProcessor(
		emulator.WithRasterizer(rasterizer),
		emulator.WithMemory(mem),
		emulator.WithInterrupts(irq),
		emulator.WithFences(emulator.NewMemoryFences(mem, irq, emulator.SystemClock{})),
		emulator.WithPollInterval(cfg.PollInterval),
		emulator.WithDebugger(debugger),
		emulator.WithVerbose(perm),
		emulator.WithFatalHandler(func(err error) {
			log.Printf("command processor stopped: %v", err)
		}),
	)
	defer proc.Close()

	start := time.Now()
	run := func(ctx context.Context) error {
		if *demo {
			return runDemo(ctx, proc, store, uint64(cfg.MemoryBase))
		}
		return replay(ctx, proc, store)
	}

	if viewer != nil {
		// ebiten must own the main goroutine
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return run(gctx)
		})
		g.Go(func() error {
			<-gctx.Done()
			viewer.Stop()
			return nil
		})
		err = viewer.Run()
		stop()
		if gerr := g.Wait(); gerr != nil && !errors.Is(gerr, context.Canceled) && err == nil {
			err = gerr
		}
	} else {
		err = run(ctx)
	}

	logger.Tail(os.Stdout, cfg.LogTail)
	if err != nil {
		log.Printf("error: %v", err)
		os.Exit(1)
	}

	state := proc.Registers().DrawState()
	log.Printf("processed in %s, irq status 0x%04x", time.Since(start), irq.Status())
	log.Printf("draw state: %s", state)
	if *memvizPath != "" {
		dumpDrawState(*memvizPath, &state)
	}
}

// Submits every captured buffer in order and waits for the processor
func replay(ctx context.Context, proc *emulator.Processor, store *capture.Store) error {
	err := store.Each(ctx, func(rec capture.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return proc.Submit(rec.Words)
	})
	if err != nil {
		return err
	}
	return proc.WaitIdle()
}

func importDump(ctx context.Context, store *capture.Store, path string) {
	log.Printf("importing dump \"%s\"", path)
	start := time.Now()

	file, err := os.Open(path)
	if err != nil {
		log.Fatal(err)
	}
	defer file.Close()

	n, err := store.Import(ctx, file)
	if err != nil {
		log.Fatalf("import: %v", err)
	}
	log.Printf("imported %d buffers in %s", n, time.Since(start))
}

// Parses "0xa1fc,0xc24c" into absolute register offsets
func parseWatch(list string) []uint32 {
	var regs []uint32
	for _, field := range strings.Split(list, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseUint(field, 0, 32)
		if err != nil || v >= emulator.NUM_REGS {
			log.Fatalf("invalid watch register %q", field)
		}
		regs = append(regs, uint32(v))
	}
	return regs
}

func dumpDrawState(path string, state *emulator.DrawState) {
	file, err := os.Create(path)
	if err != nil {
		log.Printf("memviz: %v", err)
		return
	}
	defer file.Close()

	memviz.Map(file, state)
	fmt.Printf("draw state graph written to %s\n", path)
}
