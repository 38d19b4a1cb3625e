package emulator

import (
	"context"
	"sync"
	"time"

	"github.com/zeozeozeo/gopm4/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/zeozeozeo/gopm4/emulator"

// Graphics command processor. Buffers handed to Submit are executed in
// submission order by a single goroutine started by NewProcessor
type Processor struct {
	dispatcher *Dispatcher
	queue      *SubmissionQueue
	tracer     trace.Tracer
	onFatal    func(err error)

	cancel context.CancelFunc
	done   chan struct{}

	errMu sync.Mutex
	err   error
}

// Configures a Processor
type Option func(p *Processor)

// Sets the rendering backend
func WithRasterizer(r Rasterizer) Option {
	return func(p *Processor) { p.dispatcher.Rasterizer = r }
}

// Sets the fence collaborator used by EVENT_WRITE_EOS/EOP
func WithFences(f FenceSignaler) Option {
	return func(p *Processor) { p.dispatcher.Fences = f }
}

// Sets the interrupt collaborator
func WithInterrupts(irq InterruptController) Option {
	return func(p *Processor) { p.dispatcher.Interrupts = irq }
}

// Sets the guest memory used by WRITE_DATA and WAIT_REG_MEM
func WithMemory(mem Memory) Option {
	return func(p *Processor) { p.dispatcher.Memory = mem }
}

// Sets the clock WAIT_REG_MEM sleeps on
func WithClock(clock Clock) Option {
	return func(p *Processor) { p.dispatcher.Clock = clock }
}

// Sets the delay between two WAIT_REG_MEM polls
func WithPollInterval(d time.Duration) Option {
	return func(p *Processor) { p.dispatcher.PollInterval = d }
}

// Attaches a debugger
func WithDebugger(debugger *Debugger) Option {
	return func(p *Processor) { p.dispatcher.Debugger = debugger }
}

// Sets a function called before every packet is executed
func WithObserver(fn func(bufID uint64, pkt Packet)) Option {
	return func(p *Processor) { p.dispatcher.Observer = fn }
}

// Sets the logging permission for per packet diagnostics
func WithVerbose(perm logger.Permission) Option {
	return func(p *Processor) { p.dispatcher.Verbose = perm }
}

// Sets the tracer used to create one span per command buffer
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Processor) { p.tracer = tracer }
}

// Sets the function called from the processing loop when a protocol
// violation stops it. The default panics
func WithFatalHandler(fn func(err error)) Option {
	return func(p *Processor) { p.onFatal = fn }
}

// Returns a new Processor over a fresh register file and starts its
// processing loop
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		dispatcher: NewDispatcher(NewRegisters()),
		queue:      NewSubmissionQueue(),
		tracer:     otel.Tracer(tracerName),
		onFatal: func(err error) {
			panic(err)
		},
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.process(ctx)

	return p
}

// Queues a command buffer for execution. `words` must stay valid and
// unchanged until the processor is idle
func (p *Processor) Submit(words []uint32) error {
	_, err := p.queue.Submit(words)
	return err
}

// Blocks until every submitted buffer has been executed. Returns the fatal
// error if the processing loop stopped on a protocol violation, or
// ErrClosed if it was shut down with work pending
func (p *Processor) WaitIdle() error {
	if !p.queue.WaitIdle() {
		if err := p.Err(); err != nil {
			return err
		}
		return ErrClosed
	}
	return p.Err()
}

// Returns the protocol violation that stopped the processing loop, if any
func (p *Processor) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

// Returns the register file. It must only be read while the processor is
// idle or stopped
func (p *Processor) Registers() *Registers {
	return p.dispatcher.Regs
}

// Stops the processing loop and waits for it to exit. A buffer being
// executed is finished first, queued buffers are dropped
func (p *Processor) Close() {
	_ = p.Shutdown(context.Background())
}

// Like Close but gives up waiting when `ctx` is done. The loop can only be
// stuck on a WAIT_REG_MEM whose condition never becomes true
func (p *Processor) Shutdown(ctx context.Context) error {
	p.cancel()
	p.queue.Close()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Processor) process(ctx context.Context) {
	defer close(p.done)

	for ctx.Err() == nil {
		cmdbuf, ok := p.queue.Dequeue(ctx)
		if !ok {
			return
		}

		err := p.execute(ctx, cmdbuf)
		if err != nil {
			// the error must be visible before WaitIdle callers are released
			p.errMu.Lock()
			p.err = err
			p.errMu.Unlock()
			p.queue.Close()
		}
		p.queue.Done()

		if err != nil {
			logger.Logf(logger.Allow, "cp", "fatal: %v", err)
			p.onFatal(err)
			return
		}
	}
}

func (p *Processor) execute(ctx context.Context, cmdbuf CommandBuffer) error {
	_, span := p.tracer.Start(ctx, "ProcessCmdList", trace.WithAttributes(
		attribute.Int64("cp.buffer.id", int64(cmdbuf.ID)),
		attribute.Int("cp.buffer.words", len(cmdbuf.Words)),
	))
	defer span.End()

	// a buffer once started always runs to completion, cancellation is only
	// observed between buffers
	err := p.dispatcher.processBuffer(cmdbuf)

	span.SetAttributes(attribute.Int64("cp.buffer.packets", int64(p.dispatcher.PacketCount())))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
