package emulator

import "time"

const (
	// Delay between two evaluations of a WAIT_REG_MEM condition
	DEFAULT_POLL_INTERVAL = time.Millisecond
	// Frequency of the reference clock reported by EVENT_WRITE_EOP
	GPU_CLOCK_FREQUENCY = 100_000_000
)

// Source of time for the command processor. Polling waits go through it so
// they can be driven without wall clock delays
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// Clock backed by the time package
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

func (SystemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

// Keeps track of the emulated GPU reference clock
type TimeHandler struct {
	Clock Clock
	Epoch time.Time // Time at which the counter was zero
}

// Returns a new TimeHandler whose counter starts now
func NewTimeHandler(clock Clock) *TimeHandler {
	return &TimeHandler{Clock: clock, Epoch: clock.Now()}
}

// Returns the number of GPU_CLOCK_FREQUENCY ticks since the epoch
func (th *TimeHandler) Ticks() uint64 {
	elapsed := th.Clock.Now().Sub(th.Epoch)
	if elapsed < 0 {
		return 0
	}
	// split to avoid overflowing int64 nanoseconds * frequency
	secs := uint64(elapsed / time.Second)
	nanos := uint64(elapsed % time.Second)
	return secs*GPU_CLOCK_FREQUENCY + nanos*GPU_CLOCK_FREQUENCY/uint64(time.Second)
}
