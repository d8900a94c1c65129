package rt

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/pgasrt/pgasrt/rt/trace"
)

const (
	// MaxPEs is the largest PE count the directory supports.
	MaxPEs = 1024

	// DefaultSlots is the allocation slot capacity of the shared region.
	DefaultSlots = 2048

	// DefaultRegionSize is the per-PE shared region size in bytes.
	DefaultRegionSize = 1 << 20

	// defaultMaxPEs caps the derived default PE count, matching the
	// original thread-per-PE deployments this emulates.
	defaultMaxPEs = 16

	// allocAlign is the allocation granularity. All offsets and rounded
	// sizes are multiples of this, which keeps 8-byte transfers aligned.
	allocAlign = 8
)

// Environment variables recognized by FromEnv.
const (
	EnvPEs            = "PGASRT_PES"
	EnvRegionSize     = "PGASRT_REGION_SIZE"
	EnvSlots          = "PGASRT_SLOTS"
	EnvPinThreads     = "PGASRT_PIN"
	EnvBarrierTimeout = "PGASRT_BARRIER_TIMEOUT"
	EnvTrace          = "PGASRT_TRACE"
)

// Config groups the runtime parameters consumed by Init.
type Config struct {
	PEs            int           // number of processing elements (worker threads)
	RegionSize     int64         // bytes of shared arena per PE
	Slots          int           // allocation slot capacity
	BarrierTimeout time.Duration // 0 means barrier rounds wait forever
	PinThreads     bool          // pin each PE thread to a CPU (Linux only)
	TraceLevel     trace.Level   // per-operation tracing ("" or "none" disables)
}

// DefaultConfig returns the configuration used when nothing is specified:
// one PE per available CPU (capped), 1 MiB regions, 2048 slots, no timeout.
func DefaultConfig() Config {
	pes := runtime.GOMAXPROCS(0)
	if pes > defaultMaxPEs {
		pes = defaultMaxPEs
	}
	return Config{
		PEs:        pes,
		RegionSize: DefaultRegionSize,
		Slots:      DefaultSlots,
	}
}

// FromEnv returns DefaultConfig overridden by any recognized environment
// variables. Malformed values are ignored in favor of the default, except
// that Validate still rejects out-of-range results at Init.
func FromEnv() Config {
	cfg := DefaultConfig()
	if v, ok := envInt(EnvPEs); ok {
		cfg.PEs = v
	}
	if v, ok := envInt(EnvRegionSize); ok {
		cfg.RegionSize = int64(v)
	}
	if v, ok := envInt(EnvSlots); ok {
		cfg.Slots = v
	}
	if v := os.Getenv(EnvPinThreads); v == "1" || v == "true" {
		cfg.PinThreads = true
	}
	if v, ok := envInt(EnvBarrierTimeout); ok {
		cfg.BarrierTimeout = time.Duration(v) * time.Millisecond
	}
	if v := os.Getenv(EnvTrace); trace.IsValidLevel(v) {
		cfg.TraceLevel = trace.Level(v)
	}
	return cfg
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate checks the configuration against the runtime's hard limits.
func (c Config) Validate() error {
	if c.PEs < 1 || c.PEs > MaxPEs {
		return fmt.Errorf("%w: %d (want 1..%d)", ErrInvalidPECount, c.PEs, MaxPEs)
	}
	if c.RegionSize < allocAlign || c.RegionSize%allocAlign != 0 {
		return fmt.Errorf("%w: %d bytes (want positive multiple of %d)",
			ErrInvalidRegionSize, c.RegionSize, allocAlign)
	}
	if c.Slots < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidSlotCount, c.Slots)
	}
	if !trace.IsValidLevel(string(c.TraceLevel)) {
		return fmt.Errorf("rt: unknown trace level %q", c.TraceLevel)
	}
	return nil
}
