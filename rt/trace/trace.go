// Package trace provides per-operation trace recording for the PGAS
// runtime. This package has no dependencies on rt/ — it stores pure data
// types plus a mutex, since PE worker threads record concurrently.
package trace

import "sync"

// Level controls the verbosity of operation tracing.
type Level string

const (
	// LevelNone disables tracing (zero overhead).
	LevelNone Level = "none"
	// LevelOps captures one record per runtime operation
	// (alloc, free, get, put, barrier, broadcast, reduce).
	LevelOps Level = "ops"
)

// validLevels maps accepted trace level strings.
var validLevels = map[Level]bool{
	LevelNone: true,
	LevelOps:  true,
	"":        true, // empty defaults to none
}

// IsValidLevel returns true if the given level string is a recognized trace level.
func IsValidLevel(level string) bool {
	return validLevels[Level(level)]
}

// Config controls trace collection behavior.
type Config struct {
	Level Level
}

// OpTrace collects operation records during a run. Safe for concurrent use
// by all PE threads.
type OpTrace struct {
	Config Config

	mu      sync.Mutex
	records []Record
}

// New creates an OpTrace ready for recording.
func New(config Config) *OpTrace {
	return &OpTrace{Config: config}
}

// Enabled reports whether records are being collected.
func (ot *OpTrace) Enabled() bool {
	return ot != nil && ot.Config.Level == LevelOps
}

// Record appends an operation record. No-op unless enabled.
func (ot *OpTrace) Record(rec Record) {
	if !ot.Enabled() {
		return
	}
	ot.mu.Lock()
	ot.records = append(ot.records, rec)
	ot.mu.Unlock()
}

// Records returns a copy of the collected records.
func (ot *OpTrace) Records() []Record {
	if ot == nil {
		return nil
	}
	ot.mu.Lock()
	defer ot.mu.Unlock()
	out := make([]Record, len(ot.records))
	copy(out, ot.records)
	return out
}
