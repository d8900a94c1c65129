package trace

import (
	"encoding/json"
	"io"
)

// Summary aggregates statistics from an OpTrace.
type Summary struct {
	TotalOps   int        `json:"total_ops"`
	ByOp       map[Op]int `json:"by_op"`
	BytesMoved int64      `json:"bytes_moved"` // get+put+broadcast payload bytes
	Errors     int        `json:"errors"`
}

// Summarize computes aggregate statistics from an OpTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(ot *OpTrace) *Summary {
	summary := &Summary{ByOp: make(map[Op]int)}
	if ot == nil {
		return summary
	}
	for _, rec := range ot.Records() {
		summary.TotalOps++
		summary.ByOp[rec.Op]++
		if rec.Err != "" {
			summary.Errors++
		}
		switch rec.Op {
		case OpGet, OpPut, OpBroadcast:
			summary.BytesMoved += rec.Bytes
		}
	}
	return summary
}

// WriteJSON dumps the collected records as a JSON array.
func (ot *OpTrace) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ot.Records())
}
