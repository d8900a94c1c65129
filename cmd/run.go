package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pgasrt/pgasrt/rt"
	"github.com/pgasrt/pgasrt/rt/trace"
)

var traceOut string // path for the JSON operation trace dump

// runCmd executes the SPMD smoke program: every PE writes its id into its
// slot of a shared table on PE 0, barriers, and then verifies it can see
// every other PE's write. This is the minimal end-to-end exercise of
// alloc, put, barrier and get.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the SPMD smoke program across all PEs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig(cmd)
		if err != nil {
			return err
		}
		r, err := rt.Init(cfg)
		if err != nil {
			return err
		}
		defer r.Close()

		n := r.NumPEs()
		var table rt.Handle

		// PE 0 allocates the shared table, then the handle is broadcast
		// by closure capture: allocation happens before the SPMD phase.
		pe0, err := r.PE(0)
		if err != nil {
			return err
		}
		if table, err = pe0.Malloc(int64(n) * 8); err != nil {
			return err
		}

		err = r.Run(func(pe *rt.PE) error {
			if err := pe.PutUint64(0, table, int64(pe.ID())*8, uint64(pe.ID())+1); err != nil {
				return err
			}
			if err := pe.Barrier(); err != nil {
				return err
			}
			for i := 0; i < n; i++ {
				v, err := pe.GetUint64(0, table, int64(i)*8)
				if err != nil {
					return err
				}
				if v != uint64(i)+1 {
					return fmt.Errorf("PE %d: slot %d holds %d, want %d", pe.ID(), i, v, i+1)
				}
			}
			logrus.Debugf("PE %d observed all %d writes", pe.ID(), n)
			return nil
		})
		if err != nil {
			return err
		}

		if err := pe0.Free(table); err != nil {
			return err
		}
		if err := writeTrace(r); err != nil {
			return err
		}
		fmt.Printf("ok: %d PEs all observed each other's writes\n", n)
		return nil
	},
}

// writeTrace dumps the operation trace to --trace-out when tracing was on.
func writeTrace(r *rt.Runtime) error {
	if traceOut == "" || !r.Trace().Enabled() {
		return nil
	}
	f, err := os.Create(traceOut)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := r.Trace().WriteJSON(f); err != nil {
		return err
	}
	s := trace.Summarize(r.Trace())
	logrus.Infof("trace: %d ops (%d errors), %d bytes moved -> %s",
		s.TotalOps, s.Errors, s.BytesMoved, traceOut)
	return nil
}

func init() {
	runCmd.Flags().StringVar(&traceOut, "trace-out", "", "Write the JSON operation trace to this file")
}
