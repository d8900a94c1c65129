package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgasrt/pgasrt/rt"
	"github.com/pgasrt/pgasrt/rt/trace"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigFile_FullConfig(t *testing.T) {
	path := writeTempConfig(t, `
pes: 4
region_size: 65536
slots: 512
barrier_timeout_ms: 1500
pin: true
trace: ops
`)
	fc, err := LoadConfigFile(path)
	require.NoError(t, err)

	cfg := rt.DefaultConfig()
	fc.Apply(&cfg)
	assert.Equal(t, 4, cfg.PEs)
	assert.Equal(t, int64(65536), cfg.RegionSize)
	assert.Equal(t, 512, cfg.Slots)
	assert.Equal(t, 1500*time.Millisecond, cfg.BarrierTimeout)
	assert.True(t, cfg.PinThreads)
	assert.Equal(t, trace.LevelOps, cfg.TraceLevel)
}

func TestLoadConfigFile_PartialConfig_OnlyOverridesSetFields(t *testing.T) {
	path := writeTempConfig(t, "pes: 2\n")
	fc, err := LoadConfigFile(path)
	require.NoError(t, err)

	cfg := rt.DefaultConfig()
	fc.Apply(&cfg)
	assert.Equal(t, 2, cfg.PEs)
	assert.Equal(t, int64(rt.DefaultRegionSize), cfg.RegionSize)
	assert.Equal(t, rt.DefaultSlots, cfg.Slots)
}

func TestLoadConfigFile_ExplicitZero_StillApplies(t *testing.T) {
	// Absent and zero are different: pes: 0 must override (and later fail
	// validation) rather than silently keep the default.
	path := writeTempConfig(t, "pes: 0\n")
	fc, err := LoadConfigFile(path)
	require.NoError(t, err)

	cfg := rt.DefaultConfig()
	fc.Apply(&cfg)
	assert.Equal(t, 0, cfg.PEs)
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigFile_MissingFile_Fails(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigFile_MalformedYAML_Fails(t *testing.T) {
	path := writeTempConfig(t, "pes: [not a number\n")
	_, err := LoadConfigFile(path)
	assert.Error(t, err)
}

func TestRowBlock_CoversAllRowsExactlyOnce(t *testing.T) {
	for _, tc := range []struct{ n, dim int }{
		{1, 10}, {3, 10}, {4, 4}, {8, 5}, {4, 0},
	} {
		covered := 0
		prevHi := 0
		for pe := 0; pe < tc.n; pe++ {
			lo, hi := rowBlock(pe, tc.n, tc.dim)
			assert.Equal(t, prevHi, lo, "n=%d dim=%d pe=%d blocks must be contiguous", tc.n, tc.dim, pe)
			assert.LessOrEqual(t, lo, hi)
			covered += hi - lo
			prevHi = hi
		}
		assert.Equal(t, tc.dim, covered, "n=%d dim=%d", tc.n, tc.dim)
	}
}
