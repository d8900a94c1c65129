package rt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgasrt/pgasrt/rt/trace"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.GreaterOrEqual(t, cfg.PEs, 1)
	assert.LessOrEqual(t, cfg.PEs, defaultMaxPEs)
	assert.Equal(t, int64(DefaultRegionSize), cfg.RegionSize)
	assert.Equal(t, DefaultSlots, cfg.Slots)
	assert.Equal(t, time.Duration(0), cfg.BarrierTimeout)
	require.NoError(t, cfg.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv(EnvPEs, "3")
	t.Setenv(EnvRegionSize, "8192")
	t.Setenv(EnvSlots, "99")
	t.Setenv(EnvPinThreads, "1")
	t.Setenv(EnvBarrierTimeout, "250")
	t.Setenv(EnvTrace, "ops")

	cfg := FromEnv()
	assert.Equal(t, 3, cfg.PEs)
	assert.Equal(t, int64(8192), cfg.RegionSize)
	assert.Equal(t, 99, cfg.Slots)
	assert.True(t, cfg.PinThreads)
	assert.Equal(t, 250*time.Millisecond, cfg.BarrierTimeout)
	assert.Equal(t, trace.LevelOps, cfg.TraceLevel)
}

func TestFromEnv_MalformedValuesIgnored(t *testing.T) {
	t.Setenv(EnvPEs, "banana")
	t.Setenv(EnvTrace, "everything")

	cfg := FromEnv()
	assert.Equal(t, DefaultConfig().PEs, cfg.PEs)
	assert.Equal(t, trace.Level(""), cfg.TraceLevel)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{PEs: 4, RegionSize: 4096, Slots: 64}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name string
		mut  func(*Config)
		want error
	}{
		{"zero PEs", func(c *Config) { c.PEs = 0 }, ErrInvalidPECount},
		{"too many PEs", func(c *Config) { c.PEs = MaxPEs + 1 }, ErrInvalidPECount},
		{"tiny region", func(c *Config) { c.RegionSize = 4 }, ErrInvalidRegionSize},
		{"unaligned region", func(c *Config) { c.RegionSize = 4097 }, ErrInvalidRegionSize},
		{"zero slots", func(c *Config) { c.Slots = 0 }, ErrInvalidSlotCount},
		{"negative slots", func(c *Config) { c.Slots = -1 }, ErrInvalidSlotCount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mut(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tc.want)
		})
	}

	bad := valid
	bad.TraceLevel = "everything"
	assert.Error(t, bad.Validate())
}

func TestConfig_Validate_MaxPEsBoundary(t *testing.T) {
	cfg := Config{PEs: MaxPEs, RegionSize: 4096, Slots: 64}
	assert.NoError(t, cfg.Validate())
}
