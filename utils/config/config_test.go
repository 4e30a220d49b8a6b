package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/parking-sim/utils/config"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, config.Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	c, err := config.Load([]byte(`
lot:
  spot_count: 120
traffic:
  road_rate: 12
control:
  step:
    total: 100
    interval: 0.1
  seed: 9
log:
  enable: true
  interval: 2
`))
	require.NoError(t, err)
	assert.Equal(t, 120, c.Lot.SpotCount)
	assert.Equal(t, 3, c.Lot.MainLanes)
	assert.Equal(t, 12.0, c.Traffic.RoadRate)
	assert.Equal(t, 1.5, c.Traffic.SpawnInterval)
	assert.Equal(t, int32(100), c.Control.Step.Total)
	assert.Equal(t, uint64(9), c.Control.Seed)
	assert.True(t, c.Log.Enable)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	_, err := config.Load([]byte("lot:\n  spots: 3\n"))
	assert.Error(t, err)
}

func TestLoadRejectsTooManyLanes(t *testing.T) {
	_, err := config.Load([]byte("lot:\n  main_lanes: 7\n"))
	assert.ErrorContains(t, err, "lot.main_lanes")
}

func TestValidate(t *testing.T) {
	c := config.Default()
	c.Lot.MainLanes = 0
	assert.Error(t, c.Validate())

	c = config.Default()
	c.Lot.MainLanes = config.MaxMainLanes
	assert.NoError(t, c.Validate())
	c.Lot.MainLanes = config.MaxMainLanes + 1
	assert.Error(t, c.Validate())

	c = config.Default()
	c.Control.Step.Interval = 0
	assert.Error(t, c.Validate())

	c = config.Default()
	c.Log.Enable = true
	c.Log.Interval = 0
	assert.Error(t, c.Validate())
}
