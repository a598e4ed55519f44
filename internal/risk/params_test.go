package risk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestDefaultParams tests the shipped defaults pass validation
func TestDefaultParams(t *testing.T) {
	params := DefaultParams()
	assert.NoError(t, params.Validate())
	assert.Equal(t, 0.02, params.MaxPositionSize)
	assert.Equal(t, 0.05, params.MaxPortfolioRisk)
	assert.Equal(t, 2.0, params.StopLossATRFactor)
	assert.Equal(t, 5, params.TimeStopDays)
}

// TestLoadParams_PartialFileKeepsDefaults tests JSON overlay behavior
func TestLoadParams_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk.json")
	err := os.WriteFile(path, []byte(`{"max_position_size": 0.01, "time_stop_days": 10}`), 0644)
	assert.NoError(t, err)

	params, err := LoadParams(path)
	assert.NoError(t, err)
	assert.Equal(t, 0.01, params.MaxPositionSize)
	assert.Equal(t, 10, params.TimeStopDays)
	// Untouched options keep their defaults.
	assert.Equal(t, 0.05, params.MaxPortfolioRisk)
	assert.Equal(t, 2.0, params.StopLossATRFactor)
}

// TestLoadParams_MissingFile tests the read failure path
func TestLoadParams_MissingFile(t *testing.T) {
	_, err := LoadParams(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

// TestLoadParams_InvalidValuesRejected tests that validation runs on load
func TestLoadParams_InvalidValuesRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk.json")
	err := os.WriteFile(path, []byte(`{"max_position_size": 1.5}`), 0644)
	assert.NoError(t, err)

	_, err = LoadParams(path)
	assert.Error(t, err)
}

// TestValidate tests the individual bounds
func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero position size", func(p *Params) { p.MaxPositionSize = 0 }},
		{"position size above one", func(p *Params) { p.MaxPositionSize = 1.01 }},
		{"zero portfolio risk", func(p *Params) { p.MaxPortfolioRisk = 0 }},
		{"zero stop factor", func(p *Params) { p.StopLossATRFactor = 0 }},
		{"zero scaling factor", func(p *Params) { p.PositionScalingFactor = 0 }},
		{"zero time stop", func(p *Params) { p.TimeStopDays = 0 }},
	}
	for _, tc := range cases {
		p := DefaultParams()
		tc.mutate(p)
		assert.Error(t, p.Validate(), tc.name)
	}
}
