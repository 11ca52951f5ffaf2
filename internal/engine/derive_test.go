package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverableUSD(t *testing.T) {
	p := DefaultParams()

	got := p.RecoverableUSD(ptr(1000.0))
	require.NotNil(t, got)
	assert.InDelta(t, 40_000_000.0, *got, 1e-6)

	assert.Nil(t, p.RecoverableUSD(nil))

	zero := p.RecoverableUSD(ptr(0))
	require.NotNil(t, zero)
	assert.Equal(t, 0.0, *zero)
}

func TestRecoverableUSDMonotonic(t *testing.T) {
	p := DefaultParams()
	prev := *p.RecoverableUSD(ptr(-10))
	for kt := -9.5; kt < 5000; kt += 37.25 {
		cur := *p.RecoverableUSD(ptr(kt))
		assert.GreaterOrEqual(t, cur, prev, "kt=%v", kt)
		prev = cur
	}
}

func TestRecoverableUSDCustomParams(t *testing.T) {
	p := Params{RecoveryFraction: 0.1, PricePerTonneUSD: 500}
	assert.InDelta(t, 50_000.0, *p.RecoverableUSD(ptr(1)), 1e-9)
}

func TestInformalResidual(t *testing.T) {
	tests := []struct {
		name                        string
		generated, formal, exp, imp *float64
		want                        float64
	}{
		{"balanced", ptr(100), ptr(40), ptr(10), ptr(5), 55},
		{"missing counts as zero", ptr(100), nil, nil, nil, 100},
		{"all missing", nil, nil, nil, nil, 0},
		{"negative clamps to zero", ptr(10), ptr(40), ptr(10), ptr(0), 0},
		{"imports add", nil, nil, nil, ptr(3), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := InformalResidual(tt.generated, tt.formal, tt.exp, tt.imp)
			assert.InDelta(t, tt.want, f.Informal, 1e-9)
			assert.GreaterOrEqual(t, f.Informal, 0.0)
		})
	}

	f := InformalResidual(ptr(100), nil, ptr(10), nil)
	assert.Equal(t, Flow{Generated: 100, Exported: 10, Informal: 90}, f)
}

func TestShare(t *testing.T) {
	assert.Nil(t, Share(nil, ptr(500)))
	assert.Nil(t, Share(ptr(50), ptr(0)))
	assert.Nil(t, Share(ptr(50), ptr(-1)))
	assert.Nil(t, Share(ptr(50), nil))

	got := Share(ptr(50), ptr(500))
	require.NotNil(t, got)
	assert.InDelta(t, 0.1, *got, 1e-12)
}

func TestProjectClampsToGeneration(t *testing.T) {
	p := DefaultParams()
	proj := p.Project(ptr(100), ptr(120), 50)

	assert.InDelta(t, 100, proj.BaseFormal, 1e-9)
	assert.InDelta(t, 120, proj.NewFormal, 1e-9)
	assert.InDelta(t, 20, proj.DeltaAbsolute, 1e-9)
	assert.InDelta(t, 4_000_000, *proj.BaseValueUSD, 1e-6)
	assert.InDelta(t, 4_800_000, *proj.NewValueUSD, 1e-6)
}

func TestProjectNeverExceedsGeneration(t *testing.T) {
	p := DefaultParams()
	for delta := -200.0; delta <= 500; delta += 12.5 {
		proj := p.Project(ptr(80), ptr(120), delta)
		assert.LessOrEqual(t, proj.NewFormal, 120.0, "delta=%v", delta)
		assert.InDelta(t, proj.NewFormal-80, proj.DeltaAbsolute, 1e-9)
	}
}

func TestProjectBaseValueFallsBackToGeneration(t *testing.T) {
	p := DefaultParams()
	proj := p.Project(nil, ptr(50), 10)

	assert.Equal(t, 0.0, proj.BaseFormal)
	assert.Equal(t, 0.0, proj.NewFormal)
	assert.InDelta(t, 2_000_000, *proj.BaseValueUSD, 1e-6, "base value uses generation")
	assert.Equal(t, 0.0, *proj.NewValueUSD, "new value always uses the projection")
}

func TestFinite(t *testing.T) {
	assert.Nil(t, Finite(math.Inf(1)))
	assert.Nil(t, Finite(math.NaN()))
	require.NotNil(t, Finite(1.5))
	assert.Equal(t, 1.5, *Finite(1.5))
}
