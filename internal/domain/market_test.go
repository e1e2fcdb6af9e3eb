package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to MarketStatus
		ok       bool
	}{
		{MarketStatusDraft, MarketStatusActivating, true},
		{MarketStatusDraft, MarketStatusActive, false},
		{MarketStatusDraft, MarketStatusDraft, false},
		{MarketStatusActivating, MarketStatusActive, true},
		{MarketStatusActivating, MarketStatusDraft, true},
		{MarketStatusActivating, MarketStatusActivating, false},
		{MarketStatusActive, MarketStatusDraft, false},
		{MarketStatusActive, MarketStatusActivating, false},
	}
	for _, tc := range cases {
		m := Market{Status: tc.from}
		assert.Equalf(t, tc.ok, m.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestActivationExpired(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	started := now.Add(-ActivationTimeout - time.Second)

	m := Market{Status: MarketStatusActivating, ActivatedAt: &started}
	assert.True(t, m.ActivationExpired(now))

	fresh := now.Add(-time.Minute)
	m.ActivatedAt = &fresh
	assert.False(t, m.ActivationExpired(now))

	// A missing ActivatedAt never expires; the timeout clock starts when
	// the activation flag is set.
	m.ActivatedAt = nil
	assert.False(t, m.ActivationExpired(now))

	m = Market{Status: MarketStatusDraft, ActivatedAt: &started}
	assert.False(t, m.ActivationExpired(now))
}

func TestDeriveNumTicks(t *testing.T) {
	cases := []struct {
		min, max, precision string
		want                string
	}{
		{"0", "100", "0.5", "200"},
		{"-10", "10", "0.01", "2000"},
		{"0.000000000000000001", "1.000000000000000001", "0.000000000000000001", "1000000000000000000"},
		{"50", "350", "1", "300"},
	}
	for _, tc := range cases {
		got, err := DeriveNumTicks(tc.min, tc.max, tc.precision)
		require.NoError(t, err)
		assert.Equalf(t, tc.want, got, "(%s, %s, %s)", tc.min, tc.max, tc.precision)
	}
}

func TestDeriveNumTicksRejectsDegenerateRange(t *testing.T) {
	_, err := DeriveNumTicks("10", "10", "1")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = DeriveNumTicks("10", "5", "1")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = DeriveNumTicks("0", "100", "0")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = DeriveNumTicks("abc", "100", "1")
	assert.Error(t, err)
}

func TestDerivePrecisionInvertsNumTicks(t *testing.T) {
	ticks, err := DeriveNumTicks("0", "100", "0.25")
	require.NoError(t, err)
	require.Equal(t, "400", ticks)

	precision, err := DerivePrecision("0", "100", ticks)
	require.NoError(t, err)
	assert.Equal(t, "0.25", precision)
}

func TestCategoriesReturnsIsolatedCopy(t *testing.T) {
	got := Categories()
	require.NotEmpty(t, got)
	require.NotEmpty(t, got[0].Tags)

	got[0].Name = "Mutated"
	got[0].Tags[0] = "mutated"

	fresh := Categories()
	assert.NotEqual(t, "Mutated", fresh[0].Name)
	assert.NotEqual(t, "mutated", fresh[0].Tags[0])
}
