package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNonNegative(t *testing.T) {
	assert.True(t, NonNegative(d("-50")).IsZero())
	assert.True(t, d("12.30").Equal(NonNegative(d("12.30"))))
	assert.True(t, NonNegative(decimal.Zero).IsZero())
}

func TestPercent(t *testing.T) {
	assert.True(t, d("100").Equal(Percent(d("1000"), d("10"))))
	assert.True(t, d("7.5").Equal(Percent(d("150"), d("5"))))
}

func TestCapAt(t *testing.T) {
	assert.True(t, d("50").Equal(CapAt(d("100"), d("50"))))
	assert.True(t, d("30").Equal(CapAt(d("30"), d("50"))))
}

func TestFloorThenRound(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"94.99", "94"},
		{"95.5", "95"},
		{"0.99", "0"},
		{"100", "100"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.True(t, d(tt.want).Equal(FloorThenRound(d(tt.in))), "got %s", FloorThenRound(d(tt.in)))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "10.13", Normalize(d("10.125")).String())
}

func TestParse(t *testing.T) {
	got, err := Parse("19.99")
	require.NoError(t, err)
	assert.True(t, d("19.99").Equal(got))

	_, err = Parse("дорого")
	assert.Error(t, err)
}
