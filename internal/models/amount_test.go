package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmountRoundsToCents(t *testing.T) {
	a, err := ParseAmount(" 12.345 ")
	require.NoError(t, err)
	assert.Equal(t, "12.35", a.Cents())

	a, err = ParseAmount("999999999999.99")
	require.NoError(t, err)
	assert.True(t, a.Fits(MoneyDigits))

	a, err = ParseAmount("not a number")
	require.NoError(t, err)
	assert.True(t, a.IsZero())

	a, err = ParseAmount("1e-5000000")
	require.NoError(t, err)
	assert.True(t, a.IsZero())
}

func TestParseAmountRejectsOutOfRange(t *testing.T) {
	for _, raw := range []string{"1e5000000", "1e13", "10000000000000", "-1e12", "999999999999.999"} {
		_, err := ParseAmount(raw)
		assert.ErrorIs(t, err, ErrAmountOutOfRange, raw)
	}
}

func TestAmountUnmarshalJSON(t *testing.T) {
	var payload struct {
		Fee  Amount `json:"fee"`
		Food Amount `json:"food"`
		Bad  Amount `json:"bad"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"fee": 150, "food": "20.5", "bad": "n/a"}`), &payload))
	assert.Equal(t, "150.00", payload.Fee.Cents())
	assert.Equal(t, "20.50", payload.Food.Cents())
	assert.True(t, payload.Bad.IsZero())

	var overlay DraftOverlay
	err := json.Unmarshal([]byte(`{"mentor_assignments":[{"mentor_id":"m1","amount_paid":1e5000000}]}`), &overlay)
	assert.ErrorIs(t, err, ErrAmountOutOfRange)

	err = json.Unmarshal([]byte(`{"food_cost":"1e13"}`), &overlay)
	assert.ErrorIs(t, err, ErrAmountOutOfRange)
}

func TestAmountFits(t *testing.T) {
	assert.True(t, AmountFromInt(99999999).Fits(HoursDigits))
	assert.False(t, AmountFromInt(100000000).Fits(HoursDigits))
	assert.True(t, ZeroAmount.Fits(0))
}
