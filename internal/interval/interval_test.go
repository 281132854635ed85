package interval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitNormalization(t *testing.T) {
	tests := []struct {
		name       string
		unit       Unit
		value      uint16
		wantSec    int64
		wantMillis int64
	}{
		{"Seconds", Seconds, 5, 5, 5000},
		{"Minutes", Minutes, 5, 300, 300000},
		{"Hours", Hours, 2, 7200, 7200000},
		{"Zero", Minutes, 0, 0, 0},
		{"MaxValue", Hours, 65535, 235926000, 235926000000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantSec, tt.unit.ToSeconds(tt.value))
			assert.Equal(t, tt.wantMillis, tt.unit.ToMillis(tt.value))
		})
	}
}

func TestParseUnit(t *testing.T) {
	for _, s := range []string{"seconds", "sec", "s"} {
		unit, err := ParseUnit(s)
		require.NoError(t, err)
		assert.Equal(t, Seconds, unit)
	}

	unit, err := ParseUnit("minutes")
	require.NoError(t, err)
	assert.Equal(t, Minutes, unit)

	unit, err = ParseUnit("hours")
	require.NoError(t, err)
	assert.Equal(t, Hours, unit)

	_, err = ParseUnit("days")
	assert.Error(t, err)
}

func TestSpecValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		spec := Spec{Name: "tick_5sec", Unit: Seconds, Period: 5}
		require.NoError(t, spec.Validate())
	})

	t.Run("ValidWithOffset", func(t *testing.T) {
		spec := Spec{Name: "tick_5min1min", Unit: Minutes, Period: 5, Offset: 1}
		require.NoError(t, spec.Validate())
	})

	t.Run("ZeroPeriod", func(t *testing.T) {
		spec := Spec{Name: "bad", Unit: Seconds, Period: 0}
		assert.ErrorIs(t, spec.Validate(), ErrInvalidPeriod)
	})

	t.Run("OffsetEqualsPeriod", func(t *testing.T) {
		spec := Spec{Name: "bad", Unit: Seconds, Period: 5, Offset: 5}
		assert.ErrorIs(t, spec.Validate(), ErrInvalidOffset)
	})

	t.Run("OffsetExceedsPeriod", func(t *testing.T) {
		spec := Spec{Name: "bad", Unit: Minutes, Period: 5, Offset: 6}
		assert.ErrorIs(t, spec.Validate(), ErrInvalidOffset)
	})

	t.Run("NameTooLong", func(t *testing.T) {
		spec := Spec{Name: "a_name_well_over_twenty_five_characters", Unit: Seconds, Period: 5}
		assert.ErrorIs(t, spec.Validate(), ErrNameTooLong)
	})
}

func TestSpecCanonicalForms(t *testing.T) {
	spec := Spec{Name: "tick", Unit: Minutes, Period: 5, Offset: 1}
	require.NoError(t, spec.Validate())

	assert.Equal(t, int64(300), spec.PeriodSeconds())
	assert.Equal(t, int64(300000), spec.PeriodMillis())
	assert.Equal(t, int64(60), spec.OffsetSeconds())
	assert.Equal(t, int64(60000), spec.OffsetMillis())

	// Offset stays below the period after normalization too.
	assert.Less(t, spec.OffsetMillis(), spec.PeriodMillis())
}
