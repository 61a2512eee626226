package schedule

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSingleDay(t *testing.T) {
	m, err := Parse("Monday 08:00-10:00")
	require.NoError(t, err)
	assert.Equal(t, []string{"Monday"}, m.Days)
	assert.Equal(t, "08:00", m.Start.String())
	assert.Equal(t, "10:00", m.End.String())
}

func TestParseMultipleDays(t *testing.T) {
	m, err := Parse("Monday and Wednesday and Friday 18:30-21:45")
	require.NoError(t, err)
	assert.Equal(t, []string{"Monday", "Wednesday", "Friday"}, m.Days)
	assert.Equal(t, 18*60+30, m.Start.Minutes())
	assert.Equal(t, 21*60+45, m.End.Minutes())
}

func TestParseNormalisesCaseAndSpacing(t *testing.T) {
	m, err := Parse("  monday and WEDNESDAY  08:00-10:00 ")
	require.NoError(t, err)
	assert.Equal(t, []string{"Monday", "Wednesday"}, m.Days)
}

func TestParseDeterministic(t *testing.T) {
	first, err := Parse("Tuesday and Thursday 10:00-12:00")
	require.NoError(t, err)
	second, err := Parse("Tuesday and Thursday 10:00-12:00")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParseRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"missing range":   "Monday",
		"bad weekday":     "Funday 08:00-10:00",
		"bad time":        "Monday 8:00-10:00",
		"bad minutes":     "Monday 08:0x-10:00",
		"no separator":    "Monday 08:00/10:00",
		"start equal end": "Monday 10:00-10:00",
		"start after end": "Monday 12:00-10:00",
		"hour overflow":   "Monday 25:00-26:00",
		"empty":           "   ",
		"empty day token": "Monday and 08:00-10:00",
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(raw)
			require.Error(t, err)
			var formatErr *FormatError
			assert.True(t, errors.As(err, &formatErr), "expected FormatError, got %T", err)
		})
	}
}

func TestMeetingString(t *testing.T) {
	m, err := Parse("Monday and Wednesday 08:00-10:00")
	require.NoError(t, err)
	assert.Equal(t, "Monday and Wednesday 08:00-10:00", m.String())
}
