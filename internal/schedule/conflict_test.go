package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) Meeting {
	t.Helper()
	m, err := Parse(raw)
	require.NoError(t, err)
	return m
}

func TestOverlapSharedDayAndTime(t *testing.T) {
	a := mustParse(t, "Monday and Wednesday 08:00-10:00")
	b := mustParse(t, "Wednesday 09:00-11:00")

	day, ok := Overlap(a, b)
	assert.True(t, ok)
	assert.Equal(t, "Wednesday", day)
}

func TestOverlapNoSharedDay(t *testing.T) {
	a := mustParse(t, "Monday and Wednesday 08:00-10:00")
	b := mustParse(t, "Tuesday 09:00-11:00")

	_, ok := Overlap(a, b)
	assert.False(t, ok)
}

func TestOverlapBackToBack(t *testing.T) {
	a := mustParse(t, "Monday 08:00-10:00")
	b := mustParse(t, "Monday 10:00-12:00")

	_, ok := Overlap(a, b)
	assert.False(t, ok, "half-open intervals: back-to-back sections do not conflict")
}

func TestOverlapSymmetric(t *testing.T) {
	a := mustParse(t, "Monday 08:00-10:00")
	b := mustParse(t, "Monday 09:00-11:00")

	_, forward := Overlap(a, b)
	_, backward := Overlap(b, a)
	assert.Equal(t, forward, backward)
	assert.True(t, forward)
}

func TestOverlapContainment(t *testing.T) {
	outer := mustParse(t, "Friday 08:00-12:00")
	inner := mustParse(t, "Friday 09:00-10:00")

	_, ok := Overlap(outer, inner)
	assert.True(t, ok)
}

func TestHasConflict(t *testing.T) {
	candidate := mustParse(t, "Monday 09:00-11:00")
	existing := []Meeting{
		mustParse(t, "Tuesday 09:00-11:00"),
		mustParse(t, "Monday 08:00-10:00"),
	}

	assert.True(t, HasConflict(candidate, existing))
	assert.False(t, HasConflict(candidate, existing[:1]))
	assert.False(t, HasConflict(candidate, nil))
}
