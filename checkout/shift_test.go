package checkout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hhmm string) time.Time {
	t, _ := time.Parse("2006-01-02 15:04", "2026-03-10 "+hhmm)
	return t
}

func TestParseShift(t *testing.T) {
	sh, err := ParseShift("12:00-13:30")
	require.NoError(t, err)
	assert.Equal(t, 720, sh.Start)
	assert.Equal(t, 810, sh.End)

	for _, bad := range []string{"", "all", "12:00", "13:00-12:00", "25:00-26:00", "aa:bb-cc:dd"} {
		_, err := ParseShift(bad)
		assert.ErrorIs(t, err, ErrBadShift, bad)
	}
}

func TestFilterShifts(t *testing.T) {
	got := FilterShifts([]string{"ALL", "09:00-10:00", "all", "", "bogus", "09:00-10:00", "12:00-13:00"})
	assert.Equal(t, []string{"09:00-10:00", "12:00-13:00"}, got)
}

func TestAutoSelectShift(t *testing.T) {
	shifts := []string{"09:00-10:00", "12:00-13:00", "15:00-16:00"}

	tests := []struct {
		name   string
		stored string
		now    string
		want   string
	}{
		{"closest started shift", "", "14:50", "12:00-13:00"},
		{"past last start falls back to last", "", "16:30", "15:00-16:00"},
		{"exactly at a start", "", "12:00", "12:00-13:00"},
		{"before opening picks first", "", "07:15", "09:00-10:00"},
		{"stored still offered", "09:00-10:00", "16:30", "09:00-10:00"},
		{"stored no longer offered", "18:00-19:00", "14:50", "12:00-13:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AutoSelectShift(shifts, tt.stored, at(tt.now)))
		})
	}

	assert.Equal(t, "", AutoSelectShift(nil, "", at("12:00")))
	assert.Equal(t, "15:00-16:00", AutoSelectShift([]string{"15:00-16:00", "09:00-10:00"}, "", at("23:00")))
}

func TestShiftStartOn(t *testing.T) {
	sh, err := ParseShift("12:30-13:00")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10T12:30:00Z", sh.StartOn(at("08:00")).Format(time.RFC3339))
}
