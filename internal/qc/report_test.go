package qc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/marine-qc/internal/domain"
)

func TestPositionCheck(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		want     domain.Outcome
	}{
		{"origin", 0, 0, domain.Passed},
		{"poles", 90, -180, domain.Passed},
		{"east of dateline in 0-360", -90, 360, domain.Passed},
		{"lat too high", 90.1, 0, domain.Failed},
		{"lat too low", -91, 0, domain.Failed},
		{"lon too low", 0, -180.5, domain.Failed},
		{"lon too high", 0, 361, domain.Failed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PositionCheck(tt.lat, tt.lon))
		})
	}
}

func TestDateCheck(t *testing.T) {
	assert.Equal(t, domain.Passed, DateCheck(2004, 2, 29, DefaultMinYear, DefaultMaxYear))
	assert.Equal(t, domain.Failed, DateCheck(2003, 2, 29, DefaultMinYear, DefaultMaxYear))
	assert.Equal(t, domain.Failed, DateCheck(1900, 2, 29, DefaultMinYear, DefaultMaxYear))
	assert.Equal(t, domain.Passed, DateCheck(2000, 2, 29, DefaultMinYear, DefaultMaxYear))
	assert.Equal(t, domain.Failed, DateCheck(1849, 1, 1, DefaultMinYear, DefaultMaxYear))
	assert.Equal(t, domain.Failed, DateCheck(2025, 1, 1, DefaultMinYear, DefaultMaxYear))
	assert.Equal(t, domain.Failed, DateCheck(2004, 13, 1, DefaultMinYear, DefaultMaxYear))
	assert.Equal(t, domain.Failed, DateCheck(2004, 4, 31, DefaultMinYear, DefaultMaxYear))
	assert.Equal(t, domain.Untestable, DateCheck(2004, 4, 1, 2000, 1990))
}

func TestTimeCheck(t *testing.T) {
	assert.Equal(t, domain.Passed, TimeCheck(0))
	assert.Equal(t, domain.Passed, TimeCheck(23.99))
	assert.Equal(t, domain.Failed, TimeCheck(24))
	assert.Equal(t, domain.Failed, TimeCheck(-0.5))
}

func TestDayCheck(t *testing.T) {
	noon := time.Date(2004, 6, 21, 12, 30, 0, 0, time.UTC)
	night := time.Date(2004, 6, 21, 1, 0, 0, 0, time.UTC)

	assert.Equal(t, domain.Failed, DayCheck(noon, 51.5, 0, 1))
	assert.Equal(t, domain.Passed, DayCheck(night, 51.5, 0, 1))
	assert.Equal(t, domain.Failed, DayCheck(noon, 95, 0, 1))
	assert.Equal(t, domain.Untestable, DayCheck(noon, 51.5, 0, nan))
}

func TestIDIsGeneric(t *testing.T) {
	for _, id := range []string{"", "   ", "SHIP     ", "     SHIP", "PLAT", "MASKSTID ", "/////", "null"} {
		assert.True(t, IDIsGeneric(id, 2000), "%q", id)
	}
	for _, id := range []string{"VRXX2", "Ship", "12345"} {
		assert.False(t, IDIsGeneric(id, 2000), "%q", id)
	}

	assert.True(t, IDIsGeneric("2        ", 1930))
	assert.False(t, IDIsGeneric("2", 1950))
	assert.True(t, IDIsGeneric("3", 1935))
	assert.False(t, IDIsGeneric("3", 1940))
	assert.True(t, IDIsGeneric("00007", 1950))
	assert.False(t, IDIsGeneric("7", 1960))
}
