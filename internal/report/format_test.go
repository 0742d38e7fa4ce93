package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{3661, "1h 1m"},
		{185, "3m 5s"},
		{45, "45s"},
		{120, "2m"},
		{3600, "1h 0m"},
		{59.9, "59s"},
		{0, "0s"},
		{-5, "0s"},
		{90061, "25h 1m"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.seconds))
		})
	}
}

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{3661, "1h 1m"},
		{185, "3m"},
		{45, "45s"},
		{7200, "2h 0m"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDurationShort(tt.seconds))
		})
	}
}

func TestHours(t *testing.T) {
	assert.InDelta(t, 1.5, Hours(5400), 1e-9)
	assert.Zero(t, Hours(0))
}
