package engine

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowLength(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want float64
	}{
		{"ss and to", []string{"-i", "v.mp4", "-ss", "60", "-to", "120", "out.mp4"}, 60},
		{"fractional end", []string{"-ss", "120", "-to", "150.5", "out.mp4"}, 30.5},
		{"explicit length", []string{"-ss", "10", "-t", "5", "out.mp4"}, 5},
		{"to only", []string{"-to", "42", "out.mp4"}, 42},
		{"unbounded", []string{"-i", "v.mp4", "out.mp4"}, 0},
		{"end before start", []string{"-ss", "50", "-to", "40"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, windowLength(tt.argv), 1e-9)
		})
	}
}

func TestProgressTracker_Window(t *testing.T) {
	p := newProgressTracker([]string{"-ss", "60", "-to", "120"})

	_, ok := p.observe("Duration: 00:05:00.00, start: 0.000000, bitrate: 1000 kb/s")
	assert.False(t, ok, "duration line must not advance a bounded window")

	f, ok := p.observe("frame=  100 fps=50 q=28.0 size=256kB time=00:00:15.00 bitrate=139.8kbits/s")
	assert.True(t, ok)
	assert.InDelta(t, 0.25, f, 1e-9)

	f, ok = p.observe("frame=  200 fps=50 q=28.0 size=512kB time=00:00:30.50 bitrate=139.8kbits/s")
	assert.True(t, ok)
	assert.InDelta(t, 30.5/60, f, 1e-9)

	_, ok = p.observe("frame=  200 fps=50 q=28.0 size=512kB time=00:00:30.50 bitrate=139.8kbits/s")
	assert.False(t, ok, "repeated time must not be reported again")

	f, ok = p.observe("time=00:01:10.00")
	assert.True(t, ok)
	assert.Equal(t, 1.0, f)
}

func TestProgressTracker_FallsBackToDuration(t *testing.T) {
	p := newProgressTracker([]string{"-i", "in.mp4", "out.mp4"})

	_, ok := p.observe("time=00:00:10.00")
	assert.False(t, ok, "no reference length yet")

	_, ok = p.observe("  Duration: 00:00:40.00, start: 0.000000")
	assert.False(t, ok)

	f, ok := p.observe("time=00:00:10.00")
	assert.True(t, ok)
	assert.InDelta(t, 0.25, f, 1e-9)
}

func TestProgressTracker_IgnoresNegativeAndNA(t *testing.T) {
	p := newProgressTracker([]string{"-t", "10"})

	_, ok := p.observe("size=N/A time=N/A bitrate=N/A")
	assert.False(t, ok)
	_, ok = p.observe("time=-00:00:00.02")
	assert.False(t, ok)
}

func TestScanLogLines(t *testing.T) {
	input := "first\rsecond\nthird"
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Split(scanLogLines)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	assert.Equal(t, []string{"first", "second", "third"}, lines)
}
