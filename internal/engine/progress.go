package engine

import (
	"bytes"
	"regexp"
	"strconv"
)

var (
	durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)
	timeRe     = regexp.MustCompile(`time=\s*(\d+):(\d+):(\d+)\.(\d+)`)
)

// progressTracker turns ffmpeg log lines into completion fractions.
// The expected output length comes from the command's time window when it
// has one, otherwise from the first "Duration:" line ffmpeg logs.
type progressTracker struct {
	expected float64
	last     float64
}

func newProgressTracker(argv []string) *progressTracker {
	return &progressTracker{expected: windowLength(argv)}
}

// observe parses one log line. It reports the new fraction and true when
// the line advanced progress.
func (p *progressTracker) observe(line string) (float64, bool) {
	if p.expected <= 0 {
		if m := durationRe.FindStringSubmatch(line); m != nil {
			p.expected = clockSeconds(m)
		}
		return 0, false
	}

	m := timeRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}

	fraction := clockSeconds(m) / p.expected
	if fraction > 1 {
		fraction = 1
	}
	if fraction <= p.last {
		return 0, false
	}
	p.last = fraction
	return fraction, true
}

// clockSeconds converts a HH:MM:SS.frac regexp match to seconds.
func clockSeconds(m []string) float64 {
	hours, _ := strconv.ParseFloat(m[1], 64)
	minutes, _ := strconv.ParseFloat(m[2], 64)
	seconds, _ := strconv.ParseFloat(m[3], 64)
	frac, _ := strconv.ParseFloat("0."+m[4], 64)
	return hours*3600 + minutes*60 + seconds + frac
}

// windowLength returns the output length implied by -ss/-to or -t in argv,
// or 0 when argv does not bound it.
func windowLength(argv []string) float64 {
	var start, end, length float64
	var hasEnd bool
	for i := 0; i+1 < len(argv); i++ {
		v, err := strconv.ParseFloat(argv[i+1], 64)
		if err != nil {
			continue
		}
		switch argv[i] {
		case "-ss":
			start = v
		case "-to":
			end, hasEnd = v, true
		case "-t":
			length = v
		}
	}
	if length > 0 {
		return length
	}
	if hasEnd && end > start {
		return end - start
	}
	return 0
}

// scanLogLines is a bufio.SplitFunc that splits on both '\n' and '\r',
// since ffmpeg rewrites its stats line with carriage returns.
func scanLogLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
