package split

import (
	"errors"
	"math"
	"testing"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name    string
		total   float64
		segment float64
		want    []Window
	}{
		{
			name:    "partial last window",
			total:   150,
			segment: 60,
			want:    []Window{{1, 0, 60}, {2, 60, 120}, {3, 120, 150}},
		},
		{
			name:    "exact single window",
			total:   60,
			segment: 60,
			want:    []Window{{1, 0, 60}},
		},
		{
			name:    "shorter than one window",
			total:   12.5,
			segment: 60,
			want:    []Window{{1, 0, 12.5}},
		},
		{
			name:    "exact multiple",
			total:   180,
			segment: 60,
			want:    []Window{{1, 0, 60}, {2, 60, 120}, {3, 120, 180}},
		},
		{
			name:    "fallback duration",
			total:   DefaultDurationSec,
			segment: DefaultSegmentSec,
			want:    []Window{{1, 0, 60}, {2, 60, 120}, {3, 120, 180}, {4, 180, 240}, {5, 240, 300}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Plan(tt.total, tt.segment)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d windows, got %d: %+v", len(tt.want), len(got), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("window %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPlan_Invalid(t *testing.T) {
	cases := []struct {
		total, segment float64
	}{
		{0, 60},
		{-1, 60},
		{100, 0},
		{math.NaN(), 60},
		{math.Inf(1), 60},
		{100, math.Inf(1)},
	}
	for _, c := range cases {
		if _, err := Plan(c.total, c.segment); !errors.Is(err, ErrInvalidPlan) {
			t.Errorf("Plan(%g, %g) expected ErrInvalidPlan, got %v", c.total, c.segment, err)
		}
	}
}

func TestPlan_CoversDuration(t *testing.T) {
	for _, total := range []float64{0.1, 1, 59.9, 60, 60.01, 119.5, 121, 299.97, 300, 3601.25} {
		windows, err := Plan(total, 60)
		if err != nil {
			t.Fatalf("Plan(%g): %v", total, err)
		}

		if want := int(math.Ceil(total / 60)); len(windows) != want {
			t.Errorf("Plan(%g) produced %d windows, want %d", total, len(windows), want)
		}

		prevEnd := 0.0
		for i, w := range windows {
			if w.Index != i+1 {
				t.Errorf("Plan(%g) window %d has index %d", total, i, w.Index)
			}
			if w.Start != prevEnd {
				t.Errorf("Plan(%g) window %d starts at %g, want %g", total, w.Index, w.Start, prevEnd)
			}
			if w.Length() <= 0 || w.Length() > 60 {
				t.Errorf("Plan(%g) window %d has length %g", total, w.Index, w.Length())
			}
			if i < len(windows)-1 && w.Length() != 60 {
				t.Errorf("Plan(%g) non-final window %d has length %g", total, w.Index, w.Length())
			}
			prevEnd = w.End
		}
		if prevEnd != total {
			t.Errorf("Plan(%g) ends at %g", total, prevEnd)
		}
	}
}
