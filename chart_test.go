package main

import (
	"image"
	"math"
	"testing"

	"git.sr.ht/~whereswaldon/episode-viewer/backend"
)

func testDataset() backend.ChartDataset {
	return backend.ChartDataset{
		Series: []string{"a", "b"},
		Records: []backend.Record{
			{"timestamp": 0, "a": 1, "b": math.NaN()},
			{"timestamp": 1, "a": 3, "b": -2},
			{"timestamp": 2, "a": 2, "b": 5},
		},
	}
}

func TestNewChartRange(t *testing.T) {
	c := NewChart(testDataset(), backend.NewTimeline(nil), 0)
	if c.rangeMin != -2 || c.rangeMax != 5 {
		t.Errorf("expected range [-2, 5], got [%f, %f]", c.rangeMin, c.rangeMax)
	}
	if got := c.seriesMin[0]; got != 1 {
		t.Errorf("expected series a min 1, got %f", got)
	}
	if got := c.seriesMax[1]; got != 5 {
		t.Errorf("expected series b max 5, got %f", got)
	}
	if len(c.Enabled) != 2 {
		t.Errorf("expected 2 enable toggles, got %d", len(c.Enabled))
	}
}

func TestChartCoordinateMapping(t *testing.T) {
	c := NewChart(testDataset(), backend.NewTimeline(nil), 0)
	c.plotSize = image.Pt(200, 100)
	if got := c.xForTime(0); got != 0 {
		t.Errorf("expected x 0 at domain start, got %f", got)
	}
	if got := c.xForTime(2); got != 200 {
		t.Errorf("expected x 200 at domain end, got %f", got)
	}
	if got := c.xForTime(1); got != 100 {
		t.Errorf("expected x 100 at domain midpoint, got %f", got)
	}
	if got := c.yForValue(5); got != 0 {
		t.Errorf("expected y 0 at range max, got %f", got)
	}
	if got := c.yForValue(-2); got != 100 {
		t.Errorf("expected y 100 at range min, got %f", got)
	}
}

func TestChartSampleSnapping(t *testing.T) {
	c := NewChart(testDataset(), backend.NewTimeline(nil), 0)
	c.plotSize = image.Pt(200, 100)
	cases := []struct {
		x    float32
		want float64
	}{
		{0, 0},
		{40, 0},
		{60, 1},
		{199, 2},
		{-50, 0},
		{500, 2},
	}
	for _, tc := range cases {
		if got := c.sampleTimeAt(tc.x); got != tc.want {
			t.Errorf("sampleTimeAt(%f): expected %f, got %f", tc.x, tc.want, got)
		}
	}
}

func TestReadoutEntries(t *testing.T) {
	c := NewChart(testDataset(), backend.NewTimeline(nil), 0)
	entries := c.readoutEntries(0)
	if len(entries) != 1 {
		t.Fatalf("expected the unplottable value to be skipped, got %d entries", len(entries))
	}
	if entries[0].series != 0 || entries[0].value != 1 {
		t.Errorf("expected series 0 value 1, got series %d value %f", entries[0].series, entries[0].value)
	}
	entries = c.readoutEntries(2)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].value != 5 || entries[1].value != 2 {
		t.Errorf("expected values ordered [5, 2], got [%f, %f]", entries[0].value, entries[1].value)
	}
	c.Enabled[1].Value = false
	if entries := c.readoutEntries(2); len(entries) != 1 || entries[0].series != 0 {
		t.Errorf("expected only the enabled series, got %v", entries)
	}
}

func TestFiniteRange(t *testing.T) {
	if _, _, ok := finiteRange([]float64{math.NaN(), math.Inf(1)}); ok {
		t.Error("expected no finite range for unplottable values")
	}
	lo, hi, ok := finiteRange([]float64{2, math.NaN(), -1, 7})
	if !ok || lo != -1 || hi != 7 {
		t.Errorf("expected range [-1, 7], got [%f, %f] ok=%v", lo, hi, ok)
	}
}

func TestSeriesColorCycles(t *testing.T) {
	if seriesColor(0) != seriesColor(len(colors)) {
		t.Error("expected palette to wrap around")
	}
	if seriesColor(1) == seriesColor(2) {
		t.Error("expected adjacent series to differ in color")
	}
}
