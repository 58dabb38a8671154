package backend

import (
	"sort"
	"sync"
)

// Timeline is the single source of truth for the current playback time of
// one episode view. Video playback and chart clicks write it; every chart
// reads it. Writes are last-write-wins and each reader recomputes its
// display from the latest value, so notification order never matters.
//
// Hover previews are deliberately not part of this type: a chart's hovered
// time is local to that chart and evaporates on mouse-leave, and must not
// disturb what other charts display.
type Timeline struct {
	lock       sync.RWMutex
	current    float64
	invalidate func()
}

// NewTimeline returns a timeline that calls invalidate (if non-nil) after
// every committed change, in the manner of a window redraw hook.
func NewTimeline(invalidate func()) *Timeline {
	if invalidate == nil {
		invalidate = func() {}
	}
	return &Timeline{invalidate: invalidate}
}

// Current returns the committed playback time.
func (t *Timeline) Current() float64 {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.current
}

// SetCurrent commits a new playback time.
func (t *Timeline) SetCurrent(v float64) {
	t.lock.Lock()
	changed := t.current != v
	t.current = v
	t.lock.Unlock()
	if changed {
		t.invalidate()
	}
}

// HighlightIndex locates the sample a chart should highlight for a given
// effective time: the first timestamp >= effective, or the last sample when
// the effective time is beyond the end. This is a ceiling search, not
// nearest-neighbor, so ties and out-of-range values resolve identically on
// every chart. Returns -1 for an empty axis.
func HighlightIndex(timestamps []float64, effective float64) int {
	if len(timestamps) == 0 {
		return -1
	}
	idx := sort.SearchFloat64s(timestamps, effective)
	if idx == len(timestamps) {
		return len(timestamps) - 1
	}
	return idx
}

// NearestIndex locates the sample closest to t, used to snap hover previews
// onto real samples. Returns -1 for an empty axis.
func NearestIndex(timestamps []float64, t float64) int {
	if len(timestamps) == 0 {
		return -1
	}
	idx := sort.SearchFloat64s(timestamps, t)
	if idx == len(timestamps) {
		return len(timestamps) - 1
	}
	if idx > 0 && t-timestamps[idx-1] < timestamps[idx]-t {
		return idx - 1
	}
	return idx
}
