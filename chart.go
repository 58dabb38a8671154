package main

import (
	"image"
	"image/color"
	"math"
	"slices"
	"strconv"

	"gioui.org/f32"
	"gioui.org/io/event"
	"gioui.org/io/pointer"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/text"
	"gioui.org/widget"
	"gioui.org/widget/material"
	"gioui.org/x/component"
	"golang.org/x/exp/constraints"

	"git.sr.ht/~whereswaldon/episode-viewer/backend"
)

func ceil[T constraints.Integer | constraints.Float](a T) T {
	return T(math.Ceil(float64(a)))
}

func floor[T constraints.Integer | constraints.Float](a T) T {
	return T(math.Floor(float64(a)))
}

// Chart renders one chart group's dataset. Hovering previews a sample
// locally without moving the shared playback time; clicking commits the
// clicked sample's timestamp to the shared timeline for every chart and the
// playback transport to follow.
type Chart struct {
	ds       backend.ChartDataset
	timeline *backend.Timeline

	timestamps []float64
	values     [][]float64
	seriesMin  []float64
	seriesMax  []float64
	rangeMin   float64
	rangeMax   float64
	colorBase  int

	Enabled  []*widget.Bool
	keyTable component.GridState

	// hover gesture state
	pos         f32.Point
	isHovered   bool
	hoveredTime float64
	plotSize    image.Point
}

func NewChart(ds backend.ChartDataset, timeline *backend.Timeline, colorBase int) *Chart {
	c := &Chart{
		ds:         ds,
		timeline:   timeline,
		colorBase:  colorBase,
		timestamps: ds.Timestamps(),
	}
	first := true
	for _, name := range ds.Series {
		vals := ds.SeriesValues(name)
		lo, hi, ok := finiteRange(vals)
		c.values = append(c.values, vals)
		c.seriesMin = append(c.seriesMin, lo)
		c.seriesMax = append(c.seriesMax, hi)
		c.Enabled = append(c.Enabled, &widget.Bool{Value: true})
		if !ok {
			continue
		}
		if first {
			c.rangeMin, c.rangeMax = lo, hi
			first = false
		} else {
			c.rangeMin = min(c.rangeMin, lo)
			c.rangeMax = max(c.rangeMax, hi)
		}
	}
	if first {
		c.rangeMin, c.rangeMax = 0, 1
	}
	return c
}

func finiteRange(vals []float64) (lo, hi float64, ok bool) {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if !ok {
			lo, hi, ok = v, v, true
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi, ok
}

func (c *Chart) Update(gtx C) {
	for {
		ev, ok := gtx.Event(pointer.Filter{
			Target: c,
			Kinds:  pointer.Enter | pointer.Leave | pointer.Move | pointer.Press,
		})
		if !ok {
			break
		}
		pe, ok := ev.(pointer.Event)
		if !ok {
			continue
		}
		switch pe.Kind {
		case pointer.Enter:
			c.isHovered = true
			c.pos = pe.Position
			c.hoveredTime = c.sampleTimeAt(pe.Position.X)
		case pointer.Leave, pointer.Cancel:
			c.isHovered = false
		case pointer.Move:
			c.pos = pe.Position
			c.hoveredTime = c.sampleTimeAt(pe.Position.X)
		case pointer.Press:
			c.timeline.SetCurrent(c.sampleTimeAt(pe.Position.X))
			gtx.Execute(op.InvalidateCmd{})
		}
	}
}

// sampleTimeAt maps a plot x coordinate to the nearest sample's timestamp.
func (c *Chart) sampleTimeAt(x float32) float64 {
	if len(c.timestamps) == 0 {
		return 0
	}
	t0 := c.timestamps[0]
	tN := c.timestamps[len(c.timestamps)-1]
	if c.plotSize.X <= 0 || tN <= t0 {
		return t0
	}
	frac := float64(x) / float64(c.plotSize.X)
	frac = min(max(frac, 0), 1)
	idx := backend.NearestIndex(c.timestamps, t0+frac*(tN-t0))
	return c.timestamps[idx]
}

func (c *Chart) xForTime(t float64) float32 {
	t0 := c.timestamps[0]
	tN := c.timestamps[len(c.timestamps)-1]
	if tN <= t0 {
		return 0
	}
	return float32((t - t0) / (tN - t0) * float64(c.plotSize.X))
}

func (c *Chart) yForValue(v float64) float32 {
	interval := c.rangeMax - c.rangeMin
	if interval == 0 {
		interval = 1
	}
	return float32(c.plotSize.Y) - float32((v-c.rangeMin)/interval)*float32(c.plotSize.Y)
}

// effectiveTime is the hovered time while this chart is hovered, otherwise
// the shared playback time.
func (c *Chart) effectiveTime() float64 {
	if c.isHovered {
		return c.hoveredTime
	}
	return c.timeline.Current()
}

func rec(gtx C, w layout.Widget) (D, op.CallOp) {
	macro := op.Record(gtx.Ops)
	dims := w(gtx)
	call := macro.Stop()
	return dims, call
}

func (c *Chart) Layout(gtx C, th *material.Theme) D {
	c.Update(gtx)
	if len(c.timestamps) == 0 {
		return D{Size: gtx.Constraints.Max}
	}
	minRangeLabel := material.Body1(th, strconv.FormatFloat(c.rangeMin, 'f', 3, 64))
	maxRangeLabel := material.Body1(th, strconv.FormatFloat(c.rangeMax, 'f', 3, 64))
	minDomainLabel := material.Body1(th, strconv.FormatFloat(c.timestamps[0], 'f', 2, 64)+"s")
	maxDomainLabel := material.Body1(th, strconv.FormatFloat(c.timestamps[len(c.timestamps)-1], 'f', 2, 64)+"s")
	xAxisLabel := material.Body2(th, "Time (s)")
	xAxisLabel.MaxLines = 1
	xAxisLabel.Alignment = text.Middle

	origConstraints := gtx.Constraints
	gtx.Constraints.Min = image.Point{}
	macro := op.Record(gtx.Ops)
	axisLabelDims := minDomainLabel.Layout(gtx)
	_ = macro.Stop()
	gtx.Constraints = origConstraints

	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Flexed(1, func(gtx C) D {
			return layout.Flex{}.Layout(gtx,
				layout.Rigid(func(gtx C) D {
					return layout.Flex{Axis: layout.Vertical, Spacing: layout.SpaceBetween}.Layout(gtx,
						layout.Rigid(maxRangeLabel.Layout),
						layout.Flexed(1, func(gtx C) D {
							return D{Size: gtx.Constraints.Min}
						}),
						layout.Rigid(minRangeLabel.Layout),
						layout.Rigid(func(gtx C) D {
							return D{Size: image.Point{Y: axisLabelDims.Size.Y}}
						}),
					)
				}),
				layout.Flexed(1, func(gtx C) D {
					return layout.Flex{Axis: layout.Vertical, Spacing: layout.SpaceBetween}.Layout(gtx,
						layout.Flexed(1, func(gtx C) D {
							return c.layoutPlot(gtx, th)
						}),
						layout.Rigid(func(gtx C) D {
							return layout.Flex{
								Axis:      layout.Horizontal,
								Alignment: layout.Baseline,
							}.Layout(gtx,
								layout.Rigid(minDomainLabel.Layout),
								layout.Flexed(1, xAxisLabel.Layout),
								layout.Rigid(maxDomainLabel.Layout),
							)
						}),
					)
				}),
			)
		}),
		layout.Rigid(func(gtx C) D {
			return c.layoutKey(gtx, th)
		}),
	)
}

func (c *Chart) layoutPlot(gtx C, th *material.Theme) D {
	c.plotSize = gtx.Constraints.Max
	defer clip.Rect{Max: c.plotSize}.Push(gtx.Ops).Pop()
	event.Op(gtx.Ops, c)

	paint.FillShape(gtx.Ops, color.NRGBA{A: 15}, clip.Rect{Max: c.plotSize}.Op())

	oneDp := float32(gtx.Dp(1))
	for i := range c.values {
		if !c.Enabled[i].Value {
			continue
		}
		var p clip.Path
		p.Begin(gtx.Ops)
		pendingMove := true
		for k, v := range c.values[i] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				// Break the line across unplottable samples.
				pendingMove = true
				continue
			}
			pt := f32.Pt(c.xForTime(c.timestamps[k]), c.yForValue(v))
			if pendingMove {
				p.MoveTo(pt)
				pendingMove = false
			} else {
				p.LineTo(pt)
			}
		}
		paint.FillShape(gtx.Ops, seriesColor(c.colorBase+i), clip.Stroke{
			Path:  p.End(),
			Width: oneDp,
		}.Op())
	}

	idx := backend.HighlightIndex(c.timestamps, c.effectiveTime())
	if idx >= 0 {
		c.layoutHighlight(gtx, th, idx, oneDp)
	}
	return D{Size: c.plotSize}
}

// layoutHighlight draws the committed/hovered sample marker: a vertical
// line, one dot per series, and (while hovered) a value readout beside the
// cursor.
func (c *Chart) layoutHighlight(gtx C, th *material.Theme, idx int, oneDp float32) {
	x := c.xForTime(c.timestamps[idx])
	paint.FillShape(gtx.Ops, color.NRGBA{A: 255}, clip.Rect{
		Min: image.Point{X: int(floor(x))},
		Max: image.Point{X: int(ceil(x + oneDp)), Y: c.plotSize.Y},
	}.Op())
	for i := range c.values {
		if !c.Enabled[i].Value {
			continue
		}
		v := c.values[i][idx]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		r := gtx.Dp(3)
		center := image.Pt(int(x), int(c.yForValue(v)))
		paint.FillShape(gtx.Ops, seriesColor(c.colorBase+i), clip.Ellipse{
			Min: center.Sub(image.Pt(r, r)),
			Max: center.Add(image.Pt(r, r)),
		}.Op(gtx.Ops))
	}
	if !c.isHovered {
		return
	}

	children := []layout.FlexChild{}
	for _, entry := range c.readoutEntries(idx) {
		entry := entry
		children = append(children, layout.Rigid(func(gtx C) D {
			return layout.Flex{Alignment: layout.Middle}.Layout(gtx,
				layout.Rigid(material.Body2(th, strconv.FormatFloat(entry.value, 'f', 3, 64)).Layout),
				layout.Rigid(layout.Spacer{Width: 8}.Layout),
				layout.Rigid(func(gtx C) D {
					size := image.Pt(gtx.Dp(8), gtx.Dp(8))
					paint.FillShape(gtx.Ops, seriesColor(c.colorBase+entry.series), clip.Ellipse{Max: size}.Op(gtx.Ops))
					return D{Size: size}
				}),
			)
		}))
	}
	origConstraints := gtx.Constraints
	gtx.Constraints.Min = image.Point{}
	infoDims, infoCall := rec(gtx, func(gtx C) D {
		return layout.Background{}.Layout(gtx,
			func(gtx C) D {
				paint.FillShape(gtx.Ops, color.NRGBA{R: 255, G: 255, B: 255, A: 150}, clip.Rect{Max: gtx.Constraints.Min}.Op())
				return D{Size: gtx.Constraints.Min}
			},
			func(gtx C) D {
				return layout.UniformInset(10).Layout(gtx, func(gtx C) D {
					return layout.Flex{
						Axis:      layout.Vertical,
						Alignment: layout.End,
					}.Layout(gtx, children...)
				})
			},
		)
	})
	gtx.Constraints = origConstraints

	pos := image.Point{}
	if int(x) > c.plotSize.X-int(x) {
		pos.X = max(int(x)-infoDims.Size.X-gtx.Dp(4), 0)
	} else {
		pos.X = min(int(x)+gtx.Dp(4), c.plotSize.X-infoDims.Size.X)
	}
	if offscreenY := c.plotSize.Y - (int(c.pos.Y) + infoDims.Size.Y); offscreenY < 0 {
		pos.Y = int(c.pos.Y) + offscreenY
	} else {
		pos.Y = int(c.pos.Y)
	}
	transform := op.Offset(pos).Push(gtx.Ops)
	infoCall.Add(gtx.Ops)
	transform.Pop()
}

type readoutEntry struct {
	series int
	value  float64
}

// readoutEntries lists the hover readout's rows for one sample, largest
// value first. Disabled series and unplottable values are skipped.
func (c *Chart) readoutEntries(idx int) []readoutEntry {
	var entries []readoutEntry
	var values []float64
	for i := range c.values {
		if !c.Enabled[i].Value {
			continue
		}
		v := c.values[i][idx]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		insertIdx, _ := slices.BinarySearch(values, v)
		values = slices.Insert(values, insertIdx, v)
		entries = slices.Insert(entries, len(entries)-insertIdx, readoutEntry{series: i, value: v})
	}
	return entries
}

func (c *Chart) layoutKey(gtx C, th *material.Theme) D {
	table := component.Table(th, &c.keyTable)
	table.HScrollbarStyle.Indicator.MinorWidth = 0
	table.HScrollbarStyle.Track.MinorPadding = 0
	table.VScrollbarStyle.Indicator.MinorWidth = 0
	table.VScrollbarStyle.Track.MinorPadding = 0
	colorColWidth := gtx.Dp(50)
	statColWidth := gtx.Dp(100)
	nameColWidth := gtx.Constraints.Max.X - colorColWidth - 2*statColWidth - gtx.Dp(table.VScrollbarStyle.Width())
	rowHeight := gtx.Sp(20)
	const (
		colorCol = iota
		seriesNameCol
		minCol
		maxCol
		numCols
	)
	return table.Layout(gtx, len(c.ds.Series), numCols,
		func(axis layout.Axis, index, constraint int) int {
			if axis == layout.Vertical {
				return min(constraint, rowHeight)
			}
			var size int
			switch index {
			case colorCol:
				size = colorColWidth
			case seriesNameCol:
				size = nameColWidth
			case minCol, maxCol:
				size = statColWidth
			}
			return min(size, constraint)
		},
		func(gtx C, index int) D {
			var l material.LabelStyle
			switch index {
			case colorCol:
				l = material.Body1(th, "Color")
			case seriesNameCol:
				l = material.Body1(th, "Series")
				l.Alignment = text.Middle
			case minCol:
				l = material.Body1(th, "Min")
				l.Alignment = text.End
			case maxCol:
				l = material.Body1(th, "Max")
				l.Alignment = text.End
			default:
				l = material.Body1(th, "???")
			}
			l.Color = th.ContrastFg
			return layout.Background{}.Layout(gtx,
				func(gtx C) D {
					paint.FillShape(gtx.Ops, th.ContrastBg, clip.Rect{Max: gtx.Constraints.Max}.Op())
					return D{Size: gtx.Constraints.Min}
				}, func(gtx C) D {
					return l.Layout(gtx)
				},
			)
		},
		func(gtx C, row, col int) (dims D) {
			defer func() {
				dims.Size = gtx.Constraints.Constrain(dims.Size)
			}()
			c.Enabled[row].Update(gtx)
			enabled := c.Enabled[row].Value
			disabledAlpha := uint8(100)
			return layout.UniformInset(2).Layout(gtx, func(gtx C) D {
				switch col {
				case colorCol:
					return c.Enabled[row].Layout(gtx, func(gtx C) D {
						return layout.Center.Layout(gtx, func(gtx C) D {
							sideLen := gtx.Dp(10)
							sz := image.Pt(sideLen, sideLen)
							fullColor := seriesColor(c.colorBase + row)
							if !enabled {
								fullColor.A = disabledAlpha
							}
							paint.FillShape(gtx.Ops, fullColor, clip.Rect{Max: sz}.Op())
							return D{Size: sz}
						})
					})
				case seriesNameCol:
					l := material.Body2(th, c.ds.Series[row])
					if !enabled {
						l.Color.A = disabledAlpha
					}
					return l.Layout(gtx)
				case minCol:
					l := material.Body2(th, strconv.FormatFloat(c.seriesMin[row], 'f', 3, 64))
					if !enabled {
						l.Color.A = disabledAlpha
					}
					l.Alignment = text.End
					return l.Layout(gtx)
				case maxCol:
					l := material.Body2(th, strconv.FormatFloat(c.seriesMax[row], 'f', 3, 64))
					if !enabled {
						l.Color.A = disabledAlpha
					}
					l.Alignment = text.End
					return l.Layout(gtx)
				default:
					return D{Size: gtx.Constraints.Max}
				}
			})
		})
}
