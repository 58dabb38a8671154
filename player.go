package main

import (
	"image"
	"image/color"
	"strconv"
	"time"

	"gioui.org/io/event"
	"gioui.org/io/pointer"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/widget"
	"gioui.org/widget/material"

	"git.sr.ht/~whereswaldon/episode-viewer/backend"
)

// Player drives the shared timeline forward in real time, standing in for
// the camera footage the episode was recorded alongside. All charts follow
// its position through the timeline.
type Player struct {
	timeline *backend.Timeline
	duration float64
	rate     float64

	playBtn  widget.Clickable
	playing  bool
	lastTick time.Time

	scrubWidth int
}

func NewPlayer(timeline *backend.Timeline, duration, rate float64) *Player {
	if rate <= 0 {
		rate = 1
	}
	return &Player{
		timeline: timeline,
		duration: duration,
		rate:     rate,
	}
}

func (p *Player) Update(gtx C) {
	if p.playBtn.Clicked(gtx) {
		p.playing = !p.playing
		p.lastTick = gtx.Now
	}
	for {
		ev, ok := gtx.Event(pointer.Filter{
			Target: p,
			Kinds:  pointer.Press | pointer.Drag,
		})
		if !ok {
			break
		}
		pe, ok := ev.(pointer.Event)
		if !ok {
			continue
		}
		switch pe.Kind {
		case pointer.Press, pointer.Drag:
			if p.scrubWidth > 0 && p.duration > 0 {
				frac := float64(pe.Position.X) / float64(p.scrubWidth)
				frac = min(max(frac, 0), 1)
				p.timeline.SetCurrent(frac * p.duration)
			}
		}
	}
	if p.playing {
		elapsed := gtx.Now.Sub(p.lastTick).Seconds() * p.rate
		p.lastTick = gtx.Now
		next := p.timeline.Current() + elapsed
		if next >= p.duration {
			next = p.duration
			p.playing = false
		}
		p.timeline.SetCurrent(next)
		gtx.Execute(op.InvalidateCmd{})
	}
}

func (p *Player) Layout(gtx C, th *material.Theme) D {
	p.Update(gtx)
	icon := playIcon
	if p.playing {
		icon = pauseIcon
	}
	current := p.timeline.Current()
	posLabel := material.Body1(th,
		strconv.FormatFloat(current, 'f', 2, 64)+" / "+strconv.FormatFloat(p.duration, 'f', 2, 64)+" s")
	return layout.Flex{Alignment: layout.Middle}.Layout(gtx,
		layout.Rigid(func(gtx C) D {
			btn := material.IconButton(th, &p.playBtn, icon, "play or pause")
			btn.Size = 20
			btn.Inset = layout.UniformInset(4)
			return btn.Layout(gtx)
		}),
		layout.Rigid(layout.Spacer{Width: 8}.Layout),
		layout.Flexed(1, func(gtx C) D {
			return p.layoutScrubBar(gtx, th, current)
		}),
		layout.Rigid(layout.Spacer{Width: 8}.Layout),
		layout.Rigid(posLabel.Layout),
	)
}

// layoutScrubBar draws the seek track and registers it for press and drag
// seeking.
func (p *Player) layoutScrubBar(gtx C, th *material.Theme, current float64) D {
	size := image.Pt(gtx.Constraints.Max.X, gtx.Dp(20))
	p.scrubWidth = size.X
	defer clip.Rect{Max: size}.Push(gtx.Ops).Pop()
	event.Op(gtx.Ops, p)

	trackHeight := gtx.Dp(4)
	trackTop := (size.Y - trackHeight) / 2
	track := color.NRGBA{A: 50}
	paint.FillShape(gtx.Ops, track, clip.Rect{
		Min: image.Pt(0, trackTop),
		Max: image.Pt(size.X, trackTop+trackHeight),
	}.Op())

	if p.duration > 0 {
		frac := min(max(current/p.duration, 0), 1)
		filled := int(frac * float64(size.X))
		paint.FillShape(gtx.Ops, th.ContrastBg, clip.Rect{
			Min: image.Pt(0, trackTop),
			Max: image.Pt(filled, trackTop+trackHeight),
		}.Op())
		r := gtx.Dp(6)
		center := image.Pt(filled, size.Y/2)
		paint.FillShape(gtx.Ops, th.ContrastBg, clip.Ellipse{
			Min: center.Sub(image.Pt(r, r)),
			Max: center.Add(image.Pt(r, r)),
		}.Op(gtx.Ops))
	}
	return D{Size: size}
}
