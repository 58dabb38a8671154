package main

import (
	"image"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gioui.org/font/gofont"
	"gioui.org/layout"
	"gioui.org/text"
	"gioui.org/widget"
	"gioui.org/widget/material"
	"gioui.org/x/explorer"
	"git.sr.ht/~gioverse/skel/stream"
	"git.sr.ht/~whereswaldon/episode-viewer/backend"
)

type (
	C = layout.Context
	D = layout.Dimensions
)

// UI is responsible for holding the state of and drawing the top-level UI.
type UI struct {
	ws   backend.WindowState
	expl *explorer.Explorer
	cfg  Config

	th       *material.Theme
	timeline *backend.Timeline

	openBtn     widget.Clickable
	showIgnored widget.Bool
	loadErr     string

	session       backend.Session
	sessionStream *stream.Stream[backend.Session]

	charts    []*Chart
	player    *Player
	chartList widget.List
}

func NewUI(ws backend.WindowState, expl *explorer.Explorer, cfg Config, invalidate func()) *UI {
	th := material.NewTheme()
	th.Shaper = text.NewShaper(text.WithCollection(gofont.Collection()), text.NoSystemFonts())
	ui := &UI{
		ws:       ws,
		th:       th,
		expl:     expl,
		cfg:      cfg,
		timeline: backend.NewTimeline(invalidate),
	}
	ui.chartList.Axis = layout.Vertical
	if cfg.DataRoot != "" {
		ui.load(cfg.DataRoot)
	}
	return ui
}

// load kicks off an asynchronous episode load and subscribes this window to
// its session updates.
func (ui *UI) load(root string) {
	fetcher := backend.NewLocalEpisodeFetcher(root)
	mut, isNew := ui.ws.Bundle.Datasource.Load(fetcher, ui.cfg.Episode)
	if !isNew {
		log.Printf("did not create new session stream")
		return
	}
	ui.sessionStream = stream.New(ui.ws.Controller, mut.Stream)
}

// Update the state of the UI and generate events. Must be called each frame
// before Layout.
func (ui *UI) Update(gtx C) {
	if ui.openBtn.Clicked(gtx) {
		f, err := ui.expl.ChooseFile("json")
		if err != nil {
			log.Printf("failed browsing for file: %v", err)
		} else {
			if osFile, ok := f.(*os.File); !ok {
				log.Printf("selected file of unexpected type: %T", f)
			} else {
				// The picker targets meta/info.json; the dataset root is
				// two levels up.
				name := osFile.Name()
				osFile.Close()
				ui.load(filepath.Dir(filepath.Dir(name)))
			}
		}
	}
	ui.showIgnored.Update(gtx)
	if ui.sessionStream == nil {
		return
	}
	session, isNew := ui.sessionStream.ReadNew(gtx)
	if !isNew {
		return
	}
	ui.session = session
	if session.Err != nil {
		ui.loadErr = session.Err.Error()
		return
	}
	ui.loadErr = ""
	if session.Episode != nil {
		ui.rebuild(session.Episode)
	}
}

// rebuild replaces the chart set for a freshly loaded episode. Series keep
// their palette position across charts so a series never changes color when
// grouping shifts it between charts.
func (ui *UI) rebuild(ep *backend.Episode) {
	ui.charts = ui.charts[:0]
	ui.timeline.SetCurrent(0)
	colorBase := 0
	for _, ds := range ep.Datasets {
		ui.charts = append(ui.charts, NewChart(ds, ui.timeline, colorBase))
		colorBase += len(ds.Series)
	}
	ui.player = NewPlayer(ui.timeline, ep.Duration, ui.cfg.PlaybackRate)
}

func (ui *UI) layoutStartScreen(gtx C) D {
	l := material.Body1(ui.th, "No episode loaded.")
	return layout.Flex{
		Axis:      layout.Vertical,
		Alignment: layout.Middle,
		Spacing:   layout.SpaceAround,
	}.Layout(gtx,
		layout.Rigid(func(gtx C) D {
			gtx.Constraints.Min = image.Point{}
			return l.Layout(gtx)
		}),
		layout.Rigid(func(gtx C) D {
			gtx.Constraints.Min = image.Point{}
			return material.Button(ui.th, &ui.openBtn, "Open Episode Dataset").Layout(gtx)
		}),
		layout.Rigid(func(gtx C) D {
			gtx.Constraints.Min = image.Point{}
			return material.Body2(ui.th, ui.loadErr).Layout(gtx)
		}),
	)
}

func (ui *UI) layoutHeader(gtx C, ep *backend.Episode) D {
	title := material.H6(ui.th, "Episode "+strconv.Itoa(ui.cfg.Episode))
	parts := []string{
		strconv.Itoa(len(ep.Records)) + " frames",
		strconv.Itoa(len(ep.Schema)-1) + " series",
	}
	if len(ep.VideoKeys) > 0 {
		parts = append(parts, strconv.Itoa(len(ep.VideoKeys))+" video streams")
	}
	info := material.Body2(ui.th, strings.Join(parts, ", "))
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx C) D {
			return layout.Flex{Alignment: layout.Baseline}.Layout(gtx,
				layout.Rigid(title.Layout),
				layout.Rigid(layout.Spacer{Width: 12}.Layout),
				layout.Rigid(info.Layout),
				layout.Flexed(1, func(gtx C) D {
					return layout.E.Layout(gtx, material.Button(ui.th, &ui.openBtn, "Open").Layout)
				}),
			)
		}),
		layout.Rigid(func(gtx C) D {
			if !ui.session.Stale {
				return D{}
			}
			l := material.Body2(ui.th, "Files changed on disk; showing the loaded snapshot.")
			l.Color = color.NRGBA{R: 150, G: 100, A: 255}
			return l.Layout(gtx)
		}),
		layout.Rigid(func(gtx C) D {
			if len(ep.Ignored) == 0 && len(ep.Unscaled) == 0 {
				return D{}
			}
			return ui.showIgnored.Layout(gtx, func(gtx C) D {
				label := "Show skipped columns"
				if ui.showIgnored.Value {
					label = skippedSummary(ep)
				}
				l := material.Body2(ui.th, label)
				l.Color = color.NRGBA{A: 150}
				return l.Layout(gtx)
			})
		}),
	)
}

func skippedSummary(ep *backend.Episode) string {
	var b strings.Builder
	if len(ep.Ignored) > 0 {
		b.WriteString("Not charted (multi-dimensional): ")
		b.WriteString(strings.Join(ep.Ignored, ", "))
	}
	if len(ep.Unscaled) > 0 {
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		b.WriteString("No finite samples: ")
		b.WriteString(strings.Join(ep.Unscaled, ", "))
	}
	return b.String()
}

func (ui *UI) layoutMainArea(gtx C, ep *backend.Episode) D {
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx C) D {
			return layout.UniformInset(4).Layout(gtx, func(gtx C) D {
				return ui.layoutHeader(gtx, ep)
			})
		}),
		layout.Rigid(func(gtx C) D {
			if len(ui.loadErr) == 0 {
				return D{}
			}
			l := material.Body1(ui.th, ui.loadErr)
			l.Color = color.NRGBA{R: 150, A: 255}
			return l.Layout(gtx)
		}),
		layout.Flexed(1, func(gtx C) D {
			return material.List(ui.th, &ui.chartList).Layout(gtx, len(ui.charts), func(gtx C, index int) D {
				gtx.Constraints.Min.Y = gtx.Dp(250)
				gtx.Constraints.Max.Y = gtx.Constraints.Min.Y
				return layout.UniformInset(4).Layout(gtx, func(gtx C) D {
					return ui.charts[index].Layout(gtx, ui.th)
				})
			})
		}),
		layout.Rigid(func(gtx C) D {
			if ui.player == nil {
				return D{}
			}
			return layout.UniformInset(4).Layout(gtx, func(gtx C) D {
				return ui.player.Layout(gtx, ui.th)
			})
		}),
	)
}

// Layout the UI into the provided context.
func (ui *UI) Layout(gtx C) D {
	ui.Update(gtx)
	if ui.session.Episode == nil {
		return ui.layoutStartScreen(gtx)
	}
	return ui.layoutMainArea(gtx, ui.session.Episode)
}
