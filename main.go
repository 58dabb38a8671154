package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"gioui.org/app"
	"gioui.org/op"
	"gioui.org/x/explorer"
	"git.sr.ht/~gioverse/skel/stream"
	"git.sr.ht/~whereswaldon/episode-viewer/backend"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	flag.StringVar(&cfg.DataRoot, "data", cfg.DataRoot, "dataset directory to open at startup")
	flag.IntVar(&cfg.Episode, "episode", cfg.Episode, "episode index to load")
	flag.Float64Var(&cfg.PlaybackRate, "rate", cfg.PlaybackRate, "playback speed relative to real time")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mutator := stream.NewMutator(ctx, time.Second)
	bundle, err := backend.NewBundle(ctx, mutator)
	if err != nil {
		log.Fatal(err)
	}

	go func() {
		w := app.NewWindow(app.Title("Episode Viewer"))
		ws := backend.NewWindowState(ctx, bundle, w)
		expl := explorer.NewExplorer(w)
		ui := NewUI(ws, expl, cfg, w.Invalidate)
		if err := loop(w, expl, ui); err != nil {
			log.Fatal(err)
		}
		cancel()
		os.Exit(0)
	}()

	app.Main()
}

func loop(w *app.Window, expl *explorer.Explorer, ui *UI) error {
	var ops op.Ops
	for {
		ev := w.NextEvent()
		expl.ListenEvents(ev)
		switch ev := ev.(type) {
		case app.DestroyEvent:
			return ev.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, ev)
			ui.Layout(gtx)
			ev.Frame(gtx.Ops)
		}
	}
}
