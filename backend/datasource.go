package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"git.sr.ht/~gioverse/skel/stream"
	"github.com/fsnotify/fsnotify"
)

// EpisodeFetcher retrieves one episode's metadata and rows from wherever it
// lives. Implementations own network and file format concerns; the core only
// sees the shape contract. Any malformed shape, missing column, or
// unreachable path must surface as an error, never a coerced result.
type EpisodeFetcher interface {
	FetchEpisode(ctx context.Context, episode int) (EpisodeMetadata, []RawRow, error)
}

// FileBacked is implemented by fetchers that read local files, letting the
// datasource watch those files for staleness.
type FileBacked interface {
	Files() []string
}

// Episode is everything the rendering layer needs for one episode view,
// materialized once after a successful fetch.
type Episode struct {
	Metadata EpisodeMetadata
	// Schema is the full ordered series-name list, timestamp first.
	Schema []string
	// Ignored lists numeric columns dropped for being multi-dimensional.
	Ignored []string
	// Unscaled lists series excluded from grouping for lacking finite values.
	Unscaled []string
	Records  []Record
	Groups   [][]string
	Datasets []ChartDataset
	Duration float64
	// VideoKeys names the episode's synchronized video streams.
	VideoKeys []string
}

// BuildEpisode runs the full pipeline over fetched data: column selection,
// series naming, flattening, magnitude grouping, and dataset construction.
// It is pure and synchronous; all I/O belongs to the fetcher.
func BuildEpisode(meta EpisodeMetadata, rows []RawRow) (*Episode, error) {
	chartable, ignored := SelectColumns(meta)
	schema := SeriesSchema(chartable)
	records, err := Flatten(rows, schema)
	if err != nil {
		return nil, err
	}
	duration, err := Duration(records)
	if err != nil {
		return nil, err
	}
	groups, unscaled := GroupSeries(records, schema[1:])
	var videoKeys []string
	for _, f := range meta.Features {
		if f.DType == "video" {
			videoKeys = append(videoKeys, f.Key)
		}
	}
	return &Episode{
		Metadata:  meta,
		Schema:    schema,
		Ignored:   ignored,
		Unscaled:  unscaled,
		Records:   records,
		Groups:    groups,
		Datasets:  BuildDatasets(records, groups),
		Duration:  duration,
		VideoKeys: videoKeys,
	}, nil
}

// Session is the observable state of one episode load.
type Session struct {
	ID      string
	Episode *Episode
	Err     error
	// Stale is set when the files backing the episode changed on disk after
	// loading. The in-memory episode is never re-ingested.
	Stale bool
}

// Datasource loads episodes through a mutation pool so that every consumer
// observes the same session state and a superseded load's result is
// discarded with its context instead of being applied to a stale view.
type Datasource struct {
	pool    *stream.MutationPool[string, Session]
	watcher *fsnotify.Watcher
	appCtx  context.Context

	// lock guards routes, mapping each watched file to the sessions
	// subscribed to its events. The watcher delivers all events on one
	// channel, so a single dispatcher fans them out by file name.
	lock   sync.Mutex
	routes map[string][]chan fsnotify.Event
}

func NewDatasource(appCtx context.Context, mutator *stream.Mutator) (*Datasource, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed creating file watcher: %w", err)
	}
	d := &Datasource{
		pool:    stream.NewMutationPool[string, Session](mutator),
		watcher: watcher,
		appCtx:  appCtx,
		routes:  make(map[string][]chan fsnotify.Event),
	}
	go d.routeEvents()
	return d, nil
}

// routeEvents owns the watcher's event channel for the life of the app,
// fanning each event out to every session subscribed to its file.
func (d *Datasource) routeEvents() {
	for {
		select {
		case <-d.appCtx.Done():
			return
		case ev, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			d.lock.Lock()
			for _, ch := range d.routes[ev.Name] {
				select {
				case ch <- ev:
				default:
				}
			}
			d.lock.Unlock()
		}
	}
}

func (d *Datasource) SessionStream(ctx context.Context) <-chan map[string]*stream.Mutation[Session] {
	return d.pool.Stream(ctx)
}

func generateSessionID() string {
	return strings.Replace(time.Now().UTC().Format("20060102150405.000000000"), ".", "", 1)
}

// Load fetches and materializes an episode asynchronously, returning the
// session mutation for consumers to stream. If the load's context is
// cancelled mid-fetch the result is dropped, never partially applied.
func (d *Datasource) Load(fetcher EpisodeFetcher, episode int) (*stream.Mutation[Session], bool) {
	id := generateSessionID()
	return stream.Mutate(d.pool, id, func(ctx context.Context) <-chan Session {
		out := make(chan Session, 1)
		go func() {
			defer close(out)
			session := Session{ID: id}
			meta, rows, err := fetcher.FetchEpisode(ctx, episode)
			if ctx.Err() != nil {
				return
			}
			if err == nil {
				session.Episode, err = BuildEpisode(meta, rows)
			}
			session.Err = err
			select {
			case out <- session:
			case <-ctx.Done():
				return
			}
			if session.Err != nil {
				return
			}
			fb, ok := fetcher.(FileBacked)
			if !ok {
				return
			}
			d.watchForChanges(ctx, fb.Files(), session, out)
		}()
		return out
	})
}

// watchForChanges marks the session stale on the first write to any of its
// backing files. Each session receives only its own files' events through
// the dispatcher, so concurrent sessions never consume one another's.
func (d *Datasource) watchForChanges(ctx context.Context, files []string, session Session, out chan<- Session) {
	events := make(chan fsnotify.Event, 1)
	var watched []string
	d.lock.Lock()
	for _, f := range files {
		if err := d.watcher.Add(f); err != nil {
			continue
		}
		d.routes[f] = append(d.routes[f], events)
		watched = append(watched, f)
	}
	d.lock.Unlock()
	if len(watched) == 0 {
		return
	}
	defer func() {
		d.lock.Lock()
		for _, f := range watched {
			remaining := d.routes[f][:0]
			for _, ch := range d.routes[f] {
				if ch != events {
					remaining = append(remaining, ch)
				}
			}
			if len(remaining) == 0 {
				delete(d.routes, f)
				d.watcher.Remove(f)
			} else {
				d.routes[f] = remaining
			}
		}
		d.lock.Unlock()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if !ev.Has(fsnotify.Write) {
				continue
			}
			session.Stale = true
			select {
			case out <- session:
			case <-ctx.Done():
			}
			return
		}
	}
}
