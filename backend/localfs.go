package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalEpisodeFetcher reads a recorded dataset from a local directory laid
// out as meta/info.json plus data/episode_NNNNNN.jsonl, one JSON object per
// frame keyed by column name with values shaped per the declared shapes.
type LocalEpisodeFetcher struct {
	Root  string
	files []string
}

var _ EpisodeFetcher = (*LocalEpisodeFetcher)(nil)
var _ FileBacked = (*LocalEpisodeFetcher)(nil)

func NewLocalEpisodeFetcher(root string) *LocalEpisodeFetcher {
	return &LocalEpisodeFetcher{Root: root}
}

// Files lists the files the last fetch read, for staleness watching.
func (l *LocalEpisodeFetcher) Files() []string {
	return l.files
}

func (l *LocalEpisodeFetcher) FetchEpisode(ctx context.Context, episode int) (EpisodeMetadata, []RawRow, error) {
	metaPath := filepath.Join(l.Root, "meta", "info.json")
	raw, err := os.ReadFile(metaPath)
	if err != nil {
		return EpisodeMetadata{}, nil, &FetchError{Op: "read metadata", Err: err}
	}
	var meta EpisodeMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return EpisodeMetadata{}, nil, &FetchError{Op: "parse metadata", Err: err}
	}
	if episode < 0 || (meta.TotalEpisodes > 0 && episode >= meta.TotalEpisodes) {
		return EpisodeMetadata{}, nil, &FetchError{
			Op:  "locate episode",
			Err: fmt.Errorf("episode %d out of range, dataset has %d", episode, meta.TotalEpisodes),
		}
	}
	rowsPath := filepath.Join(l.Root, "data", fmt.Sprintf("episode_%06d.jsonl", episode))
	f, err := os.Open(rowsPath)
	if err != nil {
		return EpisodeMetadata{}, nil, &FetchError{Op: "open episode data", Err: err}
	}
	defer f.Close()
	chartable, _ := SelectColumns(meta)
	rows, err := decodeRows(ctx, f, chartable)
	if err != nil {
		return EpisodeMetadata{}, nil, err
	}
	l.files = []string{metaPath, rowsPath}
	return meta, rows, nil
}

// decodeRows parses line-delimited JSON frames. The reader is wrapped so
// that only complete lines reach the decoder: a recording still being
// flushed ends with a partial line, which is dropped rather than surfaced as
// a parse error.
func decodeRows(ctx context.Context, r io.Reader, chartable []Feature) ([]RawRow, error) {
	dec := json.NewDecoder(newLineReader(r))
	var rows []RawRow
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var frame map[string]json.RawMessage
		if err := dec.Decode(&frame); err != nil {
			return nil, &FetchError{Op: fmt.Sprintf("parse frame %d", len(rows)), Err: err}
		}
		row, err := decodeRow(frame, chartable)
		if err != nil {
			return nil, &FetchError{Op: fmt.Sprintf("parse frame %d", len(rows)), Err: err}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func decodeRow(frame map[string]json.RawMessage, chartable []Feature) (RawRow, error) {
	var row RawRow
	tsRaw, ok := frame[TimestampColumn]
	if !ok {
		return row, fmt.Errorf("missing %q column", TimestampColumn)
	}
	if err := json.Unmarshal(tsRaw, &row.Timestamp); err != nil {
		return row, fmt.Errorf("bad timestamp: %w", err)
	}
	row.Values = make([][]float64, 0, len(chartable))
	for _, f := range chartable {
		raw, ok := frame[f.Key]
		if !ok {
			return row, fmt.Errorf("missing column %q", f.Key)
		}
		vals, err := decodeColumnValue(raw)
		if err != nil {
			return row, fmt.Errorf("column %q: %w", f.Key, err)
		}
		if len(f.Shape) > 0 && len(vals) != f.Shape[0] {
			return row, fmt.Errorf("column %q has %d values, shape declares %d", f.Key, len(vals), f.Shape[0])
		}
		row.Values = append(row.Values, vals)
	}
	return row, nil
}

// decodeColumnValue accepts either an array of numbers or a bare number,
// which recorders emit for length-one columns.
func decodeColumnValue(raw json.RawMessage) ([]float64, error) {
	var vals []float64
	if err := json.Unmarshal(raw, &vals); err == nil {
		return vals, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("value is neither a number nor an array of numbers")
	}
	return []float64{v}, nil
}

// lineReader is a specialized reader that ensures only entire
// newline-delimited lines are read at a time. This keeps the JSON decoder
// from ever seeing the partial trailing line of a file that is still being
// written by a recorder.
type lineReader struct {
	r *bufio.Reader
	// partial accumulates an incomplete trailing line until a newline
	// arrives; pending holds complete-line bytes that did not fit the
	// caller's buffer.
	partial []byte
	pending []byte
}

var _ io.Reader = (*lineReader)(nil)

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{
		r: bufio.NewReader(r),
	}
}

func (l *lineReader) Read(b []byte) (int, error) {
	if len(l.pending) > 0 {
		n := copy(b, l.pending)
		l.pending = l.pending[n:]
		return n, nil
	}
	data, err := l.r.ReadBytes(byte('\n'))
	if err != nil {
		l.partial = append(l.partial, data...)
		return 0, io.EOF
	}
	if len(l.partial) > 0 {
		data = append(l.partial, data...)
		l.partial = nil
	}
	n := copy(b, data)
	l.pending = data[n:]
	return n, nil
}
