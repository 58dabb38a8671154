package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeDataset(t *testing.T, frames string) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "meta"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "data"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "meta", "info.json"), []byte(sampleInfoJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "data", "episode_000000.jsonl"), []byte(frames), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestLocalFetch(t *testing.T) {
	frames := `{"timestamp": 0, "action": [0.1, 0.2], "observation.state": [1, 2, 3], "frame_index": 0}
{"timestamp": 0.033, "action": [0.3, 0.4], "observation.state": [4, 5, 6], "frame_index": 1}
{"timestamp": 0.066, "action": [0.5, 0.6], "observation.state": [7, 8, 9], "frame_index": 2}
`
	root := writeDataset(t, frames)
	fetcher := NewLocalEpisodeFetcher(root)
	meta, rows, err := fetcher.FetchEpisode(context.Background(), 0)
	if err != nil {
		t.Fatalf("failed fetching episode: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[1].Timestamp != 0.033 {
		t.Errorf("expected timestamp 0.033, got %f", rows[1].Timestamp)
	}
	if len(rows[0].Values) != 2 {
		t.Fatalf("expected 2 chartable columns per row, got %d", len(rows[0].Values))
	}
	if rows[2].Values[1][2] != 9 {
		t.Errorf("expected observation.state[2] == 9, got %f", rows[2].Values[1][2])
	}
	if len(fetcher.Files()) != 2 {
		t.Errorf("expected 2 backing files, got %v", fetcher.Files())
	}

	ep, err := BuildEpisode(meta, rows)
	if err != nil {
		t.Fatalf("failed building episode: %v", err)
	}
	if ep.Duration != 0.066 {
		t.Errorf("expected duration 0.066, got %f", ep.Duration)
	}
	if len(ep.Datasets) != len(ep.Groups) {
		t.Errorf("expected one dataset per group, got %d datasets for %d groups", len(ep.Datasets), len(ep.Groups))
	}
	if len(ep.Ignored) != 1 || ep.Ignored[0] != "depth_map" {
		t.Errorf("expected depth_map ignored, got %v", ep.Ignored)
	}
	if len(ep.VideoKeys) != 1 || ep.VideoKeys[0] != "observation.images.cam" {
		t.Errorf("expected one video key, got %v", ep.VideoKeys)
	}
}

func TestLocalFetchDropsPartialTrailingLine(t *testing.T) {
	frames := `{"timestamp": 0, "action": [0.1, 0.2], "observation.state": [1, 2, 3]}
{"timestamp": 0.033, "action": [0.3, 0.4], "observation.state": [4, 5, 6]}
{"timestamp": 0.066, "action": [0.5, 0`
	root := writeDataset(t, frames)
	_, rows, err := NewLocalEpisodeFetcher(root).FetchEpisode(context.Background(), 0)
	if err != nil {
		t.Fatalf("failed fetching episode with partial trailing line: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected the partial trailing line to be dropped, got %d rows", len(rows))
	}
}

func TestLocalFetchLongLines(t *testing.T) {
	// Frames with a wide vector column produce lines far longer than a
	// decoder's refill buffer; no bytes may be dropped mid-line.
	const width = 200
	root := t.TempDir()
	for _, dir := range []string{"meta", "data"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	meta := fmt.Sprintf(`{
  "total_episodes": 1,
  "total_frames": 3,
  "fps": 30,
  "features": {
    "action": {"dtype": "float32", "shape": [%d], "names": null}
  }
}`, width)
	if err := os.WriteFile(filepath.Join(root, "meta", "info.json"), []byte(meta), 0o644); err != nil {
		t.Fatal(err)
	}
	var frames strings.Builder
	for i := 0; i < 3; i++ {
		vals := make([]string, width)
		for j := range vals {
			vals[j] = fmt.Sprintf("%d.%03d", i, j)
		}
		fmt.Fprintf(&frames, `{"timestamp": %d, "action": [%s]}`+"\n", i, strings.Join(vals, ", "))
	}
	if err := os.WriteFile(filepath.Join(root, "data", "episode_000000.jsonl"), []byte(frames.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	_, rows, err := NewLocalEpisodeFetcher(root).FetchEpisode(context.Background(), 0)
	if err != nil {
		t.Fatalf("failed fetching episode with long lines: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if got := rows[2].Values[0][width-1]; got != 2.199 {
		t.Errorf("expected last value 2.199, got %f", got)
	}
}

func TestLineReaderSmallBuffers(t *testing.T) {
	line := strings.Repeat("abcdefgh", 100) + "\n"
	lr := newLineReader(strings.NewReader(line + "partial"))
	var got []byte
	buf := make([]byte, 16)
	for {
		n, err := lr.Read(buf)
		got = append(got, buf[:n]...)
		if err != nil {
			break
		}
	}
	if string(got) != line {
		t.Errorf("expected %d complete-line bytes, got %d", len(line), len(got))
	}
}

func TestLocalFetchMissingColumn(t *testing.T) {
	frames := `{"timestamp": 0, "action": [0.1, 0.2]}
`
	root := writeDataset(t, frames)
	_, _, err := NewLocalEpisodeFetcher(root).FetchEpisode(context.Background(), 0)
	if err == nil {
		t.Fatal("expected an error for a missing column")
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Errorf("expected FetchError, got %T: %v", err, err)
	}
}

func TestLocalFetchShapeMismatch(t *testing.T) {
	frames := `{"timestamp": 0, "action": [0.1, 0.2, 0.3], "observation.state": [1, 2, 3]}
`
	root := writeDataset(t, frames)
	_, _, err := NewLocalEpisodeFetcher(root).FetchEpisode(context.Background(), 0)
	if err == nil {
		t.Fatal("expected an error for a mis-shaped column")
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Errorf("expected FetchError, got %T: %v", err, err)
	}
}

func TestLocalFetchEpisodeOutOfRange(t *testing.T) {
	root := writeDataset(t, "")
	_, _, err := NewLocalEpisodeFetcher(root).FetchEpisode(context.Background(), 7)
	if err == nil {
		t.Fatal("expected an error for an out-of-range episode")
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Errorf("expected FetchError, got %T: %v", err, err)
	}
}
