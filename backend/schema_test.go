package backend

import (
	"encoding/json"
	"reflect"
	"testing"
)

const sampleInfoJSON = `{
  "codebase_version": "v2.0",
  "robot_type": "so100",
  "total_episodes": 2,
  "total_frames": 400,
  "fps": 30,
  "features": {
    "action": {"dtype": "float32", "shape": [2], "names": null},
    "observation.state": {"dtype": "float32", "shape": [3], "names": {"motors": ["x", "y", "z"]}},
    "observation.images.cam": {"dtype": "video", "shape": [480, 640, 3], "names": ["height", "width", "channel"]},
    "depth_map": {"dtype": "float32", "shape": [480, 640], "names": null},
    "timestamp": {"dtype": "float32", "shape": [1], "names": null},
    "frame_index": {"dtype": "int64", "shape": [1], "names": null},
    "episode_index": {"dtype": "int64", "shape": [1], "names": null},
    "index": {"dtype": "int64", "shape": [1], "names": null},
    "task_index": {"dtype": "int64", "shape": [1], "names": null}
  }
}`

func parseSampleMetadata(t *testing.T) EpisodeMetadata {
	t.Helper()
	var meta EpisodeMetadata
	if err := json.Unmarshal([]byte(sampleInfoJSON), &meta); err != nil {
		t.Fatalf("failed parsing metadata: %v", err)
	}
	return meta
}

func TestMetadataParsing(t *testing.T) {
	meta := parseSampleMetadata(t)
	if meta.TotalEpisodes != 2 {
		t.Errorf("expected 2 episodes, got %d", meta.TotalEpisodes)
	}
	if meta.TotalFrames != 400 {
		t.Errorf("expected 400 frames, got %d", meta.TotalFrames)
	}
	if meta.FPS != 30 {
		t.Errorf("expected 30 fps, got %f", meta.FPS)
	}
	wantOrder := []string{
		"action",
		"observation.state",
		"observation.images.cam",
		"depth_map",
		"timestamp",
		"frame_index",
		"episode_index",
		"index",
		"task_index",
	}
	if len(meta.Features) != len(wantOrder) {
		t.Fatalf("expected %d features, got %d", len(wantOrder), len(meta.Features))
	}
	for i, f := range meta.Features {
		if f.Key != wantOrder[i] {
			t.Errorf("feature %d: expected %q, got %q", i, wantOrder[i], f.Key)
		}
	}
}

func TestSelectColumns(t *testing.T) {
	meta := parseSampleMetadata(t)
	chartable, ignored := SelectColumns(meta)
	wantChartable := []string{"action", "observation.state"}
	if len(chartable) != len(wantChartable) {
		t.Fatalf("expected %d chartable columns, got %d", len(wantChartable), len(chartable))
	}
	for i, f := range chartable {
		if f.Key != wantChartable[i] {
			t.Errorf("chartable %d: expected %q, got %q", i, wantChartable[i], f.Key)
		}
	}
	if !reflect.DeepEqual(ignored, []string{"depth_map"}) {
		t.Errorf("expected ignored [depth_map], got %v", ignored)
	}
}

func TestSeriesNames(t *testing.T) {
	for _, tc := range []struct {
		name    string
		feature Feature
		want    []string
	}{
		{
			name:    "vector without names expands positionally",
			feature: Feature{Key: "action", DType: "float32", Shape: []int{2}},
			want:    []string{"action | 0", "action | 1"},
		},
		{
			name: "vector with flat names",
			feature: Feature{
				Key:   "state",
				DType: "float32",
				Shape: []int{2},
				Names: NameSpec{List: []string{"x", "y"}},
			},
			want: []string{"state | x", "state | y"},
		},
		{
			name: "vector with nested names resolves first value",
			feature: Feature{
				Key:   "state",
				DType: "float32",
				Shape: []int{3},
				Names: NameSpec{Nested: []NamedSpec{
					{Key: "motors", Spec: NameSpec{List: []string{"x", "y", "z"}}},
					{Key: "other", Spec: NameSpec{List: []string{"unused"}}},
				}},
			},
			want: []string{"state | x", "state | y", "state | z"},
		},
		{
			name:    "length-one column keeps its bare name",
			feature: Feature{Key: "gripper", DType: "float32", Shape: []int{1}},
			want:    []string{"gripper"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := SeriesNames(tc.feature)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestNameSpecResolutionBounded(t *testing.T) {
	spec := NameSpec{List: []string{"leaf"}}
	for i := 0; i < maxNameDepth+4; i++ {
		spec = NameSpec{Nested: []NamedSpec{{Key: "wrap", Spec: spec}}}
	}
	if _, ok := spec.Resolve(); ok {
		t.Errorf("expected resolution beyond the depth bound to fail")
	}
	shallow := NameSpec{Nested: []NamedSpec{{Key: "wrap", Spec: NameSpec{List: []string{"leaf"}}}}}
	labels, ok := shallow.Resolve()
	if !ok || len(labels) != 1 || labels[0] != "leaf" {
		t.Errorf("expected shallow nesting to resolve to [leaf], got %v %v", labels, ok)
	}
}

func TestSeriesSchema(t *testing.T) {
	meta := parseSampleMetadata(t)
	chartable, _ := SelectColumns(meta)
	got := SeriesSchema(chartable)
	want := []string{
		"timestamp",
		"action | 0",
		"action | 1",
		"observation.state | x",
		"observation.state | y",
		"observation.state | z",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected schema %v, got %v", want, got)
	}
}
