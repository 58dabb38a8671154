package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// TimestampColumn is the reserved column carrying each row's sample time. It
// is excluded from charting as a data column but re-admitted as the first
// entry of every series schema.
const TimestampColumn = "timestamp"

// SeriesDelim separates a column name from a component label in an expanded
// series name. Column names must not otherwise contain it.
const SeriesDelim = " | "

// maxNameDepth bounds resolution of nested name metadata so that malformed
// metadata cannot recurse forever.
const maxNameDepth = 16

// bookkeeping columns are never charted regardless of their type or shape.
var bookkeepingColumns = map[string]bool{
	TimestampColumn: true,
	"frame_index":   true,
	"episode_index": true,
	"index":         true,
	"task_index":    true,
}

// NameSpec is a column's declared component names: a flat list, a nested
// mapping whose first values eventually lead to a list, or absent. The zero
// value is absent.
type NameSpec struct {
	List   []string
	Nested []NamedSpec
}

// NamedSpec is one entry of a nested name mapping, in document order.
type NamedSpec struct {
	Key  string
	Spec NameSpec
}

func (n *NameSpec) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*n = NameSpec{}
		return nil
	}
	switch trimmed[0] {
	case '[':
		return json.Unmarshal(trimmed, &n.List)
	case '{':
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		if _, err := dec.Token(); err != nil {
			return err
		}
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			key, ok := tok.(string)
			if !ok {
				return fmt.Errorf("unexpected key token %v in names metadata", tok)
			}
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return err
			}
			var sub NameSpec
			if err := json.Unmarshal(raw, &sub); err != nil {
				return err
			}
			n.Nested = append(n.Nested, NamedSpec{Key: key, Spec: sub})
		}
		return nil
	}
	return fmt.Errorf("unsupported names metadata: %s", trimmed)
}

// Resolve unwraps nested mappings, taking the first value of each in document
// order, until a non-empty list surfaces. The second return is false when the
// spec is absent, bottoms out empty, or exceeds the recursion bound.
func (n NameSpec) Resolve() ([]string, bool) {
	spec := n
	for depth := 0; depth < maxNameDepth; depth++ {
		if len(spec.List) > 0 {
			return spec.List, true
		}
		if len(spec.Nested) == 0 {
			return nil, false
		}
		spec = spec.Nested[0].Spec
	}
	return nil, false
}

// Feature describes one raw column of an episode.
type Feature struct {
	Key   string
	DType string
	Shape []int
	Names NameSpec
}

// EpisodeMetadata is the fixed description of one recorded episode. It is
// immutable once fetched. Features preserve the document order of the
// metadata they were parsed from, so downstream column order is stable.
type EpisodeMetadata struct {
	TotalFrames   int
	TotalEpisodes int
	FPS           float64
	Features      []Feature
}

type featureJSON struct {
	DType string   `json:"dtype"`
	Shape []int    `json:"shape"`
	Names NameSpec `json:"names"`
}

func (m *EpisodeMetadata) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("metadata is not an object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected key token %v in metadata", keyTok)
		}
		switch key {
		case "total_frames":
			err = dec.Decode(&m.TotalFrames)
		case "total_episodes":
			err = dec.Decode(&m.TotalEpisodes)
		case "fps":
			err = dec.Decode(&m.FPS)
		case "features":
			err = decodeFeatures(dec, &m.Features)
		default:
			var skip json.RawMessage
			err = dec.Decode(&skip)
		}
		if err != nil {
			return fmt.Errorf("failed parsing metadata field %q: %w", key, err)
		}
	}
	return nil
}

// decodeFeatures walks the features object with the token API instead of
// unmarshalling into a map, preserving document order.
func decodeFeatures(dec *json.Decoder, out *[]Feature) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("features is not an object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected key token %v in features", keyTok)
		}
		var fj featureJSON
		if err := dec.Decode(&fj); err != nil {
			return fmt.Errorf("failed parsing feature %q: %w", key, err)
		}
		*out = append(*out, Feature{
			Key:   key,
			DType: fj.DType,
			Shape: fj.Shape,
			Names: fj.Names,
		})
	}
	_, err = dec.Token()
	return err
}

func numericDType(dtype string) bool {
	return strings.HasPrefix(dtype, "float") ||
		strings.HasPrefix(dtype, "int") ||
		strings.HasPrefix(dtype, "uint")
}

// SelectColumns partitions an episode's columns into those that can be
// charted (numeric, one fixed dimension) and those that are ignored (numeric
// but multi-dimensional, reported so the UI can disclose what was dropped).
// Bookkeeping columns are excluded outright. Order follows the metadata.
func SelectColumns(meta EpisodeMetadata) (chartable []Feature, ignored []string) {
	for _, f := range meta.Features {
		if bookkeepingColumns[f.Key] {
			continue
		}
		if !numericDType(f.DType) {
			continue
		}
		switch {
		case len(f.Shape) == 1:
			chartable = append(chartable, f)
		case len(f.Shape) > 1:
			ignored = append(ignored, f.Key)
		}
	}
	return chartable, ignored
}

// SeriesNames expands one chartable column into its scalar series names. A
// length-one column keeps its bare column name. Longer columns expand to one
// series per declared label, or per positional index when no labels resolve.
func SeriesNames(f Feature) []string {
	length := 1
	if len(f.Shape) > 0 {
		length = f.Shape[0]
	}
	if length <= 1 {
		return []string{f.Key}
	}
	if labels, ok := f.Names.Resolve(); ok {
		out := make([]string, len(labels))
		for i, label := range labels {
			out[i] = f.Key + SeriesDelim + label
		}
		return out
	}
	out := make([]string, length)
	for i := range out {
		out[i] = fmt.Sprintf("%s%s%d", f.Key, SeriesDelim, i)
	}
	return out
}

// SeriesSchema builds the full ordered series-name list for a set of
// chartable columns, prefixed by the timestamp column.
func SeriesSchema(chartable []Feature) []string {
	schema := make([]string, 1, len(chartable)+1)
	schema[0] = TimestampColumn
	for _, f := range chartable {
		schema = append(schema, SeriesNames(f)...)
	}
	return schema
}

// seriesSuffix returns the component label shared across columns, the part
// after the first delimiter, or the empty string for unexpanded series.
func seriesSuffix(name string) string {
	if _, after, ok := strings.Cut(name, SeriesDelim); ok {
		return after
	}
	return ""
}
