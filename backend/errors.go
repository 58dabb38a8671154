package backend

import "fmt"

// FetchError indicates that episode metadata or row retrieval failed, or that
// the retrieved structure could not be parsed. It is fatal to the current
// episode view.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed fetching episode: %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// SchemaMismatchError indicates that a row flattened to a different number of
// values than the series schema expects. Rows are never truncated or padded
// to fit, since silent misalignment would corrupt every downstream chart.
type SchemaMismatchError struct {
	Row  int
	Got  int
	Want int
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("row %d flattened to %d values, schema expects %d", e.Row, e.Got, e.Want)
}

// EmptyEpisodeError indicates an episode with zero rows. The data was
// structurally valid but there is nothing to chart and no duration.
type EmptyEpisodeError struct{}

func (e *EmptyEpisodeError) Error() string {
	return "episode contains no records"
}
