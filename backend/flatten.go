package backend

// RawRow is one sample instant as produced by the data source: a timestamp
// plus one fixed-length value array per chartable column, positionally
// aligned to the selected-column schema.
type RawRow struct {
	Timestamp float64
	Values    [][]float64
}

// Record is a flat mapping from series name (including the timestamp column)
// to its value at one sample instant.
type Record map[string]float64

// Flatten materializes the flat time-series records all charts are built
// from. Each row's timestamp and column values are concatenated in column
// order and zipped positionally against the series schema. A row whose
// flattened length disagrees with the schema aborts the whole episode with a
// SchemaMismatchError.
func Flatten(rows []RawRow, schema []string) ([]Record, error) {
	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		flat := make([]float64, 1, len(schema))
		flat[0] = row.Timestamp
		for _, col := range row.Values {
			flat = append(flat, col...)
		}
		if len(flat) != len(schema) {
			return nil, &SchemaMismatchError{Row: i, Got: len(flat), Want: len(schema)}
		}
		rec := make(Record, len(schema))
		for j, name := range schema {
			rec[name] = flat[j]
		}
		records = append(records, rec)
	}
	return records, nil
}
