package backend

// ChartDataset is the record sequence backing one rendered chart: every
// source record projected down to the timestamp plus the chart's series.
type ChartDataset struct {
	Series  []string
	Records []Record
}

// BuildDatasets projects the flat records into one dataset per chart group.
// No resampling or aggregation happens here: each output record corresponds
// positionally to a source record, so all datasets stay frame-aligned.
func BuildDatasets(records []Record, groups [][]string) []ChartDataset {
	datasets := make([]ChartDataset, 0, len(groups))
	for _, group := range groups {
		ds := ChartDataset{
			Series:  group,
			Records: make([]Record, 0, len(records)),
		}
		for _, rec := range records {
			proj := make(Record, len(group)+1)
			proj[TimestampColumn] = rec[TimestampColumn]
			for _, name := range group {
				proj[name] = rec[name]
			}
			ds.Records = append(ds.Records, proj)
		}
		datasets = append(datasets, ds)
	}
	return datasets
}

// Timestamps returns the dataset's time axis in record order.
func (d ChartDataset) Timestamps() []float64 {
	out := make([]float64, len(d.Records))
	for i, rec := range d.Records {
		out[i] = rec[TimestampColumn]
	}
	return out
}

// SeriesValues returns one series' values in record order.
func (d ChartDataset) SeriesValues(name string) []float64 {
	out := make([]float64, len(d.Records))
	for i, rec := range d.Records {
		out[i] = rec[name]
	}
	return out
}

// Duration is the timestamp of the last record. An episode with no records
// has no duration and is reported as an EmptyEpisodeError.
func Duration(records []Record) (float64, error) {
	if len(records) == 0 {
		return 0, &EmptyEpisodeError{}
	}
	return records[len(records)-1][TimestampColumn], nil
}
