package export

import "fmt"

// Column describes one exported column. Width is a relative weight used by the PDF layout.
type Column struct {
	Key   string
	Label string
	Width float64
}

// Dataset defines tabular export content.
type Dataset struct {
	Title    string
	Subtitle string
	Columns  []Column
	Rows     []map[string]string
}

func (d Dataset) validate() error {
	if len(d.Columns) == 0 {
		return fmt.Errorf("export requires at least one column")
	}
	return nil
}

func (d Dataset) labels() []string {
	labels := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		labels[i] = col.Label
		if labels[i] == "" {
			labels[i] = col.Key
		}
	}
	return labels
}

func (d Dataset) record(row map[string]string) []string {
	record := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		record[i] = row[col.Key]
	}
	return record
}
