package domain

// Row is one record of a materialized dataset, keyed by column name.
type Row map[string]any

// Dataset is the materialized content of a physical table.
type Dataset struct {
	Locator string   // physical table name referenced by UploadEvent.PhysicalTable
	Columns []string // column order as uploaded
	Rows    []Row
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// IsEmpty reports whether the dataset has no rows.
func (d *Dataset) IsEmpty() bool {
	return d.Len() == 0
}

// Column returns the values of one column in row order.
// Rows missing the column contribute nil.
func (d *Dataset) Column(name string) []any {
	if d == nil {
		return nil
	}
	out := make([]any, 0, len(d.Rows))
	for _, r := range d.Rows {
		out = append(out, r[name])
	}
	return out
}
