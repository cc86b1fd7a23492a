package models

// DataSection names the part of a table whose rows count as data rows
type DataSection string

const (
	SectionTBody DataSection = "tbody"
	SectionTHead DataSection = "thead"
	SectionTFoot DataSection = "tfoot"
	// SectionTable means every row of the table, the column rules decide
	SectionTable DataSection = "table"
)

// Valid reports whether s is one of the known sections
func (s DataSection) Valid() bool {
	switch s {
	case SectionTBody, SectionTHead, SectionTFoot, SectionTable:
		return true
	}
	return false
}

// PageLocation is the normalized location a schema was authored on
type PageLocation struct {
	Origin   string `json:"origin" yaml:"origin"`
	Pathname string `json:"pathname" yaml:"pathname"`
}

// IsZero reports whether the location is the empty location
func (l PageLocation) IsZero() bool {
	return l.Origin == "" && l.Pathname == ""
}

// String joins origin and pathname back into a URL
func (l PageLocation) String() string {
	return l.Origin + l.Pathname
}

// TableSchema is a reusable extraction recipe bound to a page template
type TableSchema struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	URLTemplate   string       `json:"urlTemplate"`
	Page          PageLocation `json:"page"`
	TableSelector string       `json:"tableSelector"`
	DataSection   DataSection  `json:"dataSection"`
	Columns       []ColumnRule `json:"columns"`
}

// ColumnRule is one extracted field of a table schema
type ColumnRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ColumnIndex int    `json:"columnIndex"`
	// SampleCellSelector is only used to re-highlight the sample while authoring
	SampleCellSelector string      `json:"sampleCellSelector"`
	SampleRowIndex     int         `json:"sampleRowIndex"`
	Section            DataSection `json:"section"`
}

// Exportable reports whether the schema has at least one column
func (t TableSchema) Exportable() bool {
	return len(t.Columns) > 0
}

// ColumnIndexOf returns the position of the column matching id or name, or -1.
// Names are compared even when empty, so at most one unnamed column exists.
func (t TableSchema) ColumnIndexOf(id, name string) int {
	for i, col := range t.Columns {
		if (id != "" && col.ID == id) || col.Name == name {
			return i
		}
	}
	return -1
}

// Row is one extracted record keyed by column name
type Row map[string]string

// TaggedRow is a row tagged with the date of the instance it came from
type TaggedRow struct {
	Date   string
	Values Row
}

// ScrapeRequest is sent to a rendered instance to run extraction in it
type ScrapeRequest struct {
	Schema TableSchema `json:"table"`
	Date   string      `json:"date"`
}

// ScrapeResponse carries either rows or an extraction failure reason.
// An Error response is a valid reply, distinct from a transport failure.
type ScrapeResponse struct {
	Rows  []Row  `json:"rows,omitempty"`
	Error string `json:"error,omitempty"`
}
