// Package csvcodec serializes aggregated rows into CSV text.
package csvcodec

import (
	"strings"
	"time"

	"github.com/dmitrysluch/eva-table-reactor/models"
)

// DateHeader is the name of the first CSV column
const DateHeader = "Date"

// Serialize renders the header and one line per tagged row.
// Lines are joined by "\n" with no trailing newline. A field is quoted only
// when it contains a comma, a double quote or a newline.
func Serialize(columns []models.ColumnRule, rows []models.TaggedRow) string {
	var sb strings.Builder

	writeField(&sb, DateHeader)
	for _, col := range columns {
		sb.WriteByte(',')
		writeField(&sb, col.Name)
	}

	for _, row := range rows {
		sb.WriteByte('\n')
		writeField(&sb, row.Date)
		for _, col := range columns {
			sb.WriteByte(',')
			writeField(&sb, row.Values[col.Name])
		}
	}

	return sb.String()
}

func writeField(sb *strings.Builder, value string) {
	if !strings.ContainsAny(value, ",\"\n") {
		sb.WriteString(value)
		return
	}
	sb.WriteByte('"')
	sb.WriteString(strings.ReplaceAll(value, `"`, `""`))
	sb.WriteByte('"')
}

// Filename builds "<name>-<UTC timestamp>.csv" with ":" and "T" replaced by "-".
// An empty name becomes "table".
func Filename(name string, now time.Time) string {
	if name == "" {
		name = "table"
	}
	stamp := now.UTC().Format("2006-01-02T15:04:05")
	stamp = strings.NewReplacer(":", "-", "T", "-").Replace(stamp)
	return name + "-" + stamp + ".csv"
}
