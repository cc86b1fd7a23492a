package csvcodec

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrysluch/eva-table-reactor/models"
)

var columns = []models.ColumnRule{{Name: "Item"}, {Name: "Price"}}

func TestSerialize(t *testing.T) {
	rows := []models.TaggedRow{
		{Date: "2024-01-01", Values: models.Row{"Item": "apple", "Price": "1.00"}},
		{Date: "2024-01-02", Values: models.Row{"Item": "pear"}},
	}

	got := Serialize(columns, rows)
	assert.Equal(t, "Date,Item,Price\n2024-01-01,apple,1.00\n2024-01-02,pear,", got)
}

func TestSerializeHeaderOnly(t *testing.T) {
	assert.Equal(t, "Date,Item,Price", Serialize(columns, nil))
}

func TestSerializeEscaping(t *testing.T) {
	rows := []models.TaggedRow{
		{Date: "d", Values: models.Row{"Item": `say "hi"`, "Price": "1,000"}},
		{Date: "d", Values: models.Row{"Item": "two\nlines", "Price": " padded "}},
	}

	got := Serialize(columns, rows)
	assert.Equal(t, "Date,Item,Price\nd,\"say \"\"hi\"\"\",\"1,000\"\nd,\"two\nlines\", padded ", got)
}

func TestSerializeDeterministic(t *testing.T) {
	rows := []models.TaggedRow{{Date: "d", Values: models.Row{"Price": "2", "Item": "x"}}}
	assert.Equal(t, Serialize(columns, rows), Serialize(columns, rows))
}

func TestSerializeRoundTrip(t *testing.T) {
	cols := []models.ColumnRule{{Name: "a,b"}, {Name: `q"uote`}, {Name: "plain"}}
	rows := []models.TaggedRow{
		{Date: "2024-01-01", Values: models.Row{"a,b": "x,y,z", `q"uote`: `"quoted"`, "plain": "multi\nline\nvalue"}},
		{Date: "2024-01-02", Values: models.Row{"a,b": "", `q"uote`: `,"`, "plain": "  spaced  "}},
		{Date: "2024-01-03", Values: models.Row{}},
	}

	r := csv.NewReader(strings.NewReader(Serialize(cols, rows)))
	r.FieldsPerRecord = 4
	records, err := r.ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 4)
	assert.Equal(t, []string{"Date", "a,b", `q"uote`, "plain"}, records[0])
	for i, row := range rows {
		want := []string{row.Date}
		for _, c := range cols {
			want = append(want, row.Values[c.Name])
		}
		assert.Equal(t, want, records[i+1])
	}
}

func TestFilename(t *testing.T) {
	now := time.Date(2024, 3, 5, 7, 8, 9, 123456789, time.UTC)

	assert.Equal(t, "Rates-2024-03-05-07-08-09.csv", Filename("Rates", now))
	assert.Equal(t, "table-2024-03-05-07-08-09.csv", Filename("", now))

	local := now.In(time.FixedZone("X", 3*3600))
	assert.Equal(t, "table-2024-03-05-07-08-09.csv", Filename("", local))
}
