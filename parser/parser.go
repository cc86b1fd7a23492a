package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dmitrysluch/eva-table-reactor/models"
)

// ErrSelectorMissing is returned when a schema has no table locator
var ErrSelectorMissing = errors.New("table selector missing in configuration")

// Parser extracts table rows from rendered HTML
type Parser struct{}

// NewParser creates a new Parser instance
func NewParser() *Parser {
	return &Parser{}
}

// ParseHTML runs the schema's column rules against an HTML snapshot
func (p *Parser) ParseHTML(htmlContent string, schema models.TableSchema) ([]models.Row, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return p.Extract(doc, schema)
}

// Extract runs the schema's column rules against a parsed document.
// Cells are read by position only; sample selectors are never consulted.
func (p *Parser) Extract(doc *goquery.Document, schema models.TableSchema) ([]models.Row, error) {
	if strings.TrimSpace(schema.TableSelector) == "" {
		return nil, ErrSelectorMissing
	}

	table, err := p.findTable(doc, schema.TableSelector)
	if err != nil {
		return nil, err
	}
	tableNode := table.Nodes[0]

	rows := p.candidateRows(table, schema.DataSection)

	// Keep rows of this exact table, outside any header, with at least one cell
	var data []*goquery.Selection
	rows.Each(func(_ int, row *goquery.Selection) {
		if closestTable(row.Nodes[0]) != tableNode {
			return
		}
		if inHeader(row.Nodes[0], tableNode) {
			return
		}
		if cells(row).Length() == 0 {
			return
		}
		data = append(data, row)
	})

	skip := minSampleIndex(schema.Columns)
	if skip > len(data) {
		skip = len(data)
	}
	data = data[skip:]

	records := make([]models.Row, 0, len(data))
	for _, row := range data {
		rowCells := cells(row)
		record := make(models.Row, len(schema.Columns))
		for _, col := range schema.Columns {
			value := ""
			if col.ColumnIndex >= 0 && col.ColumnIndex < rowCells.Length() {
				value = innerText(rowCells.Get(col.ColumnIndex))
			}
			record[col.Name] = value
		}
		records = append(records, record)
	}

	return records, nil
}

// findTable resolves a CSS locator, or an XPath one when it starts with "/" or "("
func (p *Parser) findTable(doc *goquery.Document, locator string) (*goquery.Selection, error) {
	locator = strings.TrimSpace(locator)

	if strings.HasPrefix(locator, "/") || strings.HasPrefix(locator, "(") {
		if len(doc.Nodes) == 0 {
			return nil, fmt.Errorf("%w for selector %s", models.ErrTableNotFound, locator)
		}
		node, err := htmlquery.Query(doc.Nodes[0], locator)
		if err != nil {
			return nil, fmt.Errorf("invalid xpath %s: %w", locator, err)
		}
		if node == nil {
			return nil, fmt.Errorf("%w for selector %s", models.ErrTableNotFound, locator)
		}
		return doc.FindNodes(node), nil
	}

	// Invalid CSS selectors match nothing
	table := doc.Find(locator).First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w for selector %s", models.ErrTableNotFound, locator)
	}
	return table, nil
}

// candidateRows gathers rows of the hinted section, falling back to every row of the table
func (p *Parser) candidateRows(table *goquery.Selection, section models.DataSection) *goquery.Selection {
	if section != models.SectionTable {
		if !section.Valid() {
			section = models.SectionTBody
		}
		rows := table.Find(string(section)).Filter("tbody, thead, tfoot").Find("tr")
		if rows.Length() > 0 {
			return rows
		}
	}
	return table.Find("tr")
}

func cells(row *goquery.Selection) *goquery.Selection {
	return row.ChildrenFiltered("td, th")
}

func minSampleIndex(columns []models.ColumnRule) int {
	if len(columns) == 0 {
		return 0
	}
	lowest := columns[0].SampleRowIndex
	for _, col := range columns[1:] {
		if col.SampleRowIndex < lowest {
			lowest = col.SampleRowIndex
		}
	}
	if lowest < 0 {
		return 0
	}
	return lowest
}

func closestTable(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == atom.Table {
			return p
		}
	}
	return nil
}

// inHeader reports whether n sits inside a thead below table
func inHeader(n, table *html.Node) bool {
	for p := n.Parent; p != nil && p != table; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == atom.Thead {
			return true
		}
	}
	return false
}
