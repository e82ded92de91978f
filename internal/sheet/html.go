package sheet

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// readHTMLTable loads the first table of an HTML document. The first row is
// the header.
func readHTMLTable(html string) (Table, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Table{}, err
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return Table{}, errors.New("no table in html")
	}
	rows := table.Find("tr")
	if rows.Length() == 0 {
		return Table{}, errors.New("html table has no rows")
	}

	header := cellTexts(rows.First())
	records := [][]string{}
	rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
		records = append(records, cellTexts(row))
	})
	return fromRecords(header, records), nil
}

func cellTexts(row *goquery.Selection) []string {
	cells := []string{}
	row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, strings.TrimSpace(cell.Text()))
	})
	return cells
}
