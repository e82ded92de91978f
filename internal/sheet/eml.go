package sheet

import (
	"bytes"
	"errors"
	"strings"

	"github.com/jhillyerd/enmime"
)

// readEML loads a sheet delivered by email: the first CSV or XLSX part wins,
// then the first table in the HTML body.
func readEML(raw []byte, opts LoadOptions) (Table, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return Table{}, err
	}

	parts := append([]*enmime.Part{}, env.Attachments...)
	parts = append(parts, env.Inlines...)
	for _, part := range parts {
		name := strings.ToLower(strings.TrimSpace(part.FileName))
		switch {
		case strings.HasSuffix(name, ".csv") || part.ContentType == "text/csv":
			return readCSV(bytes.NewReader(part.Content), opts.Comma)
		case strings.HasSuffix(name, ".xlsx"):
			return readXLSX(part.Content, opts.Sheet)
		}
	}

	if strings.Contains(strings.ToLower(env.HTML), "<table") {
		return readHTMLTable(env.HTML)
	}
	return Table{}, errors.New("email carries no csv/xlsx attachment or html table")
}
