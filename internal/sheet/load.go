package sheet

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sheetclean/internal/util"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatHTML Format = "html"
	FormatEML  Format = "eml"
)

type LoadOptions struct {
	Format Format
	Comma  rune
	Sheet  string
}

func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	case "html", "htm":
		return FormatHTML, nil
	case "eml":
		return FormatEML, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", value)
	}
}

func DetectFormat(path string) (Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "", fmt.Errorf("cannot detect format of %s: no extension", path)
	}
	return ParseFormat(ext)
}

func Load(path string, opts LoadOptions) (Table, error) {
	if opts.Format == "" {
		format, err := DetectFormat(path)
		if err != nil {
			return Table{}, err
		}
		opts.Format = format
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return Table{}, err
	}
	t, err := Decode(blob, opts)
	if err != nil {
		return Table{}, fmt.Errorf("load %s: %w", path, err)
	}
	return t, nil
}

func Decode(content []byte, opts LoadOptions) (Table, error) {
	switch opts.Format {
	case FormatCSV:
		return readCSV(bytes.NewReader(content), opts.Comma)
	case FormatXLSX:
		return readXLSX(content, opts.Sheet)
	case FormatHTML:
		return readHTMLTable(string(content))
	case FormatEML:
		return readEML(content, opts)
	default:
		return Table{}, fmt.Errorf("unsupported format: %q", opts.Format)
	}
}

// fromRecords builds a table from a header row and string rows; empty
// strings become missing cells.
func fromRecords(header []string, records [][]string) Table {
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}
	t := Table{Columns: columns, Rows: make([][]*string, 0, len(records))}
	for _, rec := range records {
		row := make([]*string, len(columns))
		for i := 0; i < len(columns) && i < len(rec); i++ {
			if rec[i] == "" {
				continue
			}
			row[i] = util.StringPtr(rec[i])
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
