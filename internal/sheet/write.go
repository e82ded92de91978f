package sheet

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Save writes the table as CSV or XLSX depending on the output extension.
func Save(t Table, outputPath string, comma rune) error {
	switch strings.ToLower(filepath.Ext(outputPath)) {
	case ".csv":
		return saveCSV(t, outputPath, comma)
	case ".xlsx":
		return saveXLSX(t, outputPath)
	default:
		return fmt.Errorf("unsupported output format: %s", outputPath)
	}
}
