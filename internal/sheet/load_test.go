package sheet

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func TestReadCSV(t *testing.T) {
	input := "\uFEFFID,email,website\n1,\"a@x.com,b@y.com\",www.test.com\n2,,\n3\n"
	tbl, err := readCSV(strings.NewReader(input), ',')
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Columns[0] != "ID" {
		t.Fatalf("bom not stripped: %q", tbl.Columns[0])
	}
	if len(tbl.Rows) != 3 {
		t.Fatalf("rows=%d", len(tbl.Rows))
	}
	if tbl.Rows[0][1] == nil || *tbl.Rows[0][1] != "a@x.com,b@y.com" {
		t.Fatalf("email=%v", tbl.Rows[0][1])
	}
	if tbl.Rows[1][1] != nil || tbl.Rows[1][2] != nil {
		t.Fatal("empty cells should load as missing")
	}
	if len(tbl.Rows[2]) != 3 || tbl.Rows[2][2] != nil {
		t.Fatalf("short row not padded: %v", tbl.Rows[2])
	}
}

func TestReadCSVEmpty(t *testing.T) {
	if _, err := readCSV(strings.NewReader(""), ','); err == nil {
		t.Fatal("expected error")
	}
	tbl, err := readCSV(strings.NewReader("ID,email\n"), ',')
	if err != nil {
		t.Fatal(err)
	}
	if len(tbl.Rows) != 0 {
		t.Fatalf("rows=%d", len(tbl.Rows))
	}
}

func TestReadXLSX(t *testing.T) {
	blob := mkXLSX([][]any{
		{"ID", "email", "website"},
		{1, "a@x.com", "www.test.com"},
		{2, "", "hhttp://b.com"},
	})
	tbl, err := Decode(blob, LoadOptions{Format: FormatXLSX})
	if err != nil {
		t.Fatal(err)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows=%d", len(tbl.Rows))
	}
	if *tbl.Rows[0][0] != "1" || tbl.Rows[1][1] != nil || *tbl.Rows[1][2] != "hhttp://b.com" {
		t.Fatalf("rows=%v", tbl.Rows)
	}
}

func TestReadHTMLTable(t *testing.T) {
	html := `<html><body><table><tr><th>ID</th><th>category</th></tr><tr><td>7</td><td> News, Tech </td></tr><tr><td>8</td><td></td></tr></table></body></html>`
	tbl, err := readHTMLTable(html)
	if err != nil {
		t.Fatal(err)
	}
	if len(tbl.Rows) != 2 || *tbl.Rows[0][1] != "News, Tech" || tbl.Rows[1][1] != nil {
		t.Fatalf("tbl=%+v", tbl)
	}
	if _, err := readHTMLTable("<p>nothing</p>"); err == nil {
		t.Fatal("expected error for missing table")
	}
}

const emlWithCSV = "From: ops@example.com\r\n" +
	"To: data@example.com\r\n" +
	"Subject: contacts\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"b1\"\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"see attached\r\n" +
	"--b1\r\n" +
	"Content-Type: text/csv; name=\"contacts.csv\"\r\n" +
	"Content-Disposition: attachment; filename=\"contacts.csv\"\r\n" +
	"\r\n" +
	"ID,email,website\r\n" +
	"1,a@x.com,www.test.com\r\n" +
	"--b1--\r\n"

func TestReadEMLAttachment(t *testing.T) {
	tbl, err := Decode([]byte(emlWithCSV), LoadOptions{Format: FormatEML})
	if err != nil {
		t.Fatal(err)
	}
	if len(tbl.Columns) != 3 || len(tbl.Rows) != 1 || *tbl.Rows[0][2] != "www.test.com" {
		t.Fatalf("tbl=%+v", tbl)
	}
}

func TestDetectFormat(t *testing.T) {
	cases := map[string]Format{"a.csv": FormatCSV, "B.XLSX": FormatXLSX, "x.htm": FormatHTML, "m.eml": FormatEML}
	for path, want := range cases {
		got, err := DetectFormat(path)
		if err != nil || got != want {
			t.Fatalf("DetectFormat(%s)=%s,%v", path, got, err)
		}
	}
	if _, err := DetectFormat("noext"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := DetectFormat("a.pdf"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	tbl := New([]string{"ID", "email_1", "email_2"}, [][]*string{
		{sp("1"), sp("a@x.com"), sp("b@y.com")},
		{sp("2"), sp("c@z.com"), nil},
	})

	for _, name := range []string{"out.csv", "out.xlsx"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(tmp, "nested", name)
			if err := Save(tbl, path, ','); err != nil {
				t.Fatal(err)
			}
			back, err := Load(path, LoadOptions{})
			if err != nil {
				t.Fatal(err)
			}
			if len(back.Rows) != 2 || back.Rows[1][2] != nil || *back.Rows[0][2] != "b@y.com" {
				t.Fatalf("back=%+v", back)
			}
		})
	}

	if err := Save(tbl, filepath.Join(tmp, "out.json"), ','); err == nil {
		t.Fatal("expected unsupported output error")
	}
	if _, err := os.Stat(filepath.Join(tmp, "out.json")); !os.IsNotExist(err) {
		t.Fatal("unsupported output should not create a file")
	}
}
