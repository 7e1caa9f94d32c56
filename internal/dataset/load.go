package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupported indicates a file extension that cannot be loaded as a table.
var ErrUnsupported = errors.New("unsupported dataset format")

// ErrEmpty indicates a file without a header row.
var ErrEmpty = errors.New("dataset has no header")

// LoadOptions controls how files become tables.
type LoadOptions struct {
	// Delimiter for CSV. If 0, sniffed from the extension and the header line.
	Delimiter rune
	// SheetName selects an XLSX sheet by name; SheetIndex (1-based) is used otherwise.
	SheetName  string
	SheetIndex int
	// MaxRows limits rows read; 0 means unlimited.
	MaxRows int
	Parse   ParseOptions
}

// Loaded is a table ready for analysis, with the renames the normalizer applied.
type Loaded struct {
	Name    string
	Table   *Table
	Renamed []Rename
}

// Load reads a CSV/TSV/XLSX file and normalizes its column names.
func Load(path string, opt LoadOptions) (*Loaded, error) {
	ext := strings.ToLower(filepath.Ext(path))
	var (
		t   *Table
		err error
	)
	switch ext {
	case ".csv", ".tsv", ".txt":
		f, oerr := os.Open(path)
		if oerr != nil {
			return nil, fmt.Errorf("open %s: %w", filepath.Base(path), oerr)
		}
		defer f.Close()
		if opt.Delimiter == 0 && ext == ".tsv" {
			opt.Delimiter = '\t'
		}
		t, err = ReadCSV(f, opt)
	case ".xlsx":
		t, err = ReadXLSX(path, opt)
	default:
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupported)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}
	norm, renamed := Normalize(t)
	return &Loaded{Name: filepath.Base(path), Table: norm, Renamed: renamed}, nil
}

// ReadCSV parses delimited text with a header row. Column names are not
// normalized.
func ReadCSV(r io.Reader, opt LoadOptions) (*Table, error) {
	br := bufio.NewReader(r)
	delim := opt.Delimiter
	if delim == 0 {
		head, _ := br.Peek(4096)
		delim = sniffDelimiter(string(head))
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true
	cr.Comma = delim

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	var records [][]string
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(records)+1, err)
		}
		if blankRecord(rec) {
			continue
		}
		records = append(records, rec)
		if opt.MaxRows > 0 && len(records) >= opt.MaxRows {
			break
		}
	}
	return FromRecords(header, records, opt.Parse), nil
}

// sniffDelimiter picks the most frequent of ',', ';' and tab in the first line.
func sniffDelimiter(head string) rune {
	line := head
	if i := strings.IndexByte(head, '\n'); i >= 0 {
		line = head[:i]
	}
	best, bestN := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := strings.Count(line, string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
