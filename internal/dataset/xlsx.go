package dataset

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
)

// ReadXLSX reads one worksheet of an .xlsx workbook. The first row is the
// header. SheetName wins over SheetIndex; with neither, the first sheet is read.
func ReadXLSX(filename string, opt LoadOptions) (*Table, error) {
	zr, err := zip.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer zr.Close()

	wb := workbook{files: &zr.Reader}
	target, err := wb.resolveSheet(opt.SheetName, opt.SheetIndex)
	if err != nil {
		return nil, err
	}
	shared := parseSharedStrings(wb.read("xl/sharedStrings.xml"))
	sheet := wb.read(target)
	if len(sheet) == 0 {
		return nil, fmt.Errorf("worksheet %s missing", target)
	}

	rows := newRowReader(sheet, shared)
	header, ok := rows.Next()
	if !ok || blankRecord(header) {
		return nil, ErrEmpty
	}
	var records [][]string
	for {
		rec, ok := rows.Next()
		if !ok {
			break
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

type workbook struct {
	files *zip.Reader
}

type sheetEntry struct {
	name string
	id   int
	rid  string
}

func (wb workbook) read(name string) []byte {
	for _, f := range wb.files.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		return b
	}
	return nil
}

func (wb workbook) resolveSheet(name string, index int) (string, error) {
	sheets := parseSheets(wb.read("xl/workbook.xml"))
	rels := parseRelationships(wb.read("xl/_rels/workbook.xml.rels"))
	if name != "" {
		names := make([]string, 0, len(sheets))
		for _, s := range sheets {
			if strings.EqualFold(s.name, name) {
				if target, ok := rels[s.rid]; ok {
					return sheetPath(target), nil
				}
			}
			names = append(names, s.name)
		}
		return "", fmt.Errorf("sheet %q not found; available: %s", name, strings.Join(names, ", "))
	}
	if index <= 0 {
		if len(sheets) > 0 {
			if target, ok := rels[sheets[0].rid]; ok {
				return sheetPath(target), nil
			}
		}
		index = 1
	}
	for _, s := range sheets {
		if s.id == index {
			if target, ok := rels[s.rid]; ok {
				return sheetPath(target), nil
			}
		}
	}
	return fmt.Sprintf("xl/worksheets/sheet%d.xml", index), nil
}

// sheetPath turns a relationship target into a zip entry name; targets may be
// absolute ("/xl/worksheets/sheet1.xml") or relative to xl/.
func sheetPath(target string) string {
	target = strings.TrimPrefix(target, "/")
	if strings.HasPrefix(target, "xl/") {
		return target
	}
	return path.Join("xl", target)
}

func parseSheets(data []byte) []sheetEntry {
	var out []sheetEntry
	eachStart(data, func(se xml.StartElement) {
		if se.Name.Local != "sheet" {
			return
		}
		var s sheetEntry
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "name":
				s.name = a.Value
			case "sheetId":
				s.id, _ = strconv.Atoi(a.Value)
			case "id":
				s.rid = a.Value
			}
		}
		out = append(out, s)
	})
	return out
}

func parseRelationships(data []byte) map[string]string {
	out := map[string]string{}
	eachStart(data, func(se xml.StartElement) {
		if se.Name.Local != "Relationship" {
			return
		}
		var id, target string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "Id":
				id = a.Value
			case "Target":
				target = a.Value
			}
		}
		if id != "" && target != "" {
			out[id] = target
		}
	})
	return out
}

func eachStart(data []byte, fn func(xml.StartElement)) {
	if len(data) == 0 {
		return
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		if se, ok := tok.(xml.StartElement); ok {
			fn(se)
		}
	}
}

// parseSharedStrings concatenates every <t> run of each <si> entry.
func parseSharedStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		out []string
		buf strings.Builder
		inT bool
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "si":
				buf.Reset()
			case "t":
				inT = true
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inT = false
			case "si":
				out = append(out, buf.String())
			}
		case xml.CharData:
			if inT {
				buf.Write(el)
			}
		}
	}
}

type rowReader struct {
	dec    *xml.Decoder
	shared []string
}

func newRowReader(data []byte, shared []string) *rowReader {
	return &rowReader{dec: xml.NewDecoder(bytes.NewReader(data)), shared: shared}
}

// Next returns the cells of the next <row>, placed by their column reference.
func (r *rowReader) Next() ([]string, bool) {
	var row []string
	inRow := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, false
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch {
			case el.Name.Local == "row":
				inRow = true
				row = row[:0]
			case inRow && el.Name.Local == "c":
				var ref, typ string
				for _, a := range el.Attr {
					switch a.Name.Local {
					case "r":
						ref = a.Value
					case "t":
						typ = a.Value
					}
				}
				col := columnIndex(ref)
				if col < 0 {
					col = len(row)
				}
				val, err := r.cellValue(typ)
				if err != nil {
					return nil, false
				}
				for len(row) <= col {
					row = append(row, "")
				}
				row[col] = val
			}
		case xml.EndElement:
			if el.Name.Local == "row" && inRow {
				out := make([]string, len(row))
				copy(out, row)
				return out, true
			}
		}
	}
}

func (r *rowReader) cellValue(typ string) (string, error) {
	var val strings.Builder
	inValue := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return "", err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "v" || el.Name.Local == "t" {
				inValue = true
			}
		case xml.CharData:
			if inValue {
				val.Write(el)
			}
		case xml.EndElement:
			if el.Name.Local == "v" || el.Name.Local == "t" {
				inValue = false
				continue
			}
			if el.Name.Local != "c" {
				continue
			}
			s := val.String()
			if typ == "s" {
				i, err := strconv.Atoi(strings.TrimSpace(s))
				if err != nil || i < 0 || i >= len(r.shared) {
					return "", nil
				}
				return r.shared[i], nil
			}
			return s, nil
		}
	}
}

// columnIndex converts "C12" to 2. It returns -1 when ref has no letters.
func columnIndex(ref string) int {
	idx := 0
	n := 0
	for _, ch := range strings.ToUpper(ref) {
		if ch < 'A' || ch > 'Z' {
			break
		}
		idx = idx*26 + int(ch-'A'+1)
		n++
	}
	if n == 0 {
		return -1
	}
	return idx - 1
}
