package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

const sharedStringsPath = "xl/sharedStrings.xml"

// xlsxText renders every worksheet as tab-separated rows, one row per line.
// Shared-string cells are resolved through xl/sharedStrings.xml.
func xlsxText(_ context.Context, data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open zip: %w", err)
	}
	var shared []string
	var sheets []*zip.File
	for _, f := range zr.File {
		switch {
		case f.Name == sharedStringsPath:
			if shared, err = readSharedStrings(f); err != nil {
				return "", err
			}
		case strings.HasPrefix(f.Name, "xl/worksheets/") && strings.HasSuffix(f.Name, ".xml"):
			sheets = append(sheets, f)
		}
	}
	if len(sheets) == 0 {
		return "", errors.New("no worksheets found in archive")
	}
	// sheet2.xml before sheet10.xml
	sort.Slice(sheets, func(i, j int) bool {
		a, b := sheets[i].Name, sheets[j].Name
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})

	var rows []string
	for _, f := range sheets {
		sheetRows, err := readSheet(f, shared)
		if err != nil {
			return "", err
		}
		rows = append(rows, sheetRows...)
	}
	return strings.Join(rows, "\n"), nil
}

func readSharedStrings(f *zip.File) ([]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	var out []string
	var current strings.Builder
	inText, inPhonetic := false, false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", f.Name, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "si":
				current.Reset()
			case "rPh":
				inPhonetic = true
			case "t":
				inText = !inPhonetic
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "rPh":
				inPhonetic = false
			case "si":
				out = append(out, current.String())
			}
		}
	}
}

// readSheet returns the non-empty rows of one worksheet.
func readSheet(f *zip.File, shared []string) ([]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	var rows, cells []string
	var value strings.Builder
	cellType := ""
	inValue := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", f.Name, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "row":
				cells = cells[:0]
			case "c":
				value.Reset()
				cellType = ""
				for _, a := range t.Attr {
					if a.Name.Local == "t" {
						cellType = a.Value
					}
				}
			case "v", "t":
				inValue = true
			}
		case xml.CharData:
			if inValue {
				value.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "v", "t":
				inValue = false
			case "c":
				cell := strings.TrimSpace(value.String())
				if cellType == "s" {
					idx, err := strconv.Atoi(cell)
					if err != nil || idx < 0 || idx >= len(shared) {
						return nil, fmt.Errorf("%s: bad shared string index %q", f.Name, cell)
					}
					cell = strings.TrimSpace(shared[idx])
				}
				if cell != "" {
					cells = append(cells, cell)
				}
			case "row":
				if len(cells) > 0 {
					rows = append(rows, strings.Join(cells, "\t"))
				}
			}
		}
	}
}
