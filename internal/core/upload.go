package core

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// File errors.
var (
	ErrEmptyFile       = errors.New("empty file")
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrInvalidFile wraps parse failures caused by the uploaded bytes.
	ErrInvalidFile = errors.New("invalid import file")
)

// Supported import formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatXLS  = "xls"
)

// TemplateSheet is the sheet name used in generated workbooks.
const TemplateSheet = "Productos"

// ImportFormat derives the format from a file name.
func ImportFormat(fileName string) (string, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	default:
		return "", fmt.Errorf("%w: %q (use .xlsx, .xls or .csv)", ErrUnsupportedFile, filepath.Ext(fileName))
	}
}

// ParseImportFile reads the first sheet of an XLSX or XLS workbook, or a
// CSV file, into rows keyed by the lowercased header. Workbook cells are
// read as stored values, not as displayed text.
func ParseImportFile(fileName string, data []byte) ([]Row, error) {
	format, err := ImportFormat(fileName)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	var records [][]string
	switch format {
	case FormatXLSX:
		records, err = readXLSX(data)
	case FormatXLS:
		records, err = readXLS(data)
	default:
		records, err = readCSV(data)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}
	return RowsFromRecords(records[0], records[1:]), nil
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid xlsx: %w", ErrInvalidFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: invalid xlsx: read sheet %q: %w", ErrInvalidFile, sheets[0], err)
	}
	return rows, nil
}

// readXLS reads the first sheet of a BIFF (Excel 97-2003) workbook. The
// decoder panics on some malformed files, so panics become ErrInvalidFile.
func readXLS(data []byte) (records [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			records, err = nil, fmt.Errorf("%w: invalid xls: %v", ErrInvalidFile, r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: invalid xls: %w", ErrInvalidFile, err)
	}
	if wb == nil {
		return nil, fmt.Errorf("%w: invalid xls: no workbook stream", ErrInvalidFile)
	}
	if wb.NumSheets() == 0 {
		return nil, ErrEmptyFile
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, ErrEmptyFile
	}

	// Rows without a ROW record report LastCol 0, so every row is read at
	// least as wide as the widest row so far (normally the header).
	width := 0
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			records = append(records, nil)
			continue
		}
		last := max(row.LastCol(), width)
		rec := make([]string, 0, last+1)
		for j := 0; j <= last; j++ {
			rec = append(rec, row.Col(j))
		}
		rec = trimTrailingEmpty(rec)
		width = max(width, len(rec))
		records = append(records, rec)
	}
	for len(records) > 0 && len(records[0]) == 0 {
		records = records[1:]
	}
	return records, nil
}

func trimTrailingEmpty(rec []string) []string {
	n := len(rec)
	for n > 0 && strings.TrimSpace(rec[n-1]) == "" {
		n--
	}
	return rec[:n]
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(sanitizeUTF8(data), []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.Comma = detectDelimiter(data)

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid csv: %w", ErrInvalidFile, err)
	}
	return records, nil
}

// detectDelimiter picks ';' when the header line uses it more than ','.
// Spreadsheet tools in comma-decimal locales export that way.
func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

// ParseJSONRows decodes {"rows": [...]} keeping numbers as json.Number.
func ParseJSONRows(r io.Reader) ([]Row, error) {
	var body struct {
		Rows []Row `json:"rows"`
	}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid json rows: %w", err)
	}
	return body.Rows, nil
}

// templateRows returns the three example products, using the first two
// known categories when there are any.
func templateRows(categories []string) [][]any {
	first, second := "Plásticos", "Botellas"
	if len(categories) > 0 {
		first = categories[0]
	}
	if len(categories) > 1 {
		second = categories[1]
	}
	return [][]any{
		{"Bandeja Plástica Grande", first, "Bandeja plástica reciclada de gran tamaño", "BAND-001", 50, "P1-E1-N1", 0.5, "kg", 40, 30, 10, "cm", "grande"},
		{"Contenedor Mediano", first, "Contenedor plástico para almacenamiento", "CONT-002", 30, "P1-E2-N1", 0.8, "kg", 35, 25, 15, "cm", "mediano"},
		{"Botella Reciclada 1L", second, "Botella plástica reciclada de 1 litro", "BOT-003", 100, "P2-E1-N2", 0.2, "kg", 25, 8, 8, "cm", "pequeño"},
	}
}

// TemplateFileName is the download name for a template format.
func TemplateFileName(format string) string {
	return "plantilla_productos." + format
}

// BuildTemplate renders the import template as XLSX or CSV.
func BuildTemplate(format string, categories []string) ([]byte, error) {
	switch format {
	case FormatXLSX:
		return buildXLSXTemplate(categories)
	case FormatCSV:
		return buildCSVTemplate(categories)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFile, format)
	}
}

func buildCSVTemplate(categories []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(ImportColumns); err != nil {
		return nil, err
	}
	for _, row := range templateRows(categories) {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = fmt.Sprint(v)
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func buildXLSXTemplate(categories []string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TemplateSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	for i, col := range ImportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(TemplateSheet, cell, col); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(TemplateSheet, cell, cell, headerStyle); err != nil {
			return nil, err
		}
	}
	for r, row := range templateRows(categories) {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(TemplateSheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(ImportColumns))
	if err := f.SetColWidth(TemplateSheet, "A", lastCol, 18); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
