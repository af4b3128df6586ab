package core

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Row is one loosely typed spreadsheet record keyed by header name.
// Values are strings from CSV/XLSX or numbers and nested objects from JSON.
type Row map[string]any

// Import column names.
const (
	FieldName        = "producto"
	FieldCategory    = "categoria"
	FieldDescription = "descripcion"
	FieldSKU         = "sku"
	FieldStock       = "stock"
	FieldLocation    = "ubicacion"
	FieldWeight      = "peso"
	FieldWeightUnit  = "unidad_peso"
	FieldSize        = "tamaño"
	FieldDimensions  = "dimensiones"
)

// Dimension sub-fields, addressable as "dimensiones.<name>" or nested.
const (
	DimLength = "largo"
	DimWidth  = "ancho"
	DimHeight = "alto"
	DimUnit   = "unidad"
)

// RequiredImportFields must all appear in the header.
var RequiredImportFields = []string{
	FieldName, FieldCategory, FieldDescription, FieldSKU, FieldStock,
	FieldLocation, FieldWeight, FieldWeightUnit, FieldSize,
}

// DimensionFields are required either dotted or nested.
var DimensionFields = []string{DimLength, DimWidth, DimHeight, DimUnit}

// ImportColumns is the canonical header used by templates.
var ImportColumns = []string{
	FieldName, FieldCategory, FieldDescription, FieldSKU, FieldStock, FieldLocation,
	FieldWeight, FieldWeightUnit,
	FieldDimensions + "." + DimLength, FieldDimensions + "." + DimWidth,
	FieldDimensions + "." + DimHeight, FieldDimensions + "." + DimUnit,
	FieldSize,
}

// ImportValidation is the outcome of validating a whole file.
type ImportValidation struct {
	Valid    bool      `json:"valid"`
	Errors   []string  `json:"errors"`
	Warnings []string  `json:"warnings"`
	Products []Product `json:"products"`
	Total    int       `json:"total"`
}

// ValidateImport checks parsed rows against the known categories and
// returns the products that can be imported. File-level problems (too few
// rows, missing columns, SKUs repeated within the file) reject the whole
// file; row-level problems only drop the offending row.
func ValidateImport(rows []Row, categories []string, now time.Time) ImportValidation {
	res := ImportValidation{Errors: []string{}, Warnings: []string{}, Products: []Product{}, Total: len(rows)}

	switch len(rows) {
	case 0:
		res.Errors = append(res.Errors, "The file is empty")
		return res
	case 1:
		res.Errors = append(res.Errors, "The file must contain more than 1 product")
		return res
	}

	if missing := missingImportFields(rows[0]); len(missing) > 0 {
		res.Errors = append(res.Errors, "Missing required fields: "+strings.Join(missing, ", "))
		return res
	}

	if dups := duplicateSKUs(rows); len(dups) > 0 {
		res.Errors = append(res.Errors, "Duplicate SKUs in file: "+strings.Join(dups, ", "))
		return res
	}

	known := make(map[string]bool, len(categories))
	for _, c := range categories {
		known[c] = true
	}
	available := append([]string(nil), categories...)
	sort.Strings(available)

	registered := now.Format(RegisteredAtLayout)
	invalid := 0
	for i, row := range rows {
		line := i + 2
		reasons := validateImportRow(row, known, available)
		if len(reasons) > 0 {
			invalid++
			name := cellText(row[FieldName])
			if name == "" {
				name = fmt.Sprintf("Product in row %d", line)
			}
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d (%s): %s", line, name, strings.Join(reasons, ", ")))
			continue
		}
		p := productFromRow(row)
		p.RegisteredAt = registered
		res.Products = append(res.Products, p)
	}

	switch {
	case len(res.Products) == 0:
		res.Errors = append(res.Errors, "No valid products found in the file")
	case invalid > 0:
		res.Valid = true
		res.Warnings = append(res.Warnings, fmt.Sprintf("Found %d invalid products that will be skipped", invalid))
	default:
		res.Valid = true
	}
	return res
}

func missingImportFields(header Row) []string {
	var missing []string
	for _, f := range RequiredImportFields {
		if _, ok := header[f]; !ok {
			missing = append(missing, f)
		}
	}
	nested, _ := header[FieldDimensions].(map[string]any)
	for _, d := range DimensionFields {
		if _, ok := header[FieldDimensions+"."+d]; ok {
			continue
		}
		if _, ok := nested[d]; ok {
			continue
		}
		missing = append(missing, FieldDimensions+"."+d)
	}
	return missing
}

// duplicateSKUs lists each SKU appearing more than once, in first-seen order.
func duplicateSKUs(rows []Row) []string {
	seen := make(map[string]int, len(rows))
	var dups []string
	for _, row := range rows {
		sku := cellText(row[FieldSKU])
		if sku == "" {
			continue
		}
		seen[sku]++
		if seen[sku] == 2 {
			dups = append(dups, sku)
		}
	}
	return dups
}

func validateImportRow(row Row, known map[string]bool, available []string) []string {
	var reasons []string

	for _, f := range []string{FieldName, FieldCategory, FieldDescription, FieldSKU, FieldLocation, FieldWeightUnit, FieldSize} {
		if cellText(row[f]) == "" {
			reasons = append(reasons, f+" is required")
		}
	}
	for _, f := range []string{FieldStock, FieldWeight} {
		if cellText(row[f]) == "" {
			reasons = append(reasons, f+" is required")
		}
	}

	if cat := cellText(row[FieldCategory]); cat != "" && !known[cat] {
		reasons = append(reasons, fmt.Sprintf("category %q does not exist (available: %s)", cat, strings.Join(available, ", ")))
	}

	complete := true
	for _, d := range DimensionFields {
		if cellText(dimensionValue(row, d)) == "" {
			complete = false
		}
	}
	if !complete {
		reasons = append(reasons, "incomplete dimensions (largo, ancho, alto and unidad are required)")
	} else if u := strings.ToLower(cellText(dimensionValue(row, DimUnit))); !ValidLengthUnit(u) {
		reasons = append(reasons, fmt.Sprintf("unknown dimension unit %q (use cm, m or in)", u))
	}

	if u := strings.ToLower(cellText(row[FieldWeightUnit])); u != "" && !ValidWeightUnit(u) {
		reasons = append(reasons, fmt.Sprintf("unknown weight unit %q (use kg, g or lb)", u))
	}
	if s := cellText(row[FieldSize]); s != "" {
		if _, ok := NormalizeSize(s); !ok {
			reasons = append(reasons, fmt.Sprintf("unknown size %q (use small, medium or large)", s))
		}
	}
	if stock := cellNumber(row[FieldStock]); stock < 0 || stock != math.Trunc(stock) {
		reasons = append(reasons, "stock must be a non-negative integer")
	}

	return reasons
}

func dimensionValue(row Row, name string) any {
	if v, ok := row[FieldDimensions+"."+name]; ok {
		return v
	}
	if nested, ok := row[FieldDimensions].(map[string]any); ok {
		return nested[name]
	}
	return nil
}

func productFromRow(row Row) Product {
	size, _ := NormalizeSize(cellText(row[FieldSize]))
	return Product{
		Name:        cellText(row[FieldName]),
		Category:    cellText(row[FieldCategory]),
		Description: cellText(row[FieldDescription]),
		SKU:         cellText(row[FieldSKU]),
		Stock:       int(cellNumber(row[FieldStock])),
		Location:    strings.ToUpper(cellText(row[FieldLocation])),
		Weight:      cellNumber(row[FieldWeight]),
		WeightUnit:  strings.ToLower(cellText(row[FieldWeightUnit])),
		Size:        size,
		Dimensions: Dimensions{
			Length: cellNumber(dimensionValue(row, DimLength)),
			Width:  cellNumber(dimensionValue(row, DimWidth)),
			Height: cellNumber(dimensionValue(row, DimHeight)),
			Unit:   strings.ToLower(cellText(dimensionValue(row, DimUnit))),
		},
	}
}

// cellText renders a cell as trimmed text; numeric zero is "0", not empty.
func cellText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return CleanCell(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return CleanCell(fmt.Sprint(t))
	}
}

// cellNumber parses a cell leniently, returning 0 when it is not a number.
// A lone decimal comma is accepted ("0,5").
func cellNumber(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	}
	s := cellText(v)
	if s == "" {
		return 0
	}
	if !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		s = strings.Replace(s, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// FieldError describes one invalid field of a product form.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is returned by ValidateProduct; it wraps ErrInvalidProduct.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, fe := range v {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "invalid product: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Unwrap() error { return ErrInvalidProduct }

// NormalizeProduct trims text fields and canonicalizes units, size and location.
func NormalizeProduct(p Product) Product {
	p.Name = strings.TrimSpace(p.Name)
	p.Category = strings.TrimSpace(p.Category)
	p.Description = strings.TrimSpace(p.Description)
	p.SKU = strings.TrimSpace(p.SKU)
	p.Location = strings.ToUpper(strings.TrimSpace(p.Location))
	p.WeightUnit = strings.ToLower(strings.TrimSpace(p.WeightUnit))
	p.Dimensions.Unit = strings.ToLower(strings.TrimSpace(p.Dimensions.Unit))
	if s, ok := NormalizeSize(p.Size); ok {
		p.Size = s
	}
	return p
}

// ValidateProduct checks a product submitted through the catalog forms.
func ValidateProduct(p Product) error {
	var errs ValidationErrors
	add := func(field, msg string) { errs = append(errs, FieldError{Field: field, Message: msg}) }

	if p.Name == "" {
		add(FieldName, "is required")
	}
	if p.Category == "" {
		add(FieldCategory, "is required")
	}
	if p.SKU == "" {
		add(FieldSKU, "is required")
	}
	if p.Location == "" {
		add(FieldLocation, "is required")
	}
	if p.Stock < 0 {
		add(FieldStock, "must be zero or greater")
	}
	if p.Weight < 0 {
		add(FieldWeight, "must be zero or greater")
	}
	if p.WeightUnit != "" && !ValidWeightUnit(p.WeightUnit) {
		add(FieldWeightUnit, "must be kg, g or lb")
	}
	if p.Dimensions.Length < 0 || p.Dimensions.Width < 0 || p.Dimensions.Height < 0 {
		add(FieldDimensions, "must be zero or greater")
	}
	if p.Dimensions.Unit != "" && !ValidLengthUnit(p.Dimensions.Unit) {
		add(FieldDimensions+"."+DimUnit, "must be cm, m or in")
	}
	if p.Size != "" {
		if _, ok := NormalizeSize(p.Size); !ok {
			add(FieldSize, "must be small, medium or large")
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
