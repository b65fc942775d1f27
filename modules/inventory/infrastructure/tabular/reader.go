package tabular

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/cityatlas/platform-management/modules/inventory/domain"
)

// Load reads an input document (csv, xlsx, json or geojson) into a Table.
func Load(path string) (*domain.Table, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "csv":
		return LoadCSV(path)
	case "xlsx":
		return LoadXLSX(path)
	case "json":
		return LoadJSON(path)
	case "geojson":
		return LoadGeoJSON(path)
	default:
		return nil, fmt.Errorf("file extension %q is not supported", filepath.Ext(path))
	}
}

func LoadCSV(path string) (*domain.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(stripUTF8BOM(bufio.NewReader(f)))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New("missing header")
		}
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	table := &domain.Table{Columns: header}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := domain.Row{}
		for i, cell := range record {
			if i >= len(header) {
				break
			}
			if v := strings.TrimSpace(cell); !emptyCell(v) {
				row[header[i]] = v
			}
		}
		appendRow(table, row)
	}
	return table, nil
}

func LoadXLSX(path string) (*domain.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("missing header")
	}

	header := make([]string, len(rows[0]))
	for i, cell := range rows[0] {
		header[i] = strings.TrimSpace(cell)
	}
	table := &domain.Table{Columns: header}
	for _, record := range rows[1:] {
		row := domain.Row{}
		for i, cell := range record {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if v := strings.TrimSpace(cell); !emptyCell(v) {
				row[header[i]] = v
			}
		}
		appendRow(table, row)
	}
	return table, nil
}

func LoadJSON(path string) (*domain.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrap(err, "given JSON has wrong format")
	}
	table := &domain.Table{}
	for _, record := range records {
		appendRow(table, objectRow(table, record))
	}
	return table, nil
}

// LoadGeoJSON flattens a feature collection: feature properties become
// columns and the geometry is serialized back to GeoJSON text under the
// "geometry" column.
func LoadGeoJSON(path string) (*domain.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var collection struct {
		Features []struct {
			Properties map[string]any  `json:"properties"`
			Geometry   json.RawMessage `json:"geometry"`
		} `json:"features"`
	}
	if err := json.Unmarshal(data, &collection); err != nil {
		return nil, errors.Wrap(err, "given GeoJSON has wrong format")
	}
	if collection.Features == nil {
		return nil, errors.New("given GeoJSON has wrong format: no features")
	}
	table := &domain.Table{Columns: []string{"geometry"}}
	for _, feature := range collection.Features {
		row := objectRow(table, feature.Properties)
		if len(feature.Geometry) > 0 && string(feature.Geometry) != "null" {
			row["geometry"] = string(feature.Geometry)
		}
		appendRow(table, row)
	}
	return table, nil
}

func objectRow(table *domain.Table, record map[string]any) domain.Row {
	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	row := domain.Row{}
	for _, key := range keys {
		value := record[key]
		if value == nil {
			continue
		}
		if s, ok := value.(string); ok {
			if emptyCell(strings.TrimSpace(s)) {
				continue
			}
			value = s
		}
		if !table.HasColumn(key) {
			table.Columns = append(table.Columns, key)
		}
		row[key] = value
	}
	return row
}

// emptyCell reports whether a trimmed cell carries no value. Spreadsheet
// exports spell missing values as "nan" or "None" depending on the tool
// that produced them.
func emptyCell(s string) bool {
	switch strings.ToLower(s) {
	case "", "nan", "none", "null":
		return true
	}
	return false
}

// appendRow drops rows that are blank in every column.
func appendRow(table *domain.Table, row domain.Row) {
	if len(row) == 0 {
		return
	}
	table.Rows = append(table.Rows, row)
}

func stripUTF8BOM(r *bufio.Reader) *bufio.Reader {
	b, err := r.Peek(3)
	if err == nil && len(b) == 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = r.Discard(3)
	}
	return r
}
