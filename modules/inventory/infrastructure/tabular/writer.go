package tabular

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/cityatlas/platform-management/modules/inventory/domain"
)

// WriteAudit appends a sheet with the processed rows plus the "result"
// message and entity id columns to the workbook at path, creating the
// workbook when it does not exist. Returns the sheet name written.
func WriteAudit(path string, table *domain.Table, outcomes []domain.Outcome, kind domain.EntityKind) (string, error) {
	var f *excelize.File
	if _, err := os.Stat(path); err == nil {
		f, err = excelize.OpenFile(path)
		if err != nil {
			return "", err
		}
	} else {
		f = excelize.NewFile()
	}
	defer func() { _ = f.Close() }()

	sheet := sheetName(kind)
	if _, err := f.NewSheet(sheet); err != nil {
		return "", err
	}

	header := make([]string, 0, len(table.Columns)+2)
	header = append(header, table.Columns...)
	header = append(header, "result", kind.IDColumn())
	for col, name := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return "", err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return "", err
		}
	}

	for i, row := range table.Rows {
		values := make([]any, 0, len(header))
		for _, column := range table.Columns {
			values = append(values, row.Value(column))
		}
		if i < len(outcomes) {
			values = append(values, outcomes[i].Message, outcomes[i].EntityID)
		} else {
			values = append(values, "", domain.NoEntityID)
		}
		for col, value := range values {
			if value == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return "", err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return "", err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return "", err
	}
	return sheet, nil
}

func sheetName(kind domain.EntityKind) string {
	name := fmt.Sprintf("%s %s", kind, time.Now().Format("2006-01-02 15_04_05"))
	// sheet names are limited to 31 characters
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}

// WriteAuditCSV writes the same audit table as a CSV file, for callers that
// asked for a plain-text log.
func WriteAuditCSV(path string, table *domain.Table, outcomes []domain.Outcome, kind domain.EntityKind) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	header := append(append([]string{}, table.Columns...), "result", kind.IDColumn())
	if err := w.Write(header); err != nil {
		return err
	}
	for i, row := range table.Rows {
		cells := make([]string, 0, len(header))
		for _, column := range table.Columns {
			cells = append(cells, row.String(column))
		}
		if i < len(outcomes) {
			cells = append(cells, outcomes[i].Message, strconv.FormatInt(outcomes[i].EntityID, 10))
		} else {
			cells = append(cells, "", strconv.FormatInt(domain.NoEntityID, 10))
		}
		if err := w.Write(cells); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
