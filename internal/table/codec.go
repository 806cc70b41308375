package table

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const defaultSheetName = "Sheet1"

type xlsxCodec struct{}

// decode reads the first worksheet of a workbook.
func (xlsxCodec) decode(data []byte) (*Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("table: open workbook: %w", err)
	}
	defer f.Close()

	names := f.GetSheetList()
	if len(names) == 0 {
		return &Sheet{Name: defaultSheetName}, nil
	}
	rows, err := f.GetRows(names[0])
	if err != nil {
		return nil, fmt.Errorf("table: read worksheet %s: %w", names[0], err)
	}
	return splitHeader(names[0], rows), nil
}

func (xlsxCodec) encode(sheet *Sheet) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	name := sheet.Name
	if name == "" {
		name = defaultSheetName
	}
	if name != defaultSheetName {
		if err := f.SetSheetName(defaultSheetName, name); err != nil {
			return nil, fmt.Errorf("table: name worksheet: %w", err)
		}
	}
	for i, row := range joinHeader(sheet) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, fmt.Errorf("table: cell name: %w", err)
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(name, cell, &values); err != nil {
			return nil, fmt.Errorf("table: write row %d: %w", i+1, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("table: encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (xlsxCodec) contentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

type csvCodec struct{}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func (csvCodec) decode(data []byte) (*Sheet, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("table: parse csv: %w", err)
	}
	return splitHeader("", rows), nil
}

func (csvCodec) encode(sheet *Sheet) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(joinHeader(sheet)); err != nil {
		return nil, fmt.Errorf("table: write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func (csvCodec) contentType() string {
	return "text/csv"
}
