package normalize

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// normalizeSpreadsheet reads every sheet of an .xlsx workbook in order.
// Rows with no non-empty cell are dropped.
func (n *Normalizer) normalizeSpreadsheet(data []byte) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", ErrUnsupportedFormat, err)
	}
	defer f.Close()

	var out [][]string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			n.logger.Warn("skipping unreadable sheet", "sheet", sheet, "error", err)
			continue
		}
		for _, row := range rows {
			trimmed, ok := trimRow(row)
			if !ok {
				continue
			}
			out = append(out, trimmed)
		}
	}

	if len(out) == 0 {
		return nil, ErrEmptyDocument
	}
	return &Result{Rows: out, Strategy: StrategySheets}, nil
}
