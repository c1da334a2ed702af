package httpapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/xuri/excelize/v2"
)

// DataPointExportHeader lists the exported columns. The payload column
// carries the transport form (longs as strings, binary as base64).
var DataPointExportHeader = []string{
	"ID",
	"Message ID",
	"Receiving Start",
	"Receiving Done",
	"Packets",
	"Packets Received",
	"Size",
	"Data",
}

// GenerateDataPointExport renders the datapoints of one data source and
// run as an xlsx workbook.
func GenerateDataPointExport(points []map[string]any) ([]byte, error) {
	f := excelize.NewFile()

	sheetName := "Datapoints"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range DataPointExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	keys := []string{"id", "message_id", "receiving_start", "receiving_done",
		"packets", "packets_received", "size", "data"}
	for rowIdx, item := range points {
		row := rowIdx + 2
		for colIdx, key := range keys {
			value, ok := item[key]
			if !ok || value == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(colIdx+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (a *API) ExportDataPoints(w http.ResponseWriter, r *http.Request, dataSourceID, runID int64) {
	points, err := a.ingest.GetDataPointsByDataSourceAndRun(r.Context(), dataSourceID, runID)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	rows := make([]map[string]any, 0, len(points))
	for _, p := range points {
		rows = append(rows, p.ToJSON())
	}
	content, err := GenerateDataPointExport(rows)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="datapoints-%d-%d.xlsx"`, dataSourceID, runID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}
