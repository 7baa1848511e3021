package formatter

import (
	"fmt"
	"os"

	"github.com/desertthunder/adpacks/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	xlsxRecordsSheet = "Records"
	xlsxPackSheet    = "Pack"
)

// ExportToXLSX builds a workbook with a Records sheet (numeric spend, impressions and clicks) and a Pack summary sheet.
func ExportToXLSX(export *models.PackExport) ([]byte, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	if err := xl.SetSheetName(xl.GetSheetName(0), xlsxRecordsSheet); err != nil {
		return nil, fmt.Errorf("failed to name records sheet: %w", err)
	}

	header := csvHeaders
	if err := xl.SetSheetRow(xlsxRecordsSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write XLSX headers: %w", err)
	}

	for i, r := range export.Records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{r.Date, r.AdID, r.AdName, r.CampaignID, r.CampaignName, r.AdsetID, r.AdsetName, r.Spend, r.Impressions, r.Clicks}
		if err := xl.SetSheetRow(xlsxRecordsSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write XLSX record: %w", err)
		}
	}

	if _, err := xl.NewSheet(xlsxPackSheet); err != nil {
		return nil, fmt.Errorf("failed to create pack sheet: %w", err)
	}

	p := export.Pack
	summary := [][2]string{
		{"ID", p.ID},
		{"Name", p.Name},
		{"Ad account", p.AdAccountID},
		{"Date start", p.DateStart},
		{"Date stop", p.DateStop},
		{"Level", p.Level},
	}
	summary = append(summary, statsLines(p.Stats)...)
	if si := p.SheetIntegration; si != nil {
		summary = append(summary, [2]string{"Spreadsheet", si.SpreadsheetID})
	}

	for i, line := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		row := []string{line[0], line[1]}
		if err := xl.SetSheetRow(xlsxPackSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write pack summary: %w", err)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write XLSX: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteXLSXExport exports a pack and its records as an Excel workbook. Defaults to {pack.ID}.xlsx.
func WriteXLSXExport(export *models.PackExport, path string) (string, error) {
	if path == "" {
		path = export.Pack.ID + ".xlsx"
	}

	data, err := ExportToXLSX(export)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write XLSX file: %w", err)
	}

	return path, nil
}
