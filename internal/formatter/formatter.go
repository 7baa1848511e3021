// package formatter provides functions to export pack data to various formats (CSV, Markdown, plain text, JSON, Excel)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/adpacks/internal/models"
	"github.com/desertthunder/adpacks/internal/shared"
)

// Format is an export format accepted by [Write].
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatXLSX     Format = "xlsx"
)

// ParseFormat validates a format name. "md", "txt" and "excel" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, s)
	}
}

var csvHeaders = []string{"Date", "Ad ID", "Ad Name", "Campaign ID", "Campaign Name", "Adset ID", "Adset Name", "Spend", "Impressions", "Clicks"}

// ExportToCSV converts a PackExport's records to CSV, one row per record.
func ExportToCSV(export *models.PackExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range export.Records {
		if err := writer.Write(recordRow(r)); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

func recordRow(r models.RawAdRecord) []string {
	return []string{
		r.Date,
		r.AdID,
		r.AdName,
		r.CampaignID,
		r.CampaignName,
		r.AdsetID,
		r.AdsetName,
		strconv.FormatFloat(r.Spend, 'f', 2, 64),
		strconv.FormatInt(r.Impressions, 10),
		strconv.FormatInt(r.Clicks, 10),
	}
}

// StatValue renders one optional stat, "n/a" when missing.
func StatValue[T int | float64](v *T) string {
	if v == nil {
		return "n/a"
	}
	switch x := any(*v).(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', 2, 64)
	default:
		return fmt.Sprint(x)
	}
}

// statsLines describes stats as label/value pairs in display order.
func statsLines(stats *models.PackStats) [][2]string {
	if stats == nil {
		return nil
	}
	return [][2]string{
		{"Total ads", StatValue(stats.TotalAds)},
		{"Unique ads", StatValue(stats.UniqueAds)},
		{"Unique campaigns", StatValue(stats.UniqueCampaigns)},
		{"Unique adsets", StatValue(stats.UniqueAdsets)},
		{"Total spend", StatValue(stats.TotalSpend)},
	}
}

// ExportToMarkdown converts a PackExport to Markdown with a summary, filters, and a records table.
func ExportToMarkdown(export *models.PackExport) ([]byte, error) {
	var buf bytes.Buffer
	p := export.Pack

	fmt.Fprintf(&buf, "# %s\n\n", p.Name)
	fmt.Fprintf(&buf, "**Ad account**: %s\n", p.AdAccountID)
	fmt.Fprintf(&buf, "**Range**: %s to %s\n", p.DateStart, p.DateStop)
	fmt.Fprintf(&buf, "**Level**: %s\n", p.Level)
	fmt.Fprintf(&buf, "**Auto refresh**: %t\n", p.AutoRefresh)
	if p.SheetIntegration != nil {
		fmt.Fprintf(&buf, "**Spreadsheet**: %s\n", p.SheetIntegration.SpreadsheetID)
	}
	buf.WriteString("\n")

	buf.WriteString("## Stats\n\n")
	if lines := statsLines(p.Stats); lines != nil {
		for _, l := range lines {
			fmt.Fprintf(&buf, "- %s: %s\n", l[0], l[1])
		}
	} else {
		buf.WriteString("_No stats available._\n")
	}
	buf.WriteString("\n")

	if len(p.Filters) > 0 {
		buf.WriteString("## Filters\n\n")
		for _, f := range p.Filters {
			fmt.Fprintf(&buf, "- `%s %s %v`\n", f.Field, f.Operator, f.Value)
		}
		buf.WriteString("\n")
	}

	fmt.Fprintf(&buf, "## Records (%d)\n\n", len(export.Records))
	if len(export.Records) == 0 {
		buf.WriteString("_No cached records._\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("| Date | Ad | Campaign | Adset | Spend | Impressions | Clicks |\n")
	buf.WriteString("|------|----|----------|-------|------:|------------:|-------:|\n")
	for _, r := range export.Records {
		fmt.Fprintf(&buf, "| %s | %s | %s | %s | %.2f | %d | %d |\n",
			r.Date, mdCell(nameOr(r.AdName, r.AdID)), mdCell(nameOr(r.CampaignName, r.CampaignID)),
			mdCell(nameOr(r.AdsetName, r.AdsetID)), r.Spend, r.Impressions, r.Clicks)
	}

	return buf.Bytes(), nil
}

func nameOr(name, id string) string {
	if name != "" {
		return name
	}
	return id
}

func mdCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// ExportToText converts a PackExport to plain text format
func ExportToText(export *models.PackExport) ([]byte, error) {
	var buf bytes.Buffer
	p := export.Pack

	fmt.Fprintf(&buf, "Pack: %s\n", p.Name)
	fmt.Fprintf(&buf, "Range: %s to %s (%s)\n", p.DateStart, p.DateStop, p.Level)
	for _, l := range statsLines(p.Stats) {
		fmt.Fprintf(&buf, "%s: %s\n", l[0], l[1])
	}
	fmt.Fprintf(&buf, "Records: %d\n\n", len(export.Records))

	for i, r := range export.Records {
		fmt.Fprintf(&buf, "%d. %s %s - %s (%.2f)\n", i+1, r.Date, nameOr(r.CampaignName, r.CampaignID), nameOr(r.AdName, r.AdID), r.Spend)
	}

	return buf.Bytes(), nil
}

// ToMetadataJSON generates a JSON representation of pack metadata (without records)
func ToMetadataJSON(pack models.Pack) ([]byte, error) {
	return shared.MarshalJSON(pack, true)
}

// ExportToJSON generates a JSON representation of the pack and its records.
func ExportToJSON(export *models.PackExport) ([]byte, error) {
	return shared.MarshalJSON(export, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	RecordsFile  string
	MetadataFile string
}

// WriteCSVExport exports a pack to CSV format with accompanying metadata JSON file.
//
// Defaults to pack ID as the base filename & creates {base}_records.csv and {base}_metadata.json
func WriteCSVExport(export *models.PackExport, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = export.Pack.ID
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	recordsFile := baseFilepath + "_records.csv"
	if err := os.WriteFile(recordsFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(export.Pack)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		RecordsFile:  recordsFile,
		MetadataFile: metadataFile,
	}, nil
}

// WriteMarkdownExport exports a pack to {dir}/README.md. Directory name defaults to the pack ID.
func WriteMarkdownExport(export *models.PackExport, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = export.Pack.ID
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	mdData, err := ExportToMarkdown(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return "", fmt.Errorf("failed to write Markdown file: %w", err)
	}

	return mdFile, nil
}

// WriteTextExport exports a pack to plain text format.
//
// Defaults to {pack.ID}_records.txt as the filename.
func WriteTextExport(export *models.PackExport, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_records.txt", export.Pack.ID)
	}

	textData, err := ExportToText(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}

// WriteJSONExport exports a pack and its records as JSON. Defaults to {pack.ID}.json.
func WriteJSONExport(export *models.PackExport, path string) (string, error) {
	if path == "" {
		path = export.Pack.ID + ".json"
	}

	data, err := ExportToJSON(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write JSON file: %w", err)
	}

	return path, nil
}

// Write exports in format to path (a directory for Markdown) and returns the files created.
func Write(format Format, export *models.PackExport, path string) ([]string, error) {
	switch format {
	case FormatCSV:
		res, err := WriteCSVExport(export, path)
		if err != nil {
			return nil, err
		}
		return []string{res.RecordsFile, res.MetadataFile}, nil
	case FormatMarkdown:
		file, err := WriteMarkdownExport(export, path)
		if err != nil {
			return nil, err
		}
		return []string{file}, nil
	case FormatText:
		file, err := WriteTextExport(export, path)
		if err != nil {
			return nil, err
		}
		return []string{file}, nil
	case FormatJSON:
		file, err := WriteJSONExport(export, path)
		if err != nil {
			return nil, err
		}
		return []string{file}, nil
	case FormatXLSX:
		file, err := WriteXLSXExport(export, path)
		if err != nil {
			return nil, err
		}
		return []string{file}, nil
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
}
