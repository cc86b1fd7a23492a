package sheets

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Writer delivers exports as new tabs of a Google spreadsheet
type Writer struct {
	service       *sheets.Service
	spreadsheetID string
	logger        *slog.Logger
}

// NewWriter creates a new Google Sheets writer.
// spreadsheet may be a bare id or a full spreadsheet URL. Credentials are read
// from credentialsPath, or from GOOGLE_SHEETS_CREDENTIALS when the path is empty.
func NewWriter(ctx context.Context, spreadsheet, credentialsPath string, logger *slog.Logger) (*Writer, error) {
	credsJSON, err := loadCredentials(credentialsPath, logger)
	if err != nil {
		return nil, err
	}

	service, err := sheets.NewService(ctx, option.WithCredentialsJSON(credsJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return NewWriterWithService(service, spreadsheet, logger)
}

// NewWriterWithService wraps an already configured sheets service
func NewWriterWithService(service *sheets.Service, spreadsheet string, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	spreadsheetID := spreadsheet
	if strings.Contains(spreadsheet, "/") {
		spreadsheetID = ExtractSpreadsheetID(spreadsheet)
	}
	if spreadsheetID == "" {
		return nil, fmt.Errorf("could not extract spreadsheet ID from %q", spreadsheet)
	}

	return &Writer{
		service:       service,
		spreadsheetID: spreadsheetID,
		logger:        logger,
	}, nil
}

func loadCredentials(credentialsPath string, logger *slog.Logger) ([]byte, error) {
	var credsJSON []byte

	if credentialsPath != "" {
		data, err := os.ReadFile(credentialsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		credsJSON = data
	} else {
		credsEnv := strings.TrimSpace(os.Getenv("GOOGLE_SHEETS_CREDENTIALS"))
		if credsEnv == "" {
			return nil, fmt.Errorf("credentials not found: GOOGLE_SHEETS_CREDENTIALS environment variable is empty or not set")
		}
		if logger != nil {
			logger.Info("reading sheets credentials from environment", "bytes", len(credsEnv))
		}
		credsJSON = []byte(credsEnv)
	}

	var creds map[string]interface{}
	if err := json.Unmarshal(credsJSON, &creds); err != nil {
		return nil, fmt.Errorf("invalid credentials JSON (check if JSON is properly formatted): %w", err)
	}
	if creds["type"] != "service_account" {
		return nil, fmt.Errorf("credentials must be a service account JSON file (type: service_account), got type: %v", creds["type"])
	}

	return credsJSON, nil
}

// Download adds a sheet named after filename at the front of the spreadsheet
// and writes the CSV into it. It returns a URL opening that sheet.
func (w *Writer) Download(ctx context.Context, filename, content string) (string, error) {
	values, err := csvToValues(content)
	if err != nil {
		return "", err
	}

	sheetName := sanitizeSheetName(strings.TrimSuffix(filename, ".csv"))
	if len(sheetName) > 100 {
		sheetName = sheetName[:100]
	}

	batchUpdateRequest := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{
						Title: sheetName,
						Index: 0,
					},
				},
			},
		},
	}

	resp, err := w.service.Spreadsheets.BatchUpdate(w.spreadsheetID, batchUpdateRequest).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create sheet: %w", err)
	}

	var sheetID int64
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		sheetID = resp.Replies[0].AddSheet.Properties.SheetId
	}

	_, err = w.service.Spreadsheets.Values.Update(w.spreadsheetID, fmt.Sprintf("'%s'!A1", sheetName), &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to write to sheet: %w", err)
	}

	w.logger.Info("export written to sheet", "sheet", sheetName, "sheet_id", sheetID, "rows", len(values)-1)
	return SheetURL(w.spreadsheetID, sheetID), nil
}

// csvToValues parses the export back into cells for the values API
func csvToValues(content string) ([][]interface{}, error) {
	r := csv.NewReader(strings.NewReader(content))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse export: %w", err)
	}

	values := make([][]interface{}, 0, len(records))
	for _, record := range records {
		row := make([]interface{}, len(record))
		for i, v := range record {
			row[i] = v
		}
		values = append(values, row)
	}
	return values, nil
}

// sanitizeSheetName removes invalid characters from sheet name
func sanitizeSheetName(name string) string {
	// Google Sheets sheet names cannot contain: / \ ? * [ ] or quotes around ranges
	result := strings.NewReplacer("/", "_", "\\", "_", "?", "_", "*", "_", "[", "_", "]", "_", "'", "_").Replace(name)
	result = strings.TrimSpace(result)
	if result == "" {
		result = "Sheet1"
	}
	return result
}

// SheetURL builds a URL that opens one sheet of the spreadsheet
func SheetURL(spreadsheetID string, sheetID int64) string {
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit#gid=%d", spreadsheetID, sheetID)
}

// ExtractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func ExtractSpreadsheetID(url string) string {
	// https://docs.google.com/spreadsheets/d/SPREADSHEET_ID/edit?usp=sharing
	parts := strings.Split(url, "/d/")
	if len(parts) < 2 {
		return ""
	}

	idPart := parts[1]
	if idx := strings.IndexAny(idPart, "/?#"); idx != -1 {
		idPart = idPart[:idx]
	}
	return strings.TrimSpace(idPart)
}
