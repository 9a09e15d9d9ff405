// Package google exports report series to a Google Spreadsheet using a
// service account. Each export replaces the target sheet's contents so
// the spreadsheet always mirrors the latest ledger state.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"khata/internal/core"
	ports "khata/internal/export"
	"khata/internal/report"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	salesSheet    string
	duesSheet     string
}

// Ensure interface conformance
var (
	_ ports.SalesWriter = (*Client)(nil)
	_ ports.DuesWriter  = (*Client)(nil)
)

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID.
// Credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE,
// or GOOGLE_APPLICATION_CREDENTIALS.
// Optional sheet names: SALES_SHEET_NAME (default "Monthly Sales"),
// DUES_SHEET_NAME (default "Seller Dues").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	salesSheet := strings.TrimSpace(os.Getenv("SALES_SHEET_NAME"))
	if salesSheet == "" {
		salesSheet = "Monthly Sales"
	}
	duesSheet := strings.TrimSpace(os.Getenv("DUES_SHEET_NAME"))
	if duesSheet == "" {
		duesSheet = "Seller Dues"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		salesSheet:    salesSheet,
		duesSheet:     duesSheet,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account
// credentials from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) WriteMonthlySales(ctx context.Context, rows []report.MonthTotal) error {
	values := [][]any{{"Month", "Total"}}
	for _, r := range rows {
		values = append(values, []any{r.Label, core.FormatAmount(r.Total)})
	}
	return c.replaceSheet(ctx, c.salesSheet, values)
}

func (c *Client) WriteSellerDues(ctx context.Context, rows []report.NameAmount) error {
	values := [][]any{{"Seller", "Dues"}}
	for _, r := range rows {
		values = append(values, []any{r.Name, core.FormatAmount(r.Amount)})
	}
	return c.replaceSheet(ctx, c.duesSheet, values)
}

func (c *Client) replaceSheet(ctx context.Context, sheetName string, values [][]any) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:Z", sheetName)
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear sheet %s: %w", sheetName, err)
	}

	dataRange := fmt.Sprintf("%s!A1", sheetName)
	vr := &gsheet.ValueRange{Values: values}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update sheet %s: %w", sheetName, err)
	}
	return nil
}
