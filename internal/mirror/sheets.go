// Package mirror appends transactions to a Google Sheets spreadsheet so
// there is a human-readable copy outside the database.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/core"
)

// Writer is the mirror surface the worker depends on.
type Writer interface {
	AppendTransaction(ctx context.Context, ownerID int64, t core.Transaction) (rowRef string, err error)
}

// SheetsMirror writes one row per transaction:
// owner, date, description, amount, type, category.
type SheetsMirror struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ Writer = (*SheetsMirror)(nil)

// NewSheetsMirror builds a mirror from OAuth client credentials and a
// previously saved token (see cmd/oauth-init).
func NewSheetsMirror(ctx context.Context, clientJSON, tokenJSON []byte, spreadsheetID, sheetName string) (*SheetsMirror, error) {
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if sheetName == "" {
		sheetName = "Transactions"
	}

	cfg, err := google.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}

	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(cfg.Client(ctx, &token)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &SheetsMirror{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// AppendTransaction implements Writer.
func (m *SheetsMirror) AppendTransaction(ctx context.Context, ownerID int64, t core.Transaction) (string, error) {
	if m.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:F", m.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{{
		ownerID,
		t.Date.Key(),
		t.Description,
		t.Amount.Dollars(),
		string(t.Type),
		t.Category,
	}}}

	resp, err := m.svc.Spreadsheets.Values.Append(m.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", m.sheetName, err)
	}
	if resp.Updates != nil {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}
