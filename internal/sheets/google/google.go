package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/sheets"

	"google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// Mirror writes transactions into one sheet of a Google spreadsheet, one
// row per transaction keyed by the id in column A.
type Mirror struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger

	// mu serializes writes; row positions shift on delete.
	mu      sync.Mutex
	sheetID *int64
}

var _ sheets.TransactionMirror = (*Mirror)(nil)

// New creates a Mirror authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Mirror, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		option.WithCredentialsJSON(creds),
		option.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *log.Logger) *Mirror {
	if sheetName == "" {
		sheetName = "Transactions"
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Mirror{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		return []byte(cfg.ServiceAccountJSON), nil
	case strings.TrimSpace(cfg.ServiceAccountFile) != "":
		b, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

func (m *Mirror) Upsert(ctx context.Context, t core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	values, err := m.readRows(ctx)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		if err := m.update(ctx, 1, header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		values = [][]interface{}{header}
	}

	row := rowFromTransaction(t)
	if idx := findRow(values, t.ID); idx >= 0 {
		if existing, err := transactionFromRow(values[idx]); err == nil && existing == t {
			return nil
		}
		if err := m.update(ctx, idx+1, row); err != nil {
			return fmt.Errorf("update row: %w", err)
		}
		m.logger.InfoContext(ctx, "Transaction row updated", log.FieldTransactionID, t.ID, "row", idx+1)
		return nil
	}

	rng := fmt.Sprintf("%s!A:%s", m.sheetName, lastColumn)
	_, err = m.svc.Spreadsheets.Values.Append(m.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]interface{}{row}}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	m.logger.InfoContext(ctx, "Transaction row appended", log.FieldTransactionID, t.ID)
	return nil
}

func (m *Mirror) Remove(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	values, err := m.readRows(ctx)
	if err != nil {
		return err
	}
	idx := findRow(values, id)
	if idx < 0 {
		return nil
	}

	sheetID, err := m.lookupSheetID(ctx)
	if err != nil {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(idx),
					EndIndex:   int64(idx + 1),
				},
			},
		}},
	}
	if _, err := m.svc.Spreadsheets.BatchUpdate(m.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row: %w", err)
	}
	m.logger.InfoContext(ctx, "Transaction row removed", log.FieldTransactionID, id, "row", idx+1)
	return nil
}

func (m *Mirror) readRows(ctx context.Context) ([][]interface{}, error) {
	rng := fmt.Sprintf("%s!A:%s", m.sheetName, lastColumn)
	resp, err := m.svc.Spreadsheets.Values.Get(m.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return resp.Values, nil
}

// update overwrites the 1-based sheet row.
func (m *Mirror) update(ctx context.Context, row int, values []interface{}) error {
	rng := fmt.Sprintf("%s!A%d:%s%d", m.sheetName, row, lastColumn, row)
	_, err := m.svc.Spreadsheets.Values.Update(m.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]interface{}{values}}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	return err
}

// lookupSheetID resolves the numeric id of the sheet, which DeleteDimension
// needs instead of its title. Callers hold mu.
func (m *Mirror) lookupSheetID(ctx context.Context) (int64, error) {
	if m.sheetID != nil {
		return *m.sheetID, nil
	}
	ss, err := m.svc.Spreadsheets.Get(m.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == m.sheetName {
			id := s.Properties.SheetId
			m.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", m.sheetName)
}
