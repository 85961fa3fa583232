package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expensebook/internal/core"
	"expensebook/internal/ports"
)

// Client stores records as rows of a single sheet:
// Owner | ID | Date | Description | Amount | CreatedAt.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	mu      sync.Mutex
	sheetID *int64
	now     func() time.Time
}

// Ensure interface conformance
var _ ports.RecordStore = (*Client)(nil)

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

const defaultSheetName = "Records"

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS. Optional: GOOGLE_SHEET_NAME (default "Records").
func NewFromEnv(ctx context.Context) (*Client, error) {
	return New(ctx, Config{
		SpreadsheetID:      os.Getenv("GOOGLE_SPREADSHEET_ID"),
		SheetName:          os.Getenv("GOOGLE_SHEET_NAME"),
		ServiceAccountJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		ServiceAccountFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	})
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID, cfg.SheetName), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		sheetName = defaultSheetName
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		now:           time.Now,
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)

	// Also check the standard Google Cloud environment variable
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

func (c *Client) dataRange() string {
	return fmt.Sprintf("%s!A:F", c.sheetName)
}

// readRows returns every parsed row with its zero-based sheet index.
func (c *Client) readRows(ctx context.Context) ([]sheetRow, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.dataRange()).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.dataRange(), err)
	}
	rows, skipped := parseRows(resp.Values)
	if skipped > 0 {
		slog.WarnContext(ctx, "Skipped malformed sheet rows", "sheet", c.sheetName, "count", skipped)
	}
	return rows, nil
}

// ListRecords implements ports.RecordLister
func (c *Client) ListRecords(ctx context.Context, owner string) ([]core.Record, error) {
	rows, err := c.readRows(ctx)
	if err != nil {
		return nil, core.Upstream("list records", err)
	}
	out := make([]core.Record, 0)
	for _, r := range rows {
		if r.Owner == owner {
			out = append(out, r.Record)
		}
	}
	return out, nil
}

// InsertRecord implements ports.RecordWriter
func (c *Client) InsertRecord(ctx context.Context, owner string, rec core.NewRecord) (core.Record, error) {
	if err := rec.Validate(); err != nil {
		return core.Record{}, err
	}
	out := rec.Materialize(uuid.NewString(), c.now().UTC())
	if err := c.AppendRecord(ctx, owner, out); err != nil {
		return core.Record{}, core.Upstream("insert record", err)
	}
	return out, nil
}

// AppendRecord writes an already materialized record as a new row.
func (c *Client) AppendRecord(ctx context.Context, owner string, rec core.Record) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	vr := &gsheet.ValueRange{Values: [][]interface{}{formatRow(owner, rec)}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.dataRange(), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", c.sheetName, err)
	}
	return nil
}

// HasRecord reports whether a row with the id exists.
func (c *Client) HasRecord(ctx context.Context, id string) (bool, error) {
	rows, err := c.readRows(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		if r.Record.ID == id {
			return true, nil
		}
	}
	return false, nil
}

// DeleteRecord implements ports.RecordDeleter
func (c *Client) DeleteRecord(ctx context.Context, owner, id string) error {
	rows, err := c.readRows(ctx)
	if err != nil {
		return core.Upstream("delete record", err)
	}
	var idx []int64
	for _, r := range rows {
		if r.Owner == owner && r.Record.ID == id {
			idx = append(idx, r.Index)
		}
	}
	if len(idx) == 0 {
		return &core.NotFoundError{Kind: "record", ID: id}
	}
	if err := c.deleteRows(ctx, idx); err != nil {
		return core.Upstream("delete record", err)
	}
	return nil
}

func (c *Client) DeleteAllRecords(ctx context.Context, owner string) (int, error) {
	rows, err := c.readRows(ctx)
	if err != nil {
		return 0, core.Upstream("delete records", err)
	}
	var idx []int64
	for _, r := range rows {
		if r.Owner == owner {
			idx = append(idx, r.Index)
		}
	}
	if len(idx) == 0 {
		return 0, nil
	}
	if err := c.deleteRows(ctx, idx); err != nil {
		return 0, core.Upstream("delete records", err)
	}
	return len(idx), nil
}

// deleteRows removes rows bottom-up in one batch so earlier deletions do not
// shift the indexes of later ones.
func (c *Client) deleteRows(ctx context.Context, indexes []int64) error {
	sheetID, err := c.lookupSheetID(ctx)
	if err != nil {
		return err
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] > indexes[j] })

	reqs := make([]*gsheet.Request, 0, len(indexes))
	for _, i := range indexes {
		reqs = append(reqs, &gsheet.Request{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: i,
					EndIndex:   i + 1,
				},
			},
		})
	}
	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("delete rows in %s: %w", c.sheetName, err)
	}
	return nil
}

func (c *Client) lookupSheetID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sheetID != nil {
		return *c.sheetID, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == c.sheetName {
			id := sh.Properties.SheetId
			c.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", c.sheetName)
}

// Health checks that the configured sheet is reachable.
func (c *Client) Health(ctx context.Context) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	_, err := c.lookupSheetID(ctx)
	return err
}
