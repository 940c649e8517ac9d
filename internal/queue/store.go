package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"pennysync/internal/config"
)

// Store manages queue persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	hub  *ChangeHub
}

// Open initializes or connects to the queue database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.QueueDatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, hub: NewChangeHub()}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Changes returns the hub that publishes every mutation to this store.
func (s *Store) Changes() *ChangeHub {
	return s.hub
}

// AddAnalysisRequest inserts a pending analysis request and returns the
// stored row. Assigned ids are strictly increasing within the table.
func (s *Store) AddAnalysisRequest(ctx context.Context, req NewAnalysisRequest) (*AnalysisRequest, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, errors.New("user id is required")
	}
	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO analysis_requests (user_id, text, image_base64, created_at, status, retry_count)
         VALUES (?, ?, ?, ?, ?, 0)`,
		req.UserID,
		nullableString(req.Text),
		nullableString(req.ImageBase64),
		ts.UnixMilli(),
		StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("insert analysis request: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	item, err := s.GetAnalysisRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	s.hub.Publish(Change{Table: TableAnalysisRequests, Op: OpInsert, ID: id, UserID: req.UserID, Status: StatusPending})
	return item, nil
}

// AddExpenseSave inserts a pending expense-save intent and returns the
// stored row.
func (s *Store) AddExpenseSave(ctx context.Context, req NewExpenseSave) (*ExpenseSave, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, errors.New("user id is required")
	}
	if strings.TrimSpace(req.Vendor) == "" {
		return nil, errors.New("vendor is required")
	}
	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO expense_saves (
            user_id, vendor, amount, date, category, description,
            group_id, receipt_url, receipt_path, created_at, status, retry_count
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		req.UserID,
		req.Vendor,
		req.Amount.String(),
		req.Date,
		req.Category,
		nullableString(req.Description),
		nullableString(req.GroupID),
		nullableString(req.ReceiptURL),
		nullableString(req.ReceiptPath),
		ts.UnixMilli(),
		StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("insert expense save: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	item, err := s.GetExpenseSave(ctx, id)
	if err != nil {
		return nil, err
	}
	s.hub.Publish(Change{Table: TableExpenseSaves, Op: OpInsert, ID: id, UserID: req.UserID, Status: StatusPending})
	return item, nil
}

// GetAnalysisRequest fetches an analysis request by identifier.
func (s *Store) GetAnalysisRequest(ctx context.Context, id int64) (*AnalysisRequest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM analysis_requests WHERE id = ?`, id)
	item, err := scanAnalysisRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis request: %w", err)
	}
	return item, nil
}

// GetExpenseSave fetches an expense-save row by identifier.
func (s *Store) GetExpenseSave(ctx context.Context, id int64) (*ExpenseSave, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expense_saves WHERE id = ?`, id)
	item, err := scanExpenseSave(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get expense save: %w", err)
	}
	return item, nil
}

// UpdateAnalysisStatus applies a partial status update to an analysis request.
func (s *Store) UpdateAnalysisStatus(ctx context.Context, id int64, update StatusUpdate) error {
	return s.updateStatus(ctx, TableAnalysisRequests, id, update)
}

// UpdateExpenseStatus applies a partial status update to an expense-save row.
func (s *Store) UpdateExpenseStatus(ctx context.Context, id int64, update StatusUpdate) error {
	return s.updateStatus(ctx, TableExpenseSaves, id, update)
}

func (s *Store) updateStatus(ctx context.Context, table Table, id int64, update StatusUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *update.Status)
	}
	if update.RetryCount != nil {
		sets = append(sets, "retry_count = ?")
		args = append(args, *update.RetryCount)
	}
	if update.Error != nil {
		sets = append(sets, "error_message = ?")
		args = append(args, nullableString(*update.Error))
	}
	args = append(args, id)

	query := `UPDATE ` + string(table) + ` SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s status: %w", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update %s status: row %d not found", table, id)
	}

	change := Change{Table: table, Op: OpUpdate, ID: id}
	if update.Status != nil {
		change.Status = *update.Status
	}
	change.UserID = s.lookupUserID(ctx, table, id)
	s.hub.Publish(change)
	return nil
}

func (s *Store) lookupUserID(ctx context.Context, table Table, id int64) string {
	var userID string
	row := s.db.QueryRowContext(ctx, `SELECT user_id FROM `+string(table)+` WHERE id = ?`, id)
	if err := row.Scan(&userID); err != nil {
		return ""
	}
	return userID
}

// DeleteExpenseSave removes an expense-save row. Used only after the remote
// write succeeds; the row has no further local value once applied.
func (s *Store) DeleteExpenseSave(ctx context.Context, id int64) (bool, error) {
	userID := s.lookupUserID(ctx, TableExpenseSaves, id)
	res, err := s.db.ExecContext(ctx, `DELETE FROM expense_saves WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete expense save: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		s.hub.Publish(Change{Table: TableExpenseSaves, Op: OpDelete, ID: id, UserID: userID})
	}
	return affected > 0, nil
}

// AnalysisRequestsByUserAndStatus returns matching rows in insertion order.
func (s *Store) AnalysisRequestsByUserAndStatus(ctx context.Context, userID string, statuses ...Status) ([]*AnalysisRequest, error) {
	query, args := byUserAndStatusQuery(analysisColumns, TableAnalysisRequests, userID, statuses)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query analysis requests: %w", err)
	}
	defer rows.Close()

	var items []*AnalysisRequest
	for rows.Next() {
		item, err := scanAnalysisRequest(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ExpenseSavesByUserAndStatus returns matching rows in insertion order.
func (s *Store) ExpenseSavesByUserAndStatus(ctx context.Context, userID string, statuses ...Status) ([]*ExpenseSave, error) {
	query, args := byUserAndStatusQuery(expenseColumns, TableExpenseSaves, userID, statuses)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expense saves: %w", err)
	}
	defer rows.Close()

	var items []*ExpenseSave
	for rows.Next() {
		item, err := scanExpenseSave(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// PendingCount returns the number of pending rows for a user across both
// tables.
func (s *Store) PendingCount(ctx context.Context, userID string) (int, error) {
	var count int
	row := s.db.QueryRowContext(
		ctx,
		`SELECT
            (SELECT COUNT(1) FROM analysis_requests WHERE user_id = ? AND status = ?) +
            (SELECT COUNT(1) FROM expense_saves WHERE user_id = ? AND status = ?)`,
		userID, StatusPending, userID, StatusPending,
	)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("pending count: %w", err)
	}
	return count, nil
}

// RetryFailed moves failed rows in one table back to pending. With no ids it
// requeues every failed row for the user; otherwise only the listed rows.
// This is the manual out-of-band reset for terminally failed rows.
func (s *Store) RetryFailed(ctx context.Context, userID string, table Table, ids ...int64) (int64, error) {
	if table != TableAnalysisRequests && table != TableExpenseSaves {
		return 0, fmt.Errorf("unknown table %q", table)
	}

	query := `UPDATE ` + string(table) + ` SET status = ?, error_message = NULL WHERE user_id = ? AND status = ?`
	args := []any{StatusPending, userID, StatusFailed}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed rows: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		s.hub.Publish(Change{Table: table, Op: OpUpdate, UserID: userID, Status: StatusPending})
	}
	return affected, nil
}

// RequeueFailedBelowRetries moves failed rows with retry_count below max back
// to pending in both tables. Drains call this when the retry policy is on.
func (s *Store) RequeueFailedBelowRetries(ctx context.Context, userID string, max int) (int64, error) {
	var total int64
	for _, table := range []Table{TableAnalysisRequests, TableExpenseSaves} {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE `+string(table)+` SET status = ? WHERE user_id = ? AND status = ? AND retry_count < ?`,
			StatusPending, userID, StatusFailed, max,
		)
		if err != nil {
			return total, fmt.Errorf("requeue failed rows in %s: %w", table, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("rows affected: %w", err)
		}
		if affected > 0 {
			total += affected
			s.hub.Publish(Change{Table: table, Op: OpUpdate, UserID: userID, Status: StatusPending})
		}
	}
	return total, nil
}

// Stats returns a count of rows grouped by status for one table.
func (s *Store) Stats(ctx context.Context, userID string, table Table) (map[Status]int, error) {
	if table != TableAnalysisRequests && table != TableExpenseSaves {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT status, COUNT(1) FROM `+string(table)+` WHERE user_id = ? GROUP BY status`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state across both tables for diagnostic output.
func (s *Store) Health(ctx context.Context, userID string) (HealthSummary, error) {
	health := HealthSummary{}
	for _, table := range []Table{TableAnalysisRequests, TableExpenseSaves} {
		stats, err := s.Stats(ctx, userID, table)
		if err != nil {
			return HealthSummary{}, err
		}
		for status, count := range stats {
			health.Total += count
			switch status {
			case StatusPending:
				health.Pending += count
			case StatusProcessing:
				health.Processing += count
			case StatusCompleted:
				health.Completed += count
			case StatusFailed:
				health.Failed += count
			}
		}
	}
	return health, nil
}

// ClearCompleted removes completed analysis requests. Expense saves never
// reach completed; they are deleted on success during the drain.
func (s *Store) ClearCompleted(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM analysis_requests WHERE user_id = ? AND status = ?`,
		userID, StatusCompleted,
	)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		s.hub.Publish(Change{Table: TableAnalysisRequests, Op: OpDelete, UserID: userID})
	}
	return affected, nil
}

// ClearFailed removes failed rows from both tables.
func (s *Store) ClearFailed(ctx context.Context, userID string) (int64, error) {
	var total int64
	for _, table := range []Table{TableAnalysisRequests, TableExpenseSaves} {
		res, err := s.db.ExecContext(
			ctx,
			`DELETE FROM `+string(table)+` WHERE user_id = ? AND status = ?`,
			userID, StatusFailed,
		)
		if err != nil {
			return total, fmt.Errorf("clear failed in %s: %w", table, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		if affected > 0 {
			total += affected
			s.hub.Publish(Change{Table: table, Op: OpDelete, UserID: userID})
		}
	}
	return total, nil
}

const analysisColumns = "id, user_id, text, image_base64, created_at, status, retry_count, error_message"

const expenseColumns = "id, user_id, vendor, amount, date, category, description, group_id, receipt_url, receipt_path, created_at, status, retry_count, error_message"

func byUserAndStatusQuery(columns string, table Table, userID string, statuses []Status) (string, []any) {
	query := `SELECT ` + columns + ` FROM ` + string(table) + ` WHERE user_id = ?`
	args := []any{userID}
	if len(statuses) > 0 {
		query += ` AND status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY id`
	return query, args
}

func scanAnalysisRequest(scanner interface{ Scan(dest ...any) error }) (*AnalysisRequest, error) {
	var (
		id         int64
		userID     string
		text       sql.NullString
		image      sql.NullString
		createdAt  int64
		statusStr  string
		retryCount int
		errMessage sql.NullString
	)

	if err := scanner.Scan(&id, &userID, &text, &image, &createdAt, &statusStr, &retryCount, &errMessage); err != nil {
		return nil, err
	}

	return &AnalysisRequest{
		ID:           id,
		UserID:       userID,
		Text:         text.String,
		ImageBase64:  image.String,
		Timestamp:    time.UnixMilli(createdAt).UTC(),
		Status:       Status(statusStr),
		RetryCount:   retryCount,
		ErrorMessage: errMessage.String,
	}, nil
}

func scanExpenseSave(scanner interface{ Scan(dest ...any) error }) (*ExpenseSave, error) {
	var (
		id          int64
		userID      string
		vendor      string
		amountStr   string
		date        string
		category    string
		description sql.NullString
		groupID     sql.NullString
		receiptURL  sql.NullString
		receiptPath sql.NullString
		createdAt   int64
		statusStr   string
		retryCount  int
		errMessage  sql.NullString
	)

	if err := scanner.Scan(
		&id, &userID, &vendor, &amountStr, &date, &category, &description,
		&groupID, &receiptURL, &receiptPath, &createdAt, &statusStr, &retryCount, &errMessage,
	); err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amountStr, err)
	}

	return &ExpenseSave{
		ID:           id,
		UserID:       userID,
		Vendor:       vendor,
		Amount:       amount,
		Date:         date,
		Category:     category,
		Description:  description.String,
		GroupID:      groupID.String,
		ReceiptURL:   receiptURL.String,
		ReceiptPath:  receiptPath.String,
		Timestamp:    time.UnixMilli(createdAt).UTC(),
		Status:       Status(statusStr),
		RetryCount:   retryCount,
		ErrorMessage: errMessage.String,
	}, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
