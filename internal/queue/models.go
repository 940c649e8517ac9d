package queue

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the lifecycle of a queued row.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether no further automatic transition occurs from s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// AnalysisRequest is a queued intent to run AI expense analysis. Rows are
// never deleted; they terminate in completed or failed and remain as an
// audit trail.
type AnalysisRequest struct {
	ID           int64
	UserID       string
	Text         string
	ImageBase64  string
	Timestamp    time.Time
	Status       Status
	RetryCount   int
	ErrorMessage string
}

// ExpenseSave is a queued intent to create an expense remotely. Rows are
// deleted outright once the remote write succeeds; failed rows are retained.
type ExpenseSave struct {
	ID           int64
	UserID       string
	Vendor       string
	Amount       decimal.Decimal
	Date         string
	Category     string
	Description  string
	GroupID      string
	ReceiptURL   string
	ReceiptPath  string
	Timestamp    time.Time
	Status       Status
	RetryCount   int
	ErrorMessage string
}

// NewAnalysisRequest carries the caller-supplied fields for an analysis
// enqueue. At least one of Text/ImageBase64 is expected; the queue does not
// validate this.
type NewAnalysisRequest struct {
	UserID      string
	Text        string
	ImageBase64 string
	Timestamp   time.Time
}

// NewExpenseSave carries the caller-supplied fields for an expense-save
// enqueue.
type NewExpenseSave struct {
	UserID      string
	Vendor      string
	Amount      decimal.Decimal
	Date        string
	Category    string
	Description string
	GroupID     string
	ReceiptURL  string
	ReceiptPath string
	Timestamp   time.Time
}

// StatusUpdate is a partial update applied to a queued row. Nil fields are
// left untouched. Last writer wins; there is no optimistic-lock check.
type StatusUpdate struct {
	Status     *Status
	RetryCount *int
	Error      *string
}

// IsEmpty reports whether the update would change nothing.
func (u StatusUpdate) IsEmpty() bool {
	return u.Status == nil && u.RetryCount == nil && u.Error == nil
}

// HealthSummary describes aggregated queue counts across both tables.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
}
