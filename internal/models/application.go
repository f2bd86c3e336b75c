// internal/models/application.go
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Application is a pending seller registration as returned by the OPAS
// admin API. It is read-only once fetched.
type Application struct {
	SellerID  string                 `json:"seller_id"`
	Email     string                 `json:"email"`
	CreatedAt string                 `json:"created_at,omitempty"`
	Documents []Document             `json:"documents"`
	FullName  string                 `json:"full_name,omitempty"`
	Phone     string                 `json:"phone,omitempty"`
	StoreName string                 `json:"store_name,omitempty"`
	Profile   map[string]interface{} `json:"profile,omitempty"`
}

// Document is an uploaded registration document. Only its presence matters here.
type Document struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type,omitempty"`
	URL  string `json:"url,omitempty"`
}

// UnmarshalJSON accepts seller_id as a string or a number; the backend
// serialises primary keys as integers on some endpoints.
func (a *Application) UnmarshalJSON(data []byte) error {
	type alias Application
	aux := struct {
		SellerID json.RawMessage `json:"seller_id"`
		*alias
	}{alias: (*alias)(a)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	id, err := decodeID(aux.SellerID)
	if err != nil {
		return fmt.Errorf("seller_id: %w", err)
	}
	a.SellerID = id
	return nil
}

func decodeID(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("unsupported id %s", trimmed)
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// SubmittedAt parses CreatedAt. ok is false when the field is missing or
// not in any recognised layout.
func (a Application) SubmittedAt() (t time.Time, ok bool) {
	s := strings.TrimSpace(a.CreatedAt)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range createdAtLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// HasDocuments reports whether at least one document was uploaded.
func (a Application) HasDocuments() bool {
	return len(a.Documents) > 0
}

// Filter kinds understood by the filter stage.
const (
	FilterAllPending        = "all_pending"
	FilterDateRange         = "date_range"
	FilterDocumentsComplete = "documents_complete"
	FilterRecent            = "recent"
)

// FilterCriteria selects which pending applications enter a batch.
// Start and End are only used by date_range; the range is [Start, End).
type FilterCriteria struct {
	Kind  string     `json:"kind"`
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// FilterStats summarises what a filter removed.
type FilterStats struct {
	Original int `json:"original"`
	Retained int `json:"retained"`
	Removed  int `json:"removed"`
}
