package domain

import "encoding/json"

// CaseReport is a reported cholera case with its patient embedded.
type CaseReport struct {
	ID          int64           `json:"id"`
	Date        Timestamp       `json:"date"`
	Description string          `json:"description,omitempty"`
	ReportedBy  json.RawMessage `json:"reported_by,omitempty"`
	Patient     Patient         `json:"patient"`
}
