// Package database defines the persistence types and store interfaces the
// pipeline depends on: subjects, biometric templates and the access log.
package database

import (
	"time"

	"github.com/kozaktomas/facegate/internal/biometric"
)

// Subject is an enrolled person.
type Subject struct {
	ID          int64
	Name        string
	Surname     string
	PhotoPath   string // reference photo saved at enrollment, may be empty
	AccessLevel int
	CreatedAt   time.Time
}

// StoredTemplate is one enrolled descriptor row. A subject owns one template
// per accepted enrollment sample.
type StoredTemplate struct {
	ID         int64
	SubjectID  int64
	Descriptor biometric.Descriptor
	CreatedAt  time.Time
}

// AccessType classifies an access-log entry.
type AccessType string

const (
	AccessVerification   AccessType = "verification"
	AccessIdentification AccessType = "identification"
)

// AccessResult is the outcome recorded for an access attempt.
type AccessResult string

const (
	AccessSuccess AccessResult = "success"
	AccessFailure AccessResult = "failure"
)

// AccessLogEntry is the audit record of one verification or identification
// attempt. SubjectID and Confidence are nil for failed attempts with no match.
type AccessLogEntry struct {
	ID         int64
	SubjectID  *int64
	AccessType AccessType
	Result     AccessResult
	Confidence *float64
	Timestamp  time.Time
}
