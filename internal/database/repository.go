package database

import (
	"context"
	"errors"

	"github.com/kozaktomas/facegate/internal/biometric"
)

// ErrNotFound is returned by lookups when the row does not exist.
var ErrNotFound = errors.New("not found")

// SubjectStore provides subject CRUD. CreateSubjectWithTemplates commits the
// subject and all of its templates in a single transaction: either everything
// lands or nothing does.
type SubjectStore interface {
	// CreateSubjectWithTemplates creates the subject and one template per
	// descriptor atomically, and returns the new subject ID.
	CreateSubjectWithTemplates(ctx context.Context, subject *Subject, descriptors []biometric.Descriptor) (int64, error)
	// GetSubject retrieves a subject by ID.
	GetSubject(ctx context.Context, id int64) (*Subject, error)
	// FindSubjectByName looks a subject up by normalized "name surname".
	FindSubjectByName(ctx context.Context, name string) (*Subject, error)
	// ListSubjects returns all enrolled subjects ordered by ID.
	ListSubjects(ctx context.Context) ([]Subject, error)
	// DeleteSubject removes a subject; templates cascade, log rows keep a
	// NULL subject reference.
	DeleteSubject(ctx context.Context, id int64) error
}

// TemplateStore provides read access to enrolled descriptors.
type TemplateStore interface {
	// AllTemplates returns every enrolled template, ordered by ID.
	AllTemplates(ctx context.Context) ([]StoredTemplate, error)
	// TemplatesBySubject returns all templates owned by one subject.
	TemplatesBySubject(ctx context.Context, subjectID int64) ([]StoredTemplate, error)
	// CountTemplates returns the total number of enrolled templates.
	CountTemplates(ctx context.Context) (int, error)
}

// AccessLogStore records and reads access attempts.
type AccessLogStore interface {
	// CreateAccessLog appends one audit record.
	CreateAccessLog(ctx context.Context, entry AccessLogEntry) error
	// RecentAccessLogs returns the newest entries, newest first.
	RecentAccessLogs(ctx context.Context, limit int) ([]AccessLogEntry, error)
}

// Store is the full repository surface the application wires together.
type Store interface {
	SubjectStore
	TemplateStore
	AccessLogStore
}
