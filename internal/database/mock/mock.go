// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/facegate/internal/biometric"
	"github.com/kozaktomas/facegate/internal/database"
)

// MockStore is an in-memory implementation of database.Store
type MockStore struct {
	mu        sync.RWMutex
	subjects  map[int64]*database.Subject
	templates map[int64]*database.StoredTemplate
	accessLog []database.AccessLogEntry
	nextSubID int64
	nextTplID int64
	nextLogID int64

	// Query counters
	AllTemplatesCalls int

	// Error injection
	CreateError       error
	GetError          error
	FindError         error
	ListError         error
	DeleteError       error
	AllTemplatesError error
	CountError        error
	AccessLogError    error
}

// NewMockStore creates a new empty mock store
func NewMockStore() *MockStore {
	return &MockStore{
		subjects:  make(map[int64]*database.Subject),
		templates: make(map[int64]*database.StoredTemplate),
		nextSubID: 1,
		nextTplID: 1,
		nextLogID: 1,
	}
}

var _ database.Store = (*MockStore)(nil)

// AddSubject inserts a subject directly, bypassing error injection
func (m *MockStore) AddSubject(subject database.Subject) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addSubjectLocked(subject)
}

func (m *MockStore) addSubjectLocked(subject database.Subject) int64 {
	subject.ID = m.nextSubID
	m.nextSubID++
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = time.Now()
	}
	m.subjects[subject.ID] = &subject
	return subject.ID
}

// AddTemplate inserts a template directly, bypassing error injection
func (m *MockStore) AddTemplate(subjectID int64, descriptor biometric.Descriptor) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addTemplateLocked(subjectID, descriptor)
}

func (m *MockStore) addTemplateLocked(subjectID int64, descriptor biometric.Descriptor) int64 {
	id := m.nextTplID
	m.nextTplID++
	m.templates[id] = &database.StoredTemplate{
		ID:         id,
		SubjectID:  subjectID,
		Descriptor: descriptor,
		CreatedAt:  time.Now(),
	}
	return id
}

// CreateSubjectWithTemplates stores a subject and its templates atomically
func (m *MockStore) CreateSubjectWithTemplates(ctx context.Context, subject *database.Subject, descriptors []biometric.Descriptor) (int64, error) {
	if m.CreateError != nil {
		return 0, m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.addSubjectLocked(*subject)
	for _, d := range descriptors {
		m.addTemplateLocked(id, d)
	}
	return id, nil
}

// GetSubject retrieves a subject by ID
func (m *MockStore) GetSubject(ctx context.Context, id int64) (*database.Subject, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	subject, ok := m.subjects[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *subject
	return &copied, nil
}

// FindSubjectByName retrieves a subject by normalized full name
func (m *MockStore) FindSubjectByName(ctx context.Context, name string) (*database.Subject, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	normalized := biometric.NormalizeSubjectName(name)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, subject := range m.subjects {
		full := biometric.NormalizeSubjectName(subject.Name + " " + subject.Surname)
		if full == normalized {
			copied := *subject
			return &copied, nil
		}
	}
	return nil, database.ErrNotFound
}

// ListSubjects returns all subjects ordered by ID
func (m *MockStore) ListSubjects(ctx context.Context) ([]database.Subject, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	subjects := make([]database.Subject, 0, len(m.subjects))
	for _, subject := range m.subjects {
		subjects = append(subjects, *subject)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].ID < subjects[j].ID })
	return subjects, nil
}

// DeleteSubject removes a subject and its templates
func (m *MockStore) DeleteSubject(ctx context.Context, id int64) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subjects[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.subjects, id)
	for tplID, tpl := range m.templates {
		if tpl.SubjectID == id {
			delete(m.templates, tplID)
		}
	}
	for i := range m.accessLog {
		if m.accessLog[i].SubjectID != nil && *m.accessLog[i].SubjectID == id {
			m.accessLog[i].SubjectID = nil
		}
	}
	return nil
}

// AllTemplates returns every stored template
func (m *MockStore) AllTemplates(ctx context.Context) ([]database.StoredTemplate, error) {
	m.mu.Lock()
	m.AllTemplatesCalls++
	m.mu.Unlock()
	if m.AllTemplatesError != nil {
		return nil, m.AllTemplatesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	templates := make([]database.StoredTemplate, 0, len(m.templates))
	for _, tpl := range m.templates {
		templates = append(templates, *tpl)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].ID < templates[j].ID })
	return templates, nil
}

// TemplatesBySubject returns all templates belonging to a subject
func (m *MockStore) TemplatesBySubject(ctx context.Context, subjectID int64) ([]database.StoredTemplate, error) {
	if m.AllTemplatesError != nil {
		return nil, m.AllTemplatesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var templates []database.StoredTemplate
	for _, tpl := range m.templates {
		if tpl.SubjectID == subjectID {
			templates = append(templates, *tpl)
		}
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].ID < templates[j].ID })
	return templates, nil
}

// CountTemplates returns the total number of templates
func (m *MockStore) CountTemplates(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.templates), nil
}

// CreateAccessLog records an access attempt
func (m *MockStore) CreateAccessLog(ctx context.Context, entry database.AccessLogEntry) error {
	if m.AccessLogError != nil {
		return m.AccessLogError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = m.nextLogID
	m.nextLogID++
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	m.accessLog = append(m.accessLog, entry)
	return nil
}

// RecentAccessLogs returns the newest entries first
func (m *MockStore) RecentAccessLogs(ctx context.Context, limit int) ([]database.AccessLogEntry, error) {
	if m.AccessLogError != nil {
		return nil, m.AccessLogError
	}
	if limit <= 0 {
		limit = 100
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]database.AccessLogEntry, len(m.accessLog))
	copy(entries, m.accessLog)
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID > entries[j].ID })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// AccessLogCount returns the number of recorded entries
func (m *MockStore) AccessLogCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accessLog)
}
