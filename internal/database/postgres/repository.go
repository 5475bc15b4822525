package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/facegate/internal/biometric"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/pgvector/pgvector-go"
)

// Repository implements database.Store on top of the connection pool.
type Repository struct {
	pool *Pool
}

// NewRepository creates a PostgreSQL-backed repository.
func NewRepository(pool *Pool) *Repository {
	return &Repository{pool: pool}
}

var _ database.Store = (*Repository)(nil)

// CreateSubjectWithTemplates creates the subject row and one template row per
// descriptor in a single transaction. A failure on any statement rolls the
// whole enrollment back; partial template sets are never left committed.
func (r *Repository) CreateSubjectWithTemplates(
	ctx context.Context, subject *database.Subject, descriptors []biometric.Descriptor,
) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var subjectID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO subjects (name, surname, photo_path, access_level)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, subject.Name, subject.Surname, subject.PhotoPath, subject.AccessLevel).Scan(&subjectID)
	if err != nil {
		return 0, fmt.Errorf("insert subject: %w", err)
	}

	for i, descriptor := range descriptors {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO templates (subject_id, descriptor)
			VALUES ($1, $2)
		`, subjectID, pgvector.NewVector(descriptor))
		if err != nil {
			return 0, fmt.Errorf("insert template %d/%d: %w", i+1, len(descriptors), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit enrollment: %w", err)
	}
	return subjectID, nil
}

// GetSubject retrieves a subject by ID.
func (r *Repository) GetSubject(ctx context.Context, id int64) (*database.Subject, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, surname, COALESCE(photo_path, ''), access_level, created_at
		FROM subjects
		WHERE id = $1
	`, id)
	return scanSubject(row)
}

// FindSubjectByName looks a subject up by normalized full name. Comparison is
// case- and diacritic-insensitive, with dashes treated as spaces, so
// "jan-novak" matches "Jan Novák".
func (r *Repository) FindSubjectByName(ctx context.Context, name string) (*database.Subject, error) {
	normalized := biometric.NormalizeSubjectName(name)

	row := r.pool.QueryRow(ctx, `
		SELECT id, name, surname, COALESCE(photo_path, ''), access_level, created_at
		FROM subjects
		WHERE LOWER(REPLACE(unaccent(name || ' ' || surname), '-', ' ')) = $1
		ORDER BY id
		LIMIT 1
	`, normalized)
	return scanSubject(row)
}

// ListSubjects returns all enrolled subjects ordered by ID.
func (r *Repository) ListSubjects(ctx context.Context) ([]database.Subject, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, surname, COALESCE(photo_path, ''), access_level, created_at
		FROM subjects
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query subjects: %w", err)
	}
	defer rows.Close()

	var subjects []database.Subject
	for rows.Next() {
		var s database.Subject
		if err := rows.Scan(&s.ID, &s.Name, &s.Surname, &s.PhotoPath, &s.AccessLevel, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subjects = append(subjects, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}
	return subjects, nil
}

// DeleteSubject removes a subject. Template rows cascade; access-log rows
// keep a NULL subject reference.
func (r *Repository) DeleteSubject(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM subjects WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	if affected == 0 {
		return database.ErrNotFound
	}
	return nil
}

func scanSubject(row *sql.Row) (*database.Subject, error) {
	var s database.Subject
	err := row.Scan(&s.ID, &s.Name, &s.Surname, &s.PhotoPath, &s.AccessLevel, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan subject: %w", err)
	}
	return &s, nil
}
