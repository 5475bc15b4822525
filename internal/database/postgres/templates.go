package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/facegate/internal/database"
	"github.com/pgvector/pgvector-go"
)

// AllTemplates returns every enrolled template, ordered by ID.
func (r *Repository) AllTemplates(ctx context.Context) ([]database.StoredTemplate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, subject_id, descriptor, created_at
		FROM templates
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	return scanTemplates(rows)
}

// TemplatesBySubject returns all templates owned by one subject.
func (r *Repository) TemplatesBySubject(ctx context.Context, subjectID int64) ([]database.StoredTemplate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, subject_id, descriptor, created_at
		FROM templates
		WHERE subject_id = $1
		ORDER BY id
	`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("query templates by subject: %w", err)
	}
	defer rows.Close()

	return scanTemplates(rows)
}

// CountTemplates returns the total number of enrolled templates.
func (r *Repository) CountTemplates(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM templates").Scan(&count); err != nil {
		return 0, fmt.Errorf("count templates: %w", err)
	}
	return count, nil
}

func scanTemplates(rows *sql.Rows) ([]database.StoredTemplate, error) {
	var templates []database.StoredTemplate
	for rows.Next() {
		var t database.StoredTemplate
		var vec pgvector.Vector
		if err := rows.Scan(&t.ID, &t.SubjectID, &vec, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		t.Descriptor = vec.Slice()
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return templates, nil
}
