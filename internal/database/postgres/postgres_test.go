//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/facegate/internal/biometric"
	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := Connect(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to connect: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func testDescriptor(seed float32) biometric.Descriptor {
	d := make(biometric.Descriptor, biometric.DescriptorDim)
	for i := range d {
		d[i] = seed + float32(i)/1000
	}
	return d
}

func TestRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewRepository(pool)

	var subjectID int64

	t.Run("CreateSubjectWithTemplates", func(t *testing.T) {
		descriptors := []biometric.Descriptor{testDescriptor(0.1), testDescriptor(0.2)}

		id, err := repo.CreateSubjectWithTemplates(ctx, &database.Subject{
			Name:    "Jan",
			Surname: "Novák",
		}, descriptors)
		if err != nil {
			t.Fatalf("CreateSubjectWithTemplates: %v", err)
		}
		subjectID = id

		count, err := repo.CountTemplates(ctx)
		if err != nil {
			t.Fatalf("CountTemplates: %v", err)
		}
		if count != 2 {
			t.Errorf("expected 2 templates, got %d", count)
		}
	})

	t.Run("AllTemplates", func(t *testing.T) {
		templates, err := repo.AllTemplates(ctx)
		if err != nil {
			t.Fatalf("AllTemplates: %v", err)
		}
		if len(templates) != 2 {
			t.Fatalf("expected 2 templates, got %d", len(templates))
		}
		if len(templates[0].Descriptor) != biometric.DescriptorDim {
			t.Errorf("expected %d dims, got %d", biometric.DescriptorDim, len(templates[0].Descriptor))
		}
		if templates[0].SubjectID != subjectID {
			t.Errorf("expected subject %d, got %d", subjectID, templates[0].SubjectID)
		}
	})

	t.Run("TemplatesBySubject", func(t *testing.T) {
		templates, err := repo.TemplatesBySubject(ctx, subjectID)
		if err != nil {
			t.Fatalf("TemplatesBySubject: %v", err)
		}
		if len(templates) != 2 {
			t.Errorf("expected 2 templates, got %d", len(templates))
		}

		none, err := repo.TemplatesBySubject(ctx, 99999)
		if err != nil {
			t.Fatalf("TemplatesBySubject(missing): %v", err)
		}
		if len(none) != 0 {
			t.Errorf("expected no templates for unknown subject, got %d", len(none))
		}
	})

	t.Run("FindSubjectByName normalized", func(t *testing.T) {
		subject, err := repo.FindSubjectByName(ctx, "jan-novak")
		if err != nil {
			t.Fatalf("FindSubjectByName: %v", err)
		}
		if subject.ID != subjectID {
			t.Errorf("expected subject %d, got %d", subjectID, subject.ID)
		}

		if _, err := repo.FindSubjectByName(ctx, "nobody here"); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("AccessLog", func(t *testing.T) {
		confidence := 0.87
		err := repo.CreateAccessLog(ctx, database.AccessLogEntry{
			SubjectID:  &subjectID,
			AccessType: database.AccessIdentification,
			Result:     database.AccessSuccess,
			Confidence: &confidence,
		})
		if err != nil {
			t.Fatalf("CreateAccessLog: %v", err)
		}

		err = repo.CreateAccessLog(ctx, database.AccessLogEntry{
			AccessType: database.AccessIdentification,
			Result:     database.AccessFailure,
		})
		if err != nil {
			t.Fatalf("CreateAccessLog(failure): %v", err)
		}

		entries, err := repo.RecentAccessLogs(ctx, 10)
		if err != nil {
			t.Fatalf("RecentAccessLogs: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		// Newest first.
		if entries[0].Result != database.AccessFailure {
			t.Errorf("expected newest entry first, got %+v", entries[0])
		}
		if entries[0].SubjectID != nil {
			t.Error("failed attempt must have NULL subject")
		}
		if entries[1].Confidence == nil || *entries[1].Confidence != confidence {
			t.Errorf("expected confidence %v, got %v", confidence, entries[1].Confidence)
		}
	})

	t.Run("DeleteSubject cascades templates", func(t *testing.T) {
		if err := repo.DeleteSubject(ctx, subjectID); err != nil {
			t.Fatalf("DeleteSubject: %v", err)
		}

		count, err := repo.CountTemplates(ctx)
		if err != nil {
			t.Fatalf("CountTemplates: %v", err)
		}
		if count != 0 {
			t.Errorf("expected templates to cascade, got %d left", count)
		}

		// Log rows survive with a NULL subject.
		entries, err := repo.RecentAccessLogs(ctx, 10)
		if err != nil {
			t.Fatalf("RecentAccessLogs: %v", err)
		}
		if len(entries) != 2 {
			t.Errorf("expected log entries to survive subject deletion, got %d", len(entries))
		}

		if err := repo.DeleteSubject(ctx, subjectID); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})
}
