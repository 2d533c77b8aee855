// Package history persists surface lifecycle facts to SQLite so past
// sessions can be inspected after the host exits.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timeLayout has a fixed-width fraction so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Surface is one row of the surfaces table.
type Surface struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Kind        string     `json:"kind"`
	ExportPath  string     `json:"export_path,omitempty"`
	DownloadDir string     `json:"download_dir,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	CloseReason string     `json:"close_reason,omitempty"`
	Results     int        `json:"results"`
	ResultBytes int64      `json:"result_bytes"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
}

// Artifact is a file a surface produced.
type Artifact struct {
	ID        string    `json:"id"`
	SurfaceID string    `json:"surface_id"`
	Kind      string    `json:"kind"`
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// OpenSurface inserts a surface row. Re-inserting an id is ignored.
func (s *Store) OpenSurface(ctx context.Context, sf Surface) error {
	if sf.ID == "" {
		return fmt.Errorf("surface id is empty")
	}
	if sf.CreatedAt.IsZero() {
		sf.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO surfaces(id, title, kind, export_path, download_dir, created_at)
VALUES(?, ?, ?, ?, ?, ?);
`, sf.ID, sf.Title, sf.Kind, nullable(sf.ExportPath), nullable(sf.DownloadDir), sf.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert surface: %w", err)
	}
	return nil
}

// CloseSurface stamps closed_at and the reason. Only the first close counts.
func (s *Store) CloseSurface(ctx context.Context, id, reason string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE surfaces SET closed_at = ?, close_reason = ?
WHERE id = ? AND closed_at IS NULL;
`, at.UTC().Format(timeLayout), reason, id)
	if err != nil {
		return fmt.Errorf("close surface: %w", err)
	}
	return nil
}

// AddArtifact records a written file and returns its row id.
func (s *Store) AddArtifact(ctx context.Context, a Artifact) (string, error) {
	if a.Path == "" {
		return "", fmt.Errorf("artifact path is empty")
	}
	id := uuid.NewString()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO artifacts(id, surface_id, kind, path, checksum, created_at)
VALUES(?, ?, ?, ?, ?, ?);
`, id, a.SurfaceID, a.Kind, a.Path, nullable(a.Checksum), a.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return "", fmt.Errorf("insert artifact: %w", err)
	}
	return id, nil
}

// AddResult records the size of one emitted result.
func (s *Store) AddResult(ctx context.Context, surfaceID string, bytes int, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO results(id, surface_id, bytes, created_at)
VALUES(?, ?, ?, ?);
`, uuid.NewString(), surfaceID, bytes, at.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// Recent returns the newest surfaces first, with result totals and
// artifacts attached.
func (s *Store) Recent(ctx context.Context, limit int) ([]Surface, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT s.id, s.title, s.kind, s.export_path, s.download_dir, s.created_at, s.closed_at, s.close_reason,
       COUNT(r.id), COALESCE(SUM(r.bytes), 0)
FROM surfaces s
LEFT JOIN results r ON r.surface_id = s.id
GROUP BY s.id
ORDER BY s.created_at DESC, s.rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query surfaces: %w", err)
	}
	defer rows.Close()

	var out []Surface
	for rows.Next() {
		var (
			sf                      Surface
			exportPath, downloadDir sql.NullString
			created                 string
			closed, reason          sql.NullString
		)
		if err := rows.Scan(&sf.ID, &sf.Title, &sf.Kind, &exportPath, &downloadDir, &created, &closed, &reason,
			&sf.Results, &sf.ResultBytes); err != nil {
			return nil, fmt.Errorf("scan surface: %w", err)
		}
		sf.ExportPath = exportPath.String
		sf.DownloadDir = downloadDir.String
		sf.CloseReason = reason.String
		if sf.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if closed.Valid {
			at, err := time.Parse(timeLayout, closed.String)
			if err != nil {
				return nil, fmt.Errorf("parse closed_at: %w", err)
			}
			sf.ClosedAt = &at
		}
		out = append(out, sf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate surfaces: %w", err)
	}

	for i := range out {
		arts, err := s.Artifacts(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Artifacts = arts
	}
	return out, nil
}

// Artifacts returns the files written for a surface, oldest first.
func (s *Store) Artifacts(ctx context.Context, surfaceID string) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, surface_id, kind, path, checksum, created_at
FROM artifacts
WHERE surface_id = ?
ORDER BY created_at ASC, rowid ASC;
`, surfaceID)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var (
			a        Artifact
			checksum sql.NullString
			created  string
		)
		if err := rows.Scan(&a.ID, &a.SurfaceID, &a.Kind, &a.Path, &checksum, &created); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		a.Checksum = checksum.String
		if a.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("parse artifact created_at: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
