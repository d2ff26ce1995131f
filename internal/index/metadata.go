package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/gunter0128/sop-assistant/internal/models"
)

const dateLayout = "2006-01-02"

// MetadataStore persists the segment metadata table in SQLite.
type MetadataStore struct {
	db *sqlx.DB
}

// NewMetadataStore opens or creates the metadata database at dbPath and
// initializes the schema. Parent directories are created if they do not exist.
func NewMetadataStore(dbPath string) (*MetadataStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &MetadataStore{db: db}, nil
}

func initSchema(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS segments (
		segment_id TEXT PRIMARY KEY,
		doc_id TEXT NOT NULL,
		version TEXT NOT NULL,
		effective_date TEXT NOT NULL,
		title TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		source_text TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_segments_doc_id ON segments(doc_id);
	CREATE INDEX IF NOT EXISTS idx_segments_doc_version ON segments(doc_id, version);
	`
	_, err := db.Exec(schema)
	return err
}

type segmentRow struct {
	SegmentID     string `db:"segment_id"`
	DocID         string `db:"doc_id"`
	Version       string `db:"version"`
	EffectiveDate string `db:"effective_date"`
	Title         string `db:"title"`
	Ordinal       int    `db:"ordinal"`
	SourceText    string `db:"source_text"`
}

// ReplaceAll replaces the whole table with the given segments in one
// transaction. Rebuilds are idempotent: entries from removed segments never
// survive a rebuild.
func (s *MetadataStore) ReplaceAll(ctx context.Context, segments []*models.Segment) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM segments`); err != nil {
		return fmt.Errorf("clear segments: %w", err)
	}
	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO segments (segment_id, doc_id, version, effective_date, title, ordinal, source_text)
		VALUES (:segment_id, :doc_id, :version, :effective_date, :title, :ordinal, :source_text)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, seg := range segments {
		row := segmentRow{
			SegmentID:     seg.ID,
			DocID:         seg.DocID,
			Version:       seg.Version.String(),
			EffectiveDate: seg.EffectiveDate.Format(dateLayout),
			Title:         seg.Title,
			Ordinal:       seg.Ordinal,
			SourceText:    seg.Text,
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("insert segment %s: %w", seg.ID, err)
		}
	}
	return tx.Commit()
}

// LoadAll returns all segment metadata ordered by segment ID. Embeddings are
// not stored here; the caller joins them from the vector table.
func (s *MetadataStore) LoadAll(ctx context.Context) ([]*models.Segment, error) {
	var rows []segmentRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT segment_id, doc_id, version, effective_date, title, ordinal, source_text
		FROM segments ORDER BY segment_id`)
	if err != nil {
		return nil, fmt.Errorf("load segments: %w", err)
	}
	segments := make([]*models.Segment, 0, len(rows))
	for _, row := range rows {
		version, err := models.ParseVersion(row.Version)
		if err != nil {
			return nil, fmt.Errorf("%w: segment %s: %v", models.ErrIndexCorrupt, row.SegmentID, err)
		}
		date, err := time.Parse(dateLayout, row.EffectiveDate)
		if err != nil {
			return nil, fmt.Errorf("%w: segment %s: bad effective date %q", models.ErrIndexCorrupt, row.SegmentID, row.EffectiveDate)
		}
		segments = append(segments, &models.Segment{
			ID:            row.SegmentID,
			DocID:         row.DocID,
			Version:       version,
			EffectiveDate: date,
			Title:         row.Title,
			Ordinal:       row.Ordinal,
			Text:          row.SourceText,
		})
	}
	return segments, nil
}

// CountSegments returns the number of stored segments.
func (s *MetadataStore) CountSegments(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM segments`); err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the database.
func (s *MetadataStore) Close() error {
	return s.db.Close()
}
