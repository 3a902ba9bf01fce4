package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"scribe/application/ports"
	"scribe/domain/core/entities"
	pkgerrors "scribe/pkg/errors"

	"go.uber.org/zap"
)

const whiteboardColumns = `id, project_id, owner_id, original_filename, image_path, mime_type, file_size,
	processing_status, progress, extracted_text, structured_content, confidence_score, error_message,
	created_at, updated_at, processed_at`

// WhiteboardRepository implements ports.WhiteboardRepository on SQLite
type WhiteboardRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ ports.WhiteboardRepository = (*WhiteboardRepository)(nil)

// NewWhiteboardRepository creates a new WhiteboardRepository
func NewWhiteboardRepository(db *sql.DB, logger *zap.Logger) *WhiteboardRepository {
	return &WhiteboardRepository{db: db, logger: logger}
}

func scanWhiteboard(row scanner) (*entities.Whiteboard, error) {
	var (
		w                    entities.Whiteboard
		status               string
		structured           sql.NullString
		createdAt, updatedAt string
		processedAt          sql.NullString
	)
	err := row.Scan(&w.ID, &w.ProjectID, &w.OwnerID, &w.OriginalFilename, &w.ImagePath, &w.MimeType, &w.FileSize,
		&status, &w.Progress, &w.ExtractedText, &structured, &w.ConfidenceScore, &w.ErrorMessage,
		&createdAt, &updatedAt, &processedAt)
	if err != nil {
		return nil, err
	}
	w.ProcessingStatus = entities.ProcessingStatus(status)
	if structured.Valid && structured.String != "" {
		w.StructuredContent = json.RawMessage(structured.String)
	}
	w.CreatedAt = parseTime(createdAt)
	w.UpdatedAt = parseTime(updatedAt)
	w.ProcessedAt = parseNullTime(processedAt)
	return &w, nil
}

// Create persists a new whiteboard
func (r *WhiteboardRepository) Create(ctx context.Context, w *entities.Whiteboard) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO whiteboards (`+whiteboardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.ProjectID, w.OwnerID, w.OriginalFilename, w.ImagePath, w.MimeType, w.FileSize,
		string(w.ProcessingStatus), w.Progress, w.ExtractedText, nullString(string(w.StructuredContent)),
		w.ConfidenceScore, w.ErrorMessage,
		formatTime(w.CreatedAt), formatTime(w.UpdatedAt), nullTime(w.ProcessedAt))
	if err != nil {
		r.logger.Error("Failed to create whiteboard", zap.String("whiteboardID", w.ID), zap.Error(err))
		return pkgerrors.NewDatabaseError("create whiteboard", err)
	}
	return nil
}

// GetByID retrieves a whiteboard by its ID
func (r *WhiteboardRepository) GetByID(ctx context.Context, id string) (*entities.Whiteboard, error) {
	w, err := scanWhiteboard(r.db.QueryRowContext(ctx, `SELECT `+whiteboardColumns+` FROM whiteboards WHERE id = ?`, id))
	if err != nil {
		return nil, notFoundOr(err, "whiteboard", "get whiteboard")
	}
	return w, nil
}

// ListByProject returns a project's whiteboards in upload order
func (r *WhiteboardRepository) ListByProject(ctx context.Context, projectID string) ([]*entities.Whiteboard, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+whiteboardColumns+` FROM whiteboards
		WHERE project_id = ? ORDER BY created_at, rowid`, projectID)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("list whiteboards", err)
	}
	defer rows.Close()

	whiteboards := []*entities.Whiteboard{}
	for rows.Next() {
		w, err := scanWhiteboard(rows)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("scan whiteboard", err)
		}
		whiteboards = append(whiteboards, w)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("list whiteboards", err)
	}
	return whiteboards, nil
}

// Update overwrites a whiteboard
func (r *WhiteboardRepository) Update(ctx context.Context, w *entities.Whiteboard) error {
	res, err := r.db.ExecContext(ctx, `UPDATE whiteboards SET
			processing_status = ?, progress = ?, extracted_text = ?, structured_content = ?,
			confidence_score = ?, error_message = ?, updated_at = ?, processed_at = ?
		WHERE id = ?`,
		string(w.ProcessingStatus), w.Progress, w.ExtractedText, nullString(string(w.StructuredContent)),
		w.ConfidenceScore, w.ErrorMessage, formatTime(w.UpdatedAt), nullTime(w.ProcessedAt),
		w.ID)
	if err != nil {
		r.logger.Error("Failed to update whiteboard", zap.String("whiteboardID", w.ID), zap.Error(err))
		return pkgerrors.NewDatabaseError("update whiteboard", err)
	}
	return requireRow(res, "whiteboard")
}

// BeginProcessing claims the whiteboard for one analysis run
func (r *WhiteboardRepository) BeginProcessing(ctx context.Context, id string, now, staleBefore time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE whiteboards SET
			processing_status = ?, progress = 0, error_message = '', updated_at = ?
		WHERE id = ? AND (processing_status IN (?, ?) OR (processing_status = ? AND updated_at < ?))`,
		string(entities.WhiteboardProcessing), formatTime(now), id,
		string(entities.WhiteboardUploaded), string(entities.WhiteboardError),
		string(entities.WhiteboardProcessing), formatTime(staleBefore))
	if err != nil {
		r.logger.Error("Failed to claim whiteboard", zap.String("whiteboardID", id), zap.Error(err))
		return false, pkgerrors.NewDatabaseError("begin processing", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, pkgerrors.NewDatabaseError("begin processing", err)
	}
	return n == 1, nil
}

// CountByOwner returns how many whiteboards an account has uploaded
func (r *WhiteboardRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM whiteboards WHERE owner_id = ?`, ownerID).Scan(&n); err != nil {
		return 0, pkgerrors.NewDatabaseError("count whiteboards", err)
	}
	return n, nil
}

// Count returns the number of whiteboards
func (r *WhiteboardRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM whiteboards`).Scan(&n); err != nil {
		return 0, pkgerrors.NewDatabaseError("count whiteboards", err)
	}
	return n, nil
}
