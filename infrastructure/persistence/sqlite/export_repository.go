package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"scribe/application/ports"
	"scribe/domain/core/entities"
	"scribe/domain/core/valueobjects"
	pkgerrors "scribe/pkg/errors"

	"go.uber.org/zap"
)

const exportColumns = `id, project_id, owner_id, format, options, status, filename, file_path, file_size,
	download_count, last_downloaded, error_message, created_at, completed_at`

// ExportRepository implements ports.ExportRepository on SQLite
type ExportRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ ports.ExportRepository = (*ExportRepository)(nil)

// NewExportRepository creates a new ExportRepository
func NewExportRepository(db *sql.DB, logger *zap.Logger) *ExportRepository {
	return &ExportRepository{db: db, logger: logger}
}

func scanExport(row scanner) (*entities.Export, error) {
	var (
		e                           entities.Export
		format, options, status     string
		lastDownloaded, completedAt sql.NullString
		createdAt                   string
	)
	err := row.Scan(&e.ID, &e.ProjectID, &e.OwnerID, &format, &options, &status, &e.Filename, &e.FilePath, &e.FileSize,
		&e.DownloadCount, &lastDownloaded, &e.ErrorMessage, &createdAt, &completedAt)
	if err != nil {
		return nil, err
	}
	e.Format = valueobjects.ExportFormat(format)
	opts, err := valueobjects.ParseExportOptions(e.Format, []byte(options))
	if err != nil {
		return nil, fmt.Errorf("export %s has unreadable options: %w", e.ID, err)
	}
	e.Options = opts
	e.Status = valueobjects.ExportStatus(status)
	e.LastDownloaded = parseNullTime(lastDownloaded)
	e.CreatedAt = parseTime(createdAt)
	e.CompletedAt = parseNullTime(completedAt)
	return &e, nil
}

// Create persists a new export
func (r *ExportRepository) Create(ctx context.Context, e *entities.Export) error {
	opts, err := json.Marshal(e.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal export options: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO exports (`+exportColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProjectID, e.OwnerID, string(e.Format), string(opts), string(e.Status), e.Filename, e.FilePath, e.FileSize,
		e.DownloadCount, nullTime(e.LastDownloaded), e.ErrorMessage, formatTime(e.CreatedAt), nullTime(e.CompletedAt))
	if err != nil {
		r.logger.Error("Failed to create export", zap.String("exportID", e.ID), zap.Error(err))
		return pkgerrors.NewDatabaseError("create export", err)
	}
	return nil
}

// GetByID retrieves an export by its ID
func (r *ExportRepository) GetByID(ctx context.Context, id string) (*entities.Export, error) {
	e, err := scanExport(r.db.QueryRowContext(ctx, `SELECT `+exportColumns+` FROM exports WHERE id = ?`, id))
	if err != nil {
		return nil, notFoundOr(err, "export", "get export")
	}
	return e, nil
}

// ListByProject returns a project's exports, newest first
func (r *ExportRepository) ListByProject(ctx context.Context, projectID string) ([]*entities.Export, error) {
	return r.list(ctx, "list exports", `SELECT `+exportColumns+` FROM exports
		WHERE project_id = ? ORDER BY created_at DESC, rowid DESC`, projectID)
}

// ListCreatedBefore returns up to limit exports older than cutoff, oldest first
func (r *ExportRepository) ListCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*entities.Export, error) {
	return r.list(ctx, "list expired exports", `SELECT `+exportColumns+` FROM exports
		WHERE created_at < ? ORDER BY created_at, rowid LIMIT ?`, formatTime(cutoff), limitArg(limit))
}

func (r *ExportRepository) list(ctx context.Context, operation, query string, args ...any) ([]*entities.Export, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError(operation, err)
	}
	defer rows.Close()

	exports := []*entities.Export{}
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("scan export", err)
		}
		exports = append(exports, e)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError(operation, err)
	}
	return exports, nil
}

// Update overwrites an export
func (r *ExportRepository) Update(ctx context.Context, e *entities.Export) error {
	res, err := r.db.ExecContext(ctx, `UPDATE exports SET
			status = ?, file_path = ?, file_size = ?, download_count = ?, last_downloaded = ?,
			error_message = ?, completed_at = ?
		WHERE id = ?`,
		string(e.Status), e.FilePath, e.FileSize, e.DownloadCount, nullTime(e.LastDownloaded),
		e.ErrorMessage, nullTime(e.CompletedAt), e.ID)
	if err != nil {
		r.logger.Error("Failed to update export", zap.String("exportID", e.ID), zap.Error(err))
		return pkgerrors.NewDatabaseError("update export", err)
	}
	return requireRow(res, "export")
}

// RecordDownload increments the download counter and stamps the time
func (r *ExportRepository) RecordDownload(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE exports
		SET download_count = download_count + 1, last_downloaded = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return pkgerrors.NewDatabaseError("record download", err)
	}
	return requireRow(res, "export")
}

// Delete removes an export record
func (r *ExportRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM exports WHERE id = ?`, id)
	if err != nil {
		return pkgerrors.NewDatabaseError("delete export", err)
	}
	return requireRow(res, "export")
}

// CountByOwner returns how many exports an account has generated
func (r *ExportRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exports WHERE owner_id = ?`, ownerID).Scan(&n); err != nil {
		return 0, pkgerrors.NewDatabaseError("count exports", err)
	}
	return n, nil
}

// CountByFormat returns the number of exports per format
func (r *ExportRepository) CountByFormat(ctx context.Context) (map[valueobjects.ExportFormat]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT format, COUNT(*) FROM exports GROUP BY format`)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("count exports by format", err)
	}
	defer rows.Close()

	counts := make(map[valueobjects.ExportFormat]int)
	for rows.Next() {
		var (
			format string
			n      int
		)
		if err := rows.Scan(&format, &n); err != nil {
			return nil, pkgerrors.NewDatabaseError("scan export count", err)
		}
		counts[valueobjects.ExportFormat(format)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("count exports by format", err)
	}
	return counts, nil
}
