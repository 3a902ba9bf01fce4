package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"scribe/application/ports"
	"scribe/domain/core/entities"
	pkgerrors "scribe/pkg/errors"

	"go.uber.org/zap"
)

const projectColumns = `id, owner_id, title, description, status, share_token, created_at, updated_at`

// ProjectRepository implements ports.ProjectRepository on SQLite
type ProjectRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ ports.ProjectRepository = (*ProjectRepository)(nil)

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *sql.DB, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{db: db, logger: logger}
}

func scanProject(row scanner) (*entities.Project, error) {
	var (
		p                    entities.Project
		status               string
		token                sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &status, &token, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.Status = entities.ProjectStatus(status)
	p.ShareToken = token.String
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// Create persists a new project
func (r *ProjectRepository) Create(ctx context.Context, p *entities.Project) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerID, p.Title, p.Description, string(p.Status), nullString(p.ShareToken),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		r.logger.Error("Failed to create project", zap.String("projectID", p.ID), zap.Error(err))
		return pkgerrors.NewDatabaseError("create project", err)
	}
	return nil
}

// GetByID retrieves a project by its ID
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*entities.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if err != nil {
		return nil, notFoundOr(err, "project", "get project")
	}
	return p, nil
}

// GetByShareToken retrieves a publicly shared project
func (r *ProjectRepository) GetByShareToken(ctx context.Context, token string) (*entities.Project, error) {
	if token == "" {
		return nil, pkgerrors.NewNotFoundError("project")
	}
	p, err := scanProject(r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE share_token = ?`, token))
	if err != nil {
		return nil, notFoundOr(err, "project", "get shared project")
	}
	return p, nil
}

// ListByOwner pages the owner's projects, most recently updated first.
func (r *ProjectRepository) ListByOwner(ctx context.Context, ownerID string, opts ports.ListOptions) ([]*entities.Project, int, error) {
	pattern := likePattern(strings.TrimSpace(opts.Query))
	const where = `WHERE owner_id = ? AND (? = '' OR title LIKE ?)`

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects `+where, ownerID, pattern, pattern).Scan(&total); err != nil {
		return nil, 0, pkgerrors.NewDatabaseError("count projects", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects `+where+`
		ORDER BY updated_at DESC, id DESC LIMIT ? OFFSET ?`,
		ownerID, pattern, pattern, limitArg(opts.Limit), opts.Offset)
	if err != nil {
		return nil, 0, pkgerrors.NewDatabaseError("list projects", err)
	}
	defer rows.Close()

	projects := []*entities.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, pkgerrors.NewDatabaseError("scan project", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, pkgerrors.NewDatabaseError("list projects", err)
	}
	return projects, total, nil
}

// Update overwrites a project
func (r *ProjectRepository) Update(ctx context.Context, p *entities.Project) error {
	res, err := r.db.ExecContext(ctx, `UPDATE projects
		SET title = ?, description = ?, status = ?, share_token = ?, updated_at = ?
		WHERE id = ?`,
		p.Title, p.Description, string(p.Status), nullString(p.ShareToken), formatTime(p.UpdatedAt), p.ID)
	if err != nil {
		r.logger.Error("Failed to update project", zap.String("projectID", p.ID), zap.Error(err))
		return pkgerrors.NewDatabaseError("update project", err)
	}
	return requireRow(res, "project")
}

// Delete removes the project; whiteboards and exports go with it through
// ON DELETE CASCADE.
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete project", zap.String("projectID", id), zap.Error(err))
		return pkgerrors.NewDatabaseError("delete project", err)
	}
	return requireRow(res, "project")
}

// Count returns the number of projects
func (r *ProjectRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&n); err != nil {
		return 0, pkgerrors.NewDatabaseError("count projects", err)
	}
	return n, nil
}
