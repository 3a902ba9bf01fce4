package ports

import (
	"context"
	"time"

	"scribe/domain/core/entities"
	"scribe/domain/core/valueobjects"
	"scribe/domain/ledger"
)

// ListOptions pages and filters a listing.
type ListOptions struct {
	Offset int
	Limit  int
	// Query filters by a case-insensitive substring of the title or email.
	Query string
}

// AccountRepository defines the interface for account persistence
type AccountRepository interface {
	// Create persists a new account; a duplicate email is a conflict
	Create(ctx context.Context, account *entities.Account) error

	// GetByID retrieves an account by its ID
	GetByID(ctx context.Context, id string) (*entities.Account, error)

	// GetByEmail retrieves an account by its lowercased email
	GetByEmail(ctx context.Context, email string) (*entities.Account, error)

	// UsernameTaken reports whether another account already uses username
	UsernameTaken(ctx context.Context, username string) (bool, error)

	// Update overwrites the profile and subscription fields
	Update(ctx context.Context, account *entities.Account) error

	// List returns a page of accounts, newest first, and the total count
	List(ctx context.Context, opts ListOptions) ([]*entities.Account, int, error)

	// Delete removes an account record
	Delete(ctx context.Context, id string) error
}

// UsageLedger applies the usage rules inside the store so that the check and
// the increment cannot interleave with another request.
type UsageLedger interface {
	// Consume authorizes one metered use and records it when allowed
	Consume(ctx context.Context, accountID string, kind valueobjects.UsageKind, now time.Time) (ledger.Decision, error)

	// Record increments the counter of a kind that is never metered
	Record(ctx context.Context, accountID string, kind valueobjects.UsageKind, now time.Time) error
}

// ProjectRepository defines the interface for project persistence
type ProjectRepository interface {
	// Create persists a new project
	Create(ctx context.Context, project *entities.Project) error

	// GetByID retrieves a project by its ID
	GetByID(ctx context.Context, id string) (*entities.Project, error)

	// GetByShareToken retrieves a publicly shared project
	GetByShareToken(ctx context.Context, token string) (*entities.Project, error)

	// ListByOwner returns a page of an account's projects, most recently updated first
	ListByOwner(ctx context.Context, ownerID string, opts ListOptions) ([]*entities.Project, int, error)

	// Update overwrites a project
	Update(ctx context.Context, project *entities.Project) error

	// Delete removes a project together with its whiteboards and exports
	Delete(ctx context.Context, id string) error

	// Count returns the number of projects in the store
	Count(ctx context.Context) (int, error)
}

// WhiteboardRepository defines the interface for whiteboard persistence
type WhiteboardRepository interface {
	// Create persists a new whiteboard
	Create(ctx context.Context, whiteboard *entities.Whiteboard) error

	// GetByID retrieves a whiteboard by its ID
	GetByID(ctx context.Context, id string) (*entities.Whiteboard, error)

	// ListByProject returns a project's whiteboards in creation order
	ListByProject(ctx context.Context, projectID string) ([]*entities.Whiteboard, error)

	// Update overwrites a whiteboard
	Update(ctx context.Context, whiteboard *entities.Whiteboard) error

	// BeginProcessing moves the whiteboard to processing in one conditional
	// write. It succeeds only from uploaded or error, or from a processing run
	// last updated before staleBefore, and reports false otherwise.
	BeginProcessing(ctx context.Context, id string, now, staleBefore time.Time) (bool, error)

	// CountByOwner returns how many whiteboards an account has uploaded
	CountByOwner(ctx context.Context, ownerID string) (int, error)

	// Count returns the number of whiteboards in the store
	Count(ctx context.Context) (int, error)
}

// ExportRepository defines the interface for export persistence
type ExportRepository interface {
	// Create persists a new export
	Create(ctx context.Context, export *entities.Export) error

	// GetByID retrieves an export by its ID
	GetByID(ctx context.Context, id string) (*entities.Export, error)

	// ListByProject returns a project's exports, newest first
	ListByProject(ctx context.Context, projectID string) ([]*entities.Export, error)

	// Update overwrites an export
	Update(ctx context.Context, export *entities.Export) error

	// RecordDownload increments the download counter and stamps the time
	RecordDownload(ctx context.Context, id string, at time.Time) error

	// ListCreatedBefore returns up to limit exports older than cutoff
	ListCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*entities.Export, error)

	// Delete removes an export record
	Delete(ctx context.Context, id string) error

	// CountByOwner returns how many exports an account has generated
	CountByOwner(ctx context.Context, ownerID string) (int, error)

	// CountByFormat returns the number of exports per format
	CountByFormat(ctx context.Context) (map[valueobjects.ExportFormat]int, error)
}
