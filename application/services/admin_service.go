package services

import (
	"context"
	"math"
	"strings"

	"scribe/application/ports"
	"scribe/domain/core/entities"
	"scribe/domain/core/valueobjects"
	"scribe/domain/ledger"

	"go.uber.org/zap"
)

const statsPageSize = 200

// SubscriptionInput is the administrator's subscription edit.
type SubscriptionInput struct {
	Type          string
	PaymentStatus string
	Activate      bool
}

// Stats is the admin panel overview.
type Stats struct {
	TotalAccounts          int                                   `json:"total_accounts"`
	ActiveSubscriptions    int                                   `json:"active_subscriptions"`
	SubscriptionsByType    map[valueobjects.SubscriptionType]int `json:"subscriptions_by_type"`
	PendingPayments        int                                   `json:"pending_payments"`
	TotalProjects          int                                   `json:"total_projects"`
	TotalWhiteboards       int                                   `json:"total_whiteboards"`
	ExportsByFormat        map[valueobjects.ExportFormat]int     `json:"exports_by_format"`
	EstimatedMonthlyIncome float64                               `json:"estimated_monthly_revenue"`
}

// AdminService backs the admin panel and the admin CLI.
type AdminService struct {
	accounts    ports.AccountRepository
	projects    ports.ProjectRepository
	whiteboards ports.WhiteboardRepository
	exports     ports.ExportRepository
	ledger      *LedgerService
	clock       Clock
	logger      *zap.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(
	accounts ports.AccountRepository,
	projects ports.ProjectRepository,
	whiteboards ports.WhiteboardRepository,
	exports ports.ExportRepository,
	ledger *LedgerService,
	clock Clock,
	logger *zap.Logger,
) *AdminService {
	if clock == nil {
		clock = SystemClock
	}
	return &AdminService{
		accounts:    accounts,
		projects:    projects,
		whiteboards: whiteboards,
		exports:     exports,
		ledger:      ledger,
		clock:       clock,
		logger:      logger,
	}
}

// ListAccounts returns a page of accounts, newest first.
func (s *AdminService) ListAccounts(ctx context.Context, opts ports.ListOptions) ([]*entities.Account, int, error) {
	return s.accounts.List(ctx, opts)
}

// SetSubscription validates and applies a manual subscription edit.
func (s *AdminService) SetSubscription(ctx context.Context, adminID, accountID string, in SubscriptionInput) (*entities.Account, error) {
	t, err := valueobjects.ParseSubscriptionType(in.Type)
	if err != nil {
		return nil, err
	}
	ps, err := valueobjects.ParsePaymentStatus(in.PaymentStatus)
	if err != nil {
		return nil, err
	}
	return s.ledger.SetSubscription(ctx, adminID, accountID, ledger.SubscriptionChange{
		Type:          t,
		PaymentStatus: ps,
		Activate:      in.Activate,
	})
}

// GrantAdmin gives the account with email the admin role.
func (s *AdminService) GrantAdmin(ctx context.Context, email string) (*entities.Account, error) {
	account, err := s.accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if account.IsAdmin {
		return account, nil
	}
	account.IsAdmin = true
	account.UpdatedAt = s.clock()
	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, err
	}
	s.logger.Info("Admin role granted", zap.String("accountID", account.ID))
	return account, nil
}

// Stats aggregates accounts, content and estimated revenue.
func (s *AdminService) Stats(ctx context.Context) (*Stats, error) {
	now := s.clock()
	stats := &Stats{SubscriptionsByType: map[valueobjects.SubscriptionType]int{}}

	revenue := 0.0
	for offset := 0; ; offset += statsPageSize {
		page, total, err := s.accounts.List(ctx, ports.ListOptions{Offset: offset, Limit: statsPageSize})
		if err != nil {
			return nil, err
		}
		stats.TotalAccounts = total
		for _, a := range page {
			if a.PaymentStatus == valueobjects.PaymentPending {
				stats.PendingPayments++
			}
			if !a.HasActiveSubscription(now) {
				continue
			}
			stats.ActiveSubscriptions++
			stats.SubscriptionsByType[a.SubscriptionType]++
			if plan, ok := valueobjects.PlanFor(a.SubscriptionType); ok {
				revenue += plan.MonthlyPrice()
			}
		}
		if len(page) < statsPageSize {
			break
		}
	}
	stats.EstimatedMonthlyIncome = math.Round(revenue*100) / 100

	var err error
	if stats.TotalProjects, err = s.projects.Count(ctx); err != nil {
		return nil, err
	}
	if stats.TotalWhiteboards, err = s.whiteboards.Count(ctx); err != nil {
		return nil, err
	}
	if stats.ExportsByFormat, err = s.exports.CountByFormat(ctx); err != nil {
		return nil, err
	}
	return stats, nil
}
