package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"scribe/application/ports"
	"scribe/application/services"
	"scribe/domain/core/entities"
	"scribe/domain/core/valueobjects"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

// operatorID is recorded as the admin on changes made from the CLI.
const operatorID = "scribectl"

// accountView is the printed form of an account; credentials stay out.
type accountView struct {
	ID                    string     `json:"id"`
	Email                 string     `json:"email"`
	Username              string     `json:"username"`
	IsAdmin               bool       `json:"is_admin"`
	SubscriptionType      string     `json:"subscription_type"`
	PaymentStatus         string     `json:"payment_status"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at,omitempty"`
	FreeUsesCount         int        `json:"free_uses_count"`
	CreatedAt             time.Time  `json:"created_at"`
}

func newAccountView(a *entities.Account) accountView {
	return accountView{
		ID:                    a.ID,
		Email:                 a.Email,
		Username:              a.Username,
		IsAdmin:               a.IsAdmin,
		SubscriptionType:      string(a.SubscriptionType),
		PaymentStatus:         string(a.PaymentStatus),
		SubscriptionExpiresAt: a.SubscriptionExpiresAt,
		FreeUsesCount:         a.FreeUsesCount,
		CreatedAt:             a.CreatedAt,
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "scribectl", version)
		},
	}
}

func grantAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grant-admin <email>",
		Short: "Give an account the admin role",
		Long: `Give the account registered with <email> the admin role. The user must
sign in again for the role to appear in their token.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := container.Services.Admin.GrantAdmin(commandContext(cmd), args[0])
			if err != nil {
				return fmt.Errorf("grant admin: %w", err)
			}
			return printResult(cmd.OutOrStdout(), newAccountView(account), func(w io.Writer) {
				fmt.Fprintf(w, "%s (%s) is now an admin\n", account.Email, account.ID)
			})
		},
	}
}

func setSubscriptionCmd() *cobra.Command {
	var (
		plan     string
		payment  string
		activate bool
	)
	cmd := &cobra.Command{
		Use:   "set-subscription <account-id>",
		Short: "Change an account's plan and payment status",
		Example: `  scribectl set-subscription 3f0c... --plan monthly --payment active --activate
  scribectl set-subscription 3f0c... --plan free --payment none`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := container.Services.Admin.SetSubscription(commandContext(cmd), operatorID, args[0], services.SubscriptionInput{
				Type:          plan,
				PaymentStatus: payment,
				Activate:      activate,
			})
			if err != nil {
				return fmt.Errorf("set subscription: %w", err)
			}
			return printResult(cmd.OutOrStdout(), newAccountView(account), func(w io.Writer) {
				fmt.Fprintf(w, "%s: %s, payment %s", account.Email, account.SubscriptionType, account.PaymentStatus)
				if account.SubscriptionExpiresAt != nil {
					fmt.Fprintf(w, ", expires %s", account.SubscriptionExpiresAt.Format(time.DateOnly))
				}
				fmt.Fprintln(w)
			})
		},
	}
	cmd.Flags().StringVar(&plan, "plan", "", "subscription type: free, monthly, semi_annual or annual")
	cmd.Flags().StringVar(&payment, "payment", "active", "payment status: none, pending, active or expired")
	cmd.Flags().BoolVar(&activate, "activate", false, "start a new plan period now")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

func usersCmd() *cobra.Command {
	var (
		query string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List accounts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, total, err := container.Services.Admin.ListAccounts(commandContext(cmd), ports.ListOptions{
				Limit: limit,
				Query: query,
			})
			if err != nil {
				return fmt.Errorf("list accounts: %w", err)
			}
			views := make([]accountView, 0, len(accounts))
			for _, a := range accounts {
				views = append(views, newAccountView(a))
			}
			out := map[string]any{"total": total, "accounts": views}
			return printResult(cmd.OutOrStdout(), out, func(w io.Writer) {
				for _, a := range accounts {
					role := ""
					if a.IsAdmin {
						role = " admin"
					}
					fmt.Fprintf(w, "%s  %-32s %-10s free uses %2d%s\n", a.ID, a.Email, a.SubscriptionType, a.FreeUsesCount, role)
				}
				fmt.Fprintf(w, "%d of %d accounts\n", len(accounts), total)
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "filter by email or username")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum accounts to print")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print account, content and revenue totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := container.Services.Admin.Stats(commandContext(cmd))
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			return printResult(cmd.OutOrStdout(), stats, func(w io.Writer) {
				fmt.Fprintf(w, "accounts             %d\n", stats.TotalAccounts)
				fmt.Fprintf(w, "active subscriptions %d\n", stats.ActiveSubscriptions)
				fmt.Fprintf(w, "pending payments     %d\n", stats.PendingPayments)
				fmt.Fprintf(w, "projects             %d\n", stats.TotalProjects)
				fmt.Fprintf(w, "whiteboards          %d\n", stats.TotalWhiteboards)
				formats := make([]string, 0, len(stats.ExportsByFormat))
				for f := range stats.ExportsByFormat {
					formats = append(formats, string(f))
				}
				sort.Strings(formats)
				for _, f := range formats {
					fmt.Fprintf(w, "exports %-12s %d\n", f, stats.ExportsByFormat[valueobjects.ExportFormat(f)])
				}
				fmt.Fprintf(w, "monthly revenue      %.2f\n", stats.EstimatedMonthlyIncome)
			})
		},
	}
}

func purgeExportsCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "purge-exports",
		Short: "Delete export artifacts older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				days = container.Config.Exports.RetentionDays
			}
			removed, err := container.Services.Exports.Purge(commandContext(cmd), time.Duration(days)*24*time.Hour)
			if err != nil {
				return fmt.Errorf("purge exports: %w", err)
			}
			out := map[string]int{"removed": removed, "retention_days": days}
			return printResult(cmd.OutOrStdout(), out, func(w io.Writer) {
				fmt.Fprintf(w, "removed %d exports older than %d days\n", removed, days)
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "retention in days (default: configured retention)")
	return cmd
}
