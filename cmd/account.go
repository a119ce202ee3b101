package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcclink/mcclink/internal/ads"
	"github.com/mcclink/mcclink/internal/config"
	"github.com/mcclink/mcclink/internal/oauth"
	"github.com/mcclink/mcclink/internal/store"
)

type accountAdmin interface {
	List(ctx context.Context, query store.ListQuery) (*store.ListResult, error)
	Delete(ctx context.Context, idOrMCC string) (*store.Account, error)
	FindByMCC(ctx context.Context, mcc string) (*store.Account, error)
}

type tokenRefresher interface {
	EnsureLiveToken(ctx context.Context, mcc string) (string, error)
}

type accountDeps struct {
	accounts  accountAdmin
	refresher tokenRefresher
	cleanup   func()
}

var openAccountDeps = defaultAccountDeps

var (
	accountSearch string
	accountPage   int
	accountLimit  int
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage linked MCC accounts",
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List linked accounts",
	RunE:  runAccountList,
}

var accountDeleteCmd = &cobra.Command{
	Use:   "delete <id-or-mcc>",
	Short: "Unlink an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountDelete,
}

var accountRefreshCmd = &cobra.Command{
	Use:   "refresh <mcc>",
	Short: "Refresh the access token for an MCC if it is stale",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountRefresh,
}

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountListCmd)
	accountCmd.AddCommand(accountDeleteCmd)
	accountCmd.AddCommand(accountRefreshCmd)

	accountListCmd.Flags().StringVar(&accountSearch, "search", "", "filter by mcc or mail substring")
	accountListCmd.Flags().IntVar(&accountPage, "page", 1, "result page")
	accountListCmd.Flags().IntVar(&accountLimit, "limit", 10, "page size")
}

func runAccountList(cmd *cobra.Command, _ []string) error {
	deps, err := openAccountDeps(context.Background())
	if err != nil {
		return err
	}
	defer deps.cleanup()

	result, err := deps.accounts.List(context.Background(), store.ListQuery{
		Search: accountSearch,
		Page:   accountPage,
		Limit:  accountLimit,
	})
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	if len(result.Accounts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No accounts found.")
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), "MCC\tMAIL\tGID\tEXPIRES\tCREATED_AT")
	for _, acct := range result.Accounts {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%s\n",
			ads.FormatID(acct.MCC),
			acct.Mail,
			acct.GID,
			formatExpiry(acct.ExpiredTime),
			acct.CreatedAt.UTC().Format(time.RFC3339),
		)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Page %d/%d (%d total)\n", result.Page, result.TotalPages, result.Total)
	return nil
}

func runAccountDelete(cmd *cobra.Command, args []string) error {
	key := strings.TrimSpace(args[0])
	if key == "" {
		return fmt.Errorf("empty account key")
	}

	deps, err := openAccountDeps(context.Background())
	if err != nil {
		return err
	}
	defer deps.cleanup()

	account, err := deps.accounts.Delete(context.Background(), key)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Account deleted: %s (%s)\n", ads.FormatID(account.MCC), account.Mail)
	return nil
}

func runAccountRefresh(cmd *cobra.Command, args []string) error {
	mcc := ads.CanonicalID(args[0])
	if mcc == "" {
		return fmt.Errorf("invalid mcc: %s", args[0])
	}

	deps, err := openAccountDeps(context.Background())
	if err != nil {
		return err
	}
	defer deps.cleanup()

	if _, err := deps.refresher.EnsureLiveToken(context.Background(), mcc); err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}

	account, err := deps.accounts.FindByMCC(context.Background(), mcc)
	if err != nil {
		return fmt.Errorf("reload account: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Token live for %s, expires %s\n",
		ads.FormatID(account.MCC), formatExpiry(account.ExpiredTime))
	return nil
}

func formatExpiry(expiredTime int64) string {
	if expiredTime <= 0 {
		return "-"
	}
	return time.UnixMilli(expiredTime).UTC().Format(time.RFC3339)
}

func defaultAccountDeps(ctx context.Context) (*accountDeps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if strings.TrimSpace(cfg.MongoURI) == "" {
		return nil, fmt.Errorf("missing required config: MONGODB_URI")
	}

	client, err := store.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	accounts := store.New(client.Database(cfg.MongoDatabase))
	links := oauth.NewClient(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.RedirectURL())

	return &accountDeps{
		accounts:  accounts,
		refresher: oauth.NewRefresher(accounts, links),
		cleanup: func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		},
	}, nil
}
