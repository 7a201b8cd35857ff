// Command admin manages TDH accounts from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"tdh/internal/bootstrap"
	"tdh/internal/config"
	"tdh/internal/models"
	"tdh/internal/notifications"
	"tdh/internal/repository"
	"tdh/internal/service"
	"tdh/internal/storage"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type app struct {
	cfg      *config.Config
	accounts *service.AccountService
	actingAs string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "admin",
		Short: "Manage TDH community accounts",
		Long: `Operator tooling for the account approval workflow.

Examples:
  admin create-admin --username root --password 's3cret-passphrase'
  admin list-pending
  admin approve 42 --as root
  admin reject 43 --as root`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.actingAs, "as", "", "administrator performing the action (defaults to ADMIN_USERNAME)")

	root.AddCommand(
		a.createAdminCommand(),
		a.listPendingCommand(),
		a.transitionCommand("approve", models.StatusApproved, "Approve a pending account"),
		a.transitionCommand("reject", models.StatusRejected, "Reject an account, deleting it and all its content"),
	)
	return root
}

func (a *app) init(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SkipAdmin: true})
	if err != nil {
		return err
	}
	store, err := storage.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("media store: %w", err)
	}

	a.cfg = cfg
	a.accounts = newAccountService(cfg, db, rdb, store)
	if a.actingAs == "" {
		a.actingAs = cfg.AdminUsername
	}
	return nil
}

func newAccountService(cfg *config.Config, db *gorm.DB, rdb *redis.Client, store storage.Store) *service.AccountService {
	return service.NewAccountService(
		repository.NewUserRepository(db),
		repository.NewPostRepository(db),
		&service.MediaUploader{Store: store, MaxBytes: int64(cfg.MediaMaxUploadSizeMB) << 20},
		publisherFor(rdb),
	)
}

// publisherFor lets approvals made here reach members connected to the API servers.
func publisherFor(rdb *redis.Client) notifications.Publisher {
	if rdb == nil {
		return nil
	}
	return notifications.NewNotifier(rdb)
}

// requester resolves the administrator on whose behalf a command runs.
func (a *app) requester(ctx context.Context) (*models.User, error) {
	if a.actingAs == "" {
		return nil, fmt.Errorf("no administrator given: pass --as or set ADMIN_USERNAME")
	}
	return a.accounts.FindByUsername(ctx, a.actingAs)
}

func (a *app) createAdminCommand() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator, or promote an existing account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := a.accounts.EnsureAdmin(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			cmd.Printf("administrator %s (ID: %d) is ready\n", user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "account username")
	cmd.Flags().StringVar(&password, "password", "", "password; required for new accounts")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func (a *app) listPendingCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list-pending",
		Short: "List accounts awaiting approval",
		RunE: func(cmd *cobra.Command, _ []string) error {
			admin, err := a.requester(cmd.Context())
			if err != nil {
				return err
			}
			users, err := a.accounts.ListPending(cmd.Context(), admin, service.Page{Limit: limit})
			if err != nil {
				return err
			}
			if len(users) == 0 {
				cmd.Println("no accounts are waiting for approval")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tREGISTERED")
			for _, u := range users {
				email := ""
				if u.Email != nil {
					email = *u.Email
				}
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", u.ID, u.Username, email, u.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", service.MaxPageSize, "maximum accounts to list")
	return cmd
}

func (a *app) transitionCommand(use string, target models.AccountStatus, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <account-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid account id %q", args[0])
			}
			admin, err := a.requester(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.accounts.TransitionStatus(cmd.Context(), admin, uint(id), target); err != nil {
				return err
			}
			cmd.Printf("account %d: %s\n", id, target)
			return nil
		},
	}
}
