package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/cmd/siteguard-tools/cli"
	"github.com/siteguard/siteguard/server/cmd/siteguard-tools/commands"
	"github.com/siteguard/siteguard/server/store"
	"github.com/siteguard/siteguard/server/store/users"
)

const defaultSQLiteConnectionString = "file:siteguard.db?cache=shared"

func init() {
	adminRootCmd.PersistentFlags().StringVar(
		&adminCmdConfig.databaseDriver,
		"driver",
		string(store.Sqlite),
		"The Database Driver to use for fetching and writing data (i.e sqlite3|postgres)")
	adminRootCmd.PersistentFlags().StringVar(
		&adminCmdConfig.databaseConnectionString,
		"connection",
		defaultSQLiteConnectionString,
		"The connection string for the database to use for fetching and writing data")

	commands.RootCmd.AddCommand(adminRootCmd)
	adminRootCmd.AddCommand(adminGrantCmd)
	adminRootCmd.AddCommand(adminRevokeCmd)
}

var adminCmdConfig = struct {
	databaseConfig           store.DatabaseConfig
	databaseDriver           string
	databaseConnectionString string
	logFactory               logger.LogFactory
	db                       *store.DB
	dbCleanup                func()
	userStore                store.UserStore
}{}

var adminRootCmd = &cobra.Command{
	Use:   "superuser grant|revoke username",
	Short: "Grants or revokes the platform superuser flag for a user account.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		adminCmdConfig.databaseConfig = store.DatabaseConfig{
			ConnectionString:   store.DatabaseConnectionString(adminCmdConfig.databaseConnectionString),
			Driver:             store.DBDriver(adminCmdConfig.databaseDriver),
			MaxIdleConnections: store.DefaultDatabaseMaxIdleConnections,
			MaxOpenConnections: store.DefaultDatabaseMaxOpenConnections,
		}

		// stores need a log factory; use a very plain log format
		logRegistry, err := logger.NewLogRegistry("")
		if err != nil {
			return err
		}
		logFactory := logger.MakeLogrusLogFactoryStdOutPlain(logRegistry)
		adminCmdConfig.logFactory = logFactory

		// open the database but do not perform migrations
		db, cleanup, err := store.NewDatabase(context.Background(), adminCmdConfig.databaseConfig, nil)
		if err != nil {
			return fmt.Errorf("error opening %s database: %w", adminCmdConfig.databaseConfig.Driver, err)
		}
		adminCmdConfig.db = db
		adminCmdConfig.dbCleanup = cleanup
		adminCmdConfig.userStore = users.NewStore(db, logFactory)

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if adminCmdConfig.dbCleanup != nil {
			adminCmdConfig.dbCleanup()
			adminCmdConfig.dbCleanup = nil
		}
	},
}

var adminGrantCmd = &cobra.Command{
	Use:           "grant username",
	Short:         "Marks the specified user account as a platform superuser, bypassing all permission checks.",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSuperuser(args[0], true)
	},
}

var adminRevokeCmd = &cobra.Command{
	Use:           "revoke username",
	Short:         "Removes the platform superuser flag from the specified user account. Grants held by the account remain in place.",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSuperuser(args[0], false)
	},
}

func setSuperuser(username string, isAdmin bool) error {
	ctx := context.Background()
	return adminCmdConfig.db.WithTx(ctx, nil, func(tx *store.Tx) error {
		user, err := adminCmdConfig.userStore.ReadByUsername(ctx, tx, username)
		if err != nil {
			return fmt.Errorf("error: unable to find user with username '%s': %w", username, err)
		}
		if user.IsAdmin == isAdmin {
			cli.Stdout.Printf("No change: user '%s' already has is_admin=%v.\n", username, isAdmin)
			return nil
		}
		user.IsAdmin = isAdmin
		user.UpdatedAt = models.NewTime(time.Now())
		err = adminCmdConfig.userStore.Update(ctx, tx, user)
		if err != nil {
			return fmt.Errorf("error updating user '%s': %w", username, err)
		}
		if isAdmin {
			cli.Stdout.Printf("Granted: user '%s' is now a superuser.\n", username)
		} else {
			cli.Stdout.Printf("Revoked: user '%s' is no longer a superuser.\n", username)
		}
		return nil
	})
}
