package dump

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"

	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/common/models"
	"github.com/siteguard/siteguard/server/cmd/siteguard-tools/cli"
	"github.com/siteguard/siteguard/server/cmd/siteguard-tools/commands"
	"github.com/siteguard/siteguard/server/store"
	"github.com/siteguard/siteguard/server/store/grants"
	"github.com/siteguard/siteguard/server/store/groups"
	"github.com/siteguard/siteguard/server/store/users"
)

const defaultSQLiteConnectionString = "file:siteguard.db?cache=shared"

func init() {
	dumpRootCmd.PersistentFlags().StringVar(
		&dumpCmdConfig.databaseDriver,
		"driver",
		string(store.Sqlite),
		"The Database Driver to use for fetching data (i.e sqlite3|postgres)")
	dumpRootCmd.PersistentFlags().StringVar(
		&dumpCmdConfig.databaseConnectionString,
		"connection",
		defaultSQLiteConnectionString,
		"The connection string for the database to use for fetching data")

	commands.RootCmd.AddCommand(dumpRootCmd)
	dumpRootCmd.AddCommand(dumpAllUsersCmd)
	dumpRootCmd.AddCommand(dumpUserCmd)
	dumpRootCmd.AddCommand(dumpGroupCmd)
}

var dumpCmdConfig = struct {
	databaseConfig           store.DatabaseConfig
	databaseDriver           string
	databaseConnectionString string
	logFactory               logger.LogFactory
	db                       *store.DB
	dbCleanup                func()
	userStore                store.UserStore
	groupStore               store.GroupStore
	grantStore               store.GrantStore
}{}

var dumpRootCmd = &cobra.Command{
	Use:   "dump (command)",
	Short: "Dumps the data of all objects of the specified type from the database",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dumpCmdConfig.databaseConfig = store.DatabaseConfig{
			ConnectionString:   store.DatabaseConnectionString(dumpCmdConfig.databaseConnectionString),
			Driver:             store.DBDriver(dumpCmdConfig.databaseDriver),
			MaxIdleConnections: store.DefaultDatabaseMaxIdleConnections,
			MaxOpenConnections: store.DefaultDatabaseMaxOpenConnections,
		}

		// stores need a log factory; use a very plain log format
		logRegistry, err := logger.NewLogRegistry("")
		if err != nil {
			return err
		}
		logFactory := logger.MakeLogrusLogFactoryStdOutPlain(logRegistry)
		dumpCmdConfig.logFactory = logFactory

		// open the database but do not perform migrations
		db, cleanup, err := store.NewDatabase(context.Background(), dumpCmdConfig.databaseConfig, nil)
		if err != nil {
			return fmt.Errorf("error opening %s database for dump: %w", dumpCmdConfig.databaseConfig.Driver, err)
		}
		dumpCmdConfig.db = db
		dumpCmdConfig.dbCleanup = cleanup

		dumpCmdConfig.userStore = users.NewStore(db, logFactory)
		dumpCmdConfig.groupStore = groups.NewStore(db, logFactory)
		dumpCmdConfig.grantStore = grants.NewStore(db, logFactory, clock.New())

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dumpCmdConfig.dbCleanup != nil {
			dumpCmdConfig.dbCleanup()
			dumpCmdConfig.dbCleanup = nil
		}
	},
}

var dumpAllUsersCmd = &cobra.Command{
	Use:           "all-users",
	Short:         "Dumps a list of all user accounts in the database",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		return dumpCmdConfig.db.WithTx(ctx, nil, func(tx *store.Tx) error {
			cli.Stdout.Printf("\nALL USERS\n\n")
			count := 0
			opts := models.ListOptions{Limit: models.MaxListLimit}
			for {
				users, err := dumpCmdConfig.userStore.List(ctx, tx, opts)
				if err != nil {
					return fmt.Errorf("error reading list of all users: %w", err)
				}
				for _, user := range users {
					count++
					cli.Stdout.Printf("%d: Username '%s', admin %v, disabled %v, ID '%s'\n",
						count, user.Username, user.IsAdmin, user.Disabled, user.ID)
				}
				if len(users) < opts.Limit {
					break
				}
				opts.Offset += opts.Limit
			}
			cli.Stdout.Printf("\n")
			return nil
		})
	},
}

var dumpUserCmd = &cobra.Command{
	Use:           "user username",
	Short:         "Dumps the user account with the specified username, together with the grants it holds directly",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		username := args[0]
		if len(username) == 0 {
			return fmt.Errorf("error: username must be specified")
		}

		user, err := dumpCmdConfig.userStore.ReadByUsername(ctx, nil, username)
		if err != nil {
			return fmt.Errorf("error reading user with username '%s': %w", username, err)
		}

		cli.Stdout.Printf("User '%s':\n", username)
		cli.Stdout.Printf("  ID: %s", user.ID)
		cli.Stdout.Printf("  Created At: %s", user.CreatedAt.String())
		cli.Stdout.Printf("  Updated At: %s", user.UpdatedAt.String())
		cli.Stdout.Printf("  Email: %s", user.Email)
		cli.Stdout.Printf("  Display Name: %s", user.DisplayName())
		cli.Stdout.Printf("  Admin: %v", user.IsAdmin)
		cli.Stdout.Printf("  Disabled: %v", user.Disabled)

		return dumpGrantsForGrantee(ctx, models.UserGranteeType, user.ID.ResourceID)
	},
}

var dumpGroupCmd = &cobra.Command{
	Use:           "group name",
	Short:         "Dumps the group with the specified name, together with its members and the grants it holds",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		name := args[0]
		if len(name) == 0 {
			return fmt.Errorf("error: group name must be specified")
		}

		group, err := dumpCmdConfig.groupStore.ReadByName(ctx, nil, name)
		if err != nil {
			return fmt.Errorf("error reading group with name '%s': %w", name, err)
		}

		cli.Stdout.Printf("Group '%s':\n", name)
		cli.Stdout.Printf("  ID: %s", group.ID)
		cli.Stdout.Printf("  Created At: %s", group.CreatedAt.String())
		if group.Description != "" {
			cli.Stdout.Printf("  Description: %s", group.Description)
		}

		memberships, err := dumpCmdConfig.grantStore.ListMembersOfGroup(ctx, nil, group.ID)
		if err != nil {
			return fmt.Errorf("error reading members of group '%s': %w", name, err)
		}
		cli.Stdout.Printf("\nGroup has %d member(s):\n", len(memberships))
		for i, membership := range memberships {
			line := fmt.Sprintf("  Member %d: %s", i+1, granteeToString(ctx, membership.GranteeID))
			if membership.ExpiresAt != nil {
				line += fmt.Sprintf(" (expires %s)", membership.ExpiresAt.String())
			}
			cli.Stdout.Print(line)
		}

		return dumpGrantsForGrantee(ctx, models.GroupGranteeType, group.ID.ResourceID)
	},
}

func dumpGrantsForGrantee(ctx context.Context, granteeType models.GranteeType, granteeID models.ResourceID) error {
	cli.Stdout.Printf("\nGrants held:\n")
	count := 0
	opts := models.ListOptions{Limit: models.MaxListLimit}
	for {
		grants, err := dumpCmdConfig.grantStore.ListByGrantee(ctx, nil, granteeType, granteeID, opts)
		if err != nil {
			return fmt.Errorf("error reading grants for %s: %w", granteeID, err)
		}
		for _, grant := range grants {
			count++
			line := fmt.Sprintf("  Grant %d: %s %s on %s (inherit %v)",
				count, grant.Effect, grant.Permission, grant.ResourceID, grant.Inherit)
			if grant.Fields != nil {
				line += fmt.Sprintf(", fields %v", grant.Fields)
			}
			if grant.ExpiresAt != nil {
				line += fmt.Sprintf(", expires %s", grant.ExpiresAt.String())
			}
			cli.Stdout.Print(line)
		}
		if len(grants) < opts.Limit {
			break
		}
		opts.Offset += opts.Limit
	}
	if count == 0 {
		cli.Stdout.Printf("  (none)")
	}
	return nil
}

func granteeToString(ctx context.Context, granteeID models.ResourceID) string {
	if granteeID.Kind() != models.UserResourceKind {
		return granteeID.String()
	}
	user, err := dumpCmdConfig.userStore.Read(ctx, nil, models.UserIDFromResourceID(granteeID))
	if err != nil {
		return fmt.Sprintf("%s (error reading user: %s)", granteeID, err)
	}
	return fmt.Sprintf("User '%s' (ID '%s')", user.Username, user.ID)
}
