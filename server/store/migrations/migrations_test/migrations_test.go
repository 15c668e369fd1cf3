package migrations_test

import (
	"context"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/server/store"
	"github.com/siteguard/siteguard/server/store/migrations"
)

const inMemorySqliteConnectionString = store.DatabaseConnectionString("file::memory:?cache=shared&_foreign_keys=1&parseTime=true")

var migrationTestData = migrations.MigrationSet{
	{
		SequenceNumber: 1,
		Name:           "create_test_zones",
		UpSQL: `CREATE TABLE IF NOT EXISTS test_zones
				(
					zone_id text NOT NULL PRIMARY KEY,
					zone_name text NOT NULL,
					zone_created_at timestamp without time zone NOT NULL,
					zone_decommissioned_at timestamp without time zone
				);
				CREATE UNIQUE INDEX IF NOT EXISTS test_zones_name_unique_index ON test_zones(zone_name)
				WHERE zone_decommissioned_at IS NULL;`,
		DownSQL: `DROP TABLE test_zones;`,
	},
	{
		SequenceNumber: 2,
		Name:           "create_test_zone_links",
		UpSQL: `CREATE TABLE test_zone_links
				(
				   zone_link_id {{ .IntegerPrimaryKey}},
				   zone_link_parent_id text NOT NULL REFERENCES test_zones (zone_id) ON UPDATE NO ACTION ON DELETE CASCADE,
				   zone_link_child_id text NOT NULL REFERENCES test_zones (zone_id) ON UPDATE NO ACTION ON DELETE CASCADE
				);`,
		DownSQL: `DROP TABLE test_zone_links;`,
	},
	{
		SequenceNumber: 3,
		Name:           "alter_test_zone_links",
		UpSQL:          `ALTER TABLE test_zone_links ADD zone_link_label text;`,
		DownSQL:        `ALTER TABLE test_zone_links DROP COLUMN zone_link_label;`,
	},
}

func TestMigrations(t *testing.T) {
	logRegistry, err := logger.NewLogRegistry("")
	require.NoError(t, err)
	logFactory := logger.MakeLogrusLogFactoryStdOut(logRegistry)

	ctx := context.Background()
	migrationRunner := migrations.NewGolangMigrateRunner(migrationTestData, logFactory)

	// Run all up migrations, then repeat; the repeat is a no-op
	err = migrationRunner.Up(ctx, store.Sqlite, inMemorySqliteConnectionString)
	require.NoError(t, err)
	err = migrationRunner.Up(ctx, store.Sqlite, inMemorySqliteConnectionString)
	require.NoError(t, err)

	// Reverse all migrations and run them again
	err = migrationRunner.Down(ctx, store.Sqlite, inMemorySqliteConnectionString)
	require.NoError(t, err)
	err = migrationRunner.Up(ctx, store.Sqlite, inMemorySqliteConnectionString)
	require.NoError(t, err)

	// Walk back down the sequence one version at a time
	err = migrationRunner.Goto(ctx, store.Sqlite, inMemorySqliteConnectionString, 2)
	require.NoError(t, err)
	err = migrationRunner.Goto(ctx, store.Sqlite, inMemorySqliteConnectionString, 1)
	require.NoError(t, err)

	// Force the recorded version to 3 and then back to 1 to 'fix' the database,
	// after which a full down migration succeeds
	err = migrationRunner.Force(ctx, store.Sqlite, inMemorySqliteConnectionString, 3)
	require.NoError(t, err)
	err = migrationRunner.Force(ctx, store.Sqlite, inMemorySqliteConnectionString, 1)
	require.NoError(t, err)
	err = migrationRunner.Down(ctx, store.Sqlite, inMemorySqliteConnectionString)
	require.NoError(t, err)
}

func TestMigrationTemplating(t *testing.T) {
	t.Run("Sqlite", testMigrationTemplating(migrations.NewSqliteDialectTemplate()))
	t.Run("Postgres", testMigrationTemplating(migrations.NewPostgresDialectTemplate()))
}

func testMigrationTemplating(dialectTemplate *migrations.DialectTemplate) func(t *testing.T) {
	return func(t *testing.T) {
		logRegistry, err := logger.NewLogRegistry("")
		require.NoError(t, err)
		logFactory := logger.MakeLogrusLogFactoryStdOut(logRegistry)

		migrationRunner := migrations.NewSiteGuardMigrateRunner(logFactory)

		inMemoryFS, err := migrationRunner.ProduceMigrationFiles(dialectTemplate)
		require.NoError(t, err)

		// Every produced file must be fully templated
		err = fs.WalkDir(inMemoryFS, ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			t.Logf("Produced migration file: %s", path)
			contents, err := fs.ReadFile(inMemoryFS, path)
			require.NoError(t, err)
			require.NotContains(t, string(contents), "{{", "unexpanded template in %s", path)
			return nil
		})
		require.NoError(t, err)

		// The grant uniqueness index coalesces nullable columns to sentinels.
		// grant_expires_at is a timestamp column, and postgres refuses to coerce
		// an empty string literal to a timestamp, so its sentinel must itself be
		// a valid timestamp or CREATE INDEX fails and the migration can never
		// apply. The text column sentinel stays an empty string.
		contents, err := fs.ReadFile(inMemoryFS, "migrations/000004_create_grants.up.sql")
		require.NoError(t, err)
		grantsSQL := string(contents)
		require.Contains(t, grantsSQL, "coalesce(grant_expires_at, '1970-01-01 00:00:00')")
		require.NotContains(t, grantsSQL, "coalesce(grant_expires_at, '')")
		require.Contains(t, grantsSQL, "coalesce(grant_fields, '')")
	}
}

// serverMigrationsConnectionString names its in-memory database so the full
// server migration set does not share state with migrationTestData above.
const serverMigrationsConnectionString = store.DatabaseConnectionString("file:server_migrations_test?mode=memory&cache=shared&_foreign_keys=1&parseTime=true")

// TestServerMigrations runs the full server migration set up, down and up
// again against an in-memory sqlite database.
func TestServerMigrations(t *testing.T) {
	logRegistry, err := logger.NewLogRegistry("")
	require.NoError(t, err)
	logFactory := logger.MakeLogrusLogFactoryStdOut(logRegistry)

	ctx := context.Background()
	migrationRunner := migrations.NewSiteGuardMigrateRunner(logFactory)

	err = migrationRunner.Up(ctx, store.Sqlite, serverMigrationsConnectionString)
	require.NoError(t, err)
	err = migrationRunner.Up(ctx, store.Sqlite, serverMigrationsConnectionString)
	require.NoError(t, err)
	err = migrationRunner.Down(ctx, store.Sqlite, serverMigrationsConnectionString)
	require.NoError(t, err)
	err = migrationRunner.Up(ctx, store.Sqlite, serverMigrationsConnectionString)
	require.NoError(t, err)
}
