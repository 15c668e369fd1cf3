package migrations

// DialectTemplate is used as the templating control for differing SQL syntax between our supported databases
type DialectTemplate struct {
	IntegerPrimaryKey string
}

// MigrationSet provides a set of migrations that can be applied to a database.
type MigrationSet []MigrationData

// MigrationData provides the data for a single migration, including Up and Down SQL.
// Templated values are supported and will be substituted for database-specific values
// before the migrations are applied.
type MigrationData struct {
	SequenceNumber int64
	Name           string
	UpSQL          string
	DownSQL        string
}

// SiteGuardServerMigrations is the set of migrations to set up the database for the SiteGuard server.
var SiteGuardServerMigrations = MigrationSet{
	{
		SequenceNumber: 1,
		Name:           "create_users",
		UpSQL: `CREATE TABLE IF NOT EXISTS users
				(
					user_id text NOT NULL PRIMARY KEY,
					user_created_at timestamp without time zone NOT NULL,
					user_updated_at timestamp without time zone NOT NULL,
					user_username text NOT NULL,
					user_email text NOT NULL,
					user_given_name text NOT NULL,
					user_family_name text NOT NULL,
					user_password_hash text NOT NULL,
					user_is_admin bool NOT NULL,
					user_disabled bool NOT NULL
				);
				CREATE UNIQUE INDEX IF NOT EXISTS users_username_unique_index ON users(user_username);
				CREATE UNIQUE INDEX IF NOT EXISTS users_created_at_id_desc_unique_index ON users(
					user_created_at DESC,
					user_id DESC);`,
		DownSQL: `DROP TABLE users;`,
	},
	{
		SequenceNumber: 2,
		Name:           "create_groups",
		UpSQL: `CREATE TABLE IF NOT EXISTS groups
				(
					group_id text NOT NULL PRIMARY KEY,
					group_created_at timestamp without time zone NOT NULL,
					group_updated_at timestamp without time zone NOT NULL,
					group_name text NOT NULL,
					group_description text NOT NULL
				);
				CREATE UNIQUE INDEX IF NOT EXISTS groups_name_unique_index ON groups(group_name);
				CREATE UNIQUE INDEX IF NOT EXISTS groups_created_at_id_desc_unique_index ON groups(
					group_created_at DESC,
					group_id DESC);`,
		DownSQL: `DROP TABLE groups;`,
	},
	{
		SequenceNumber: 3,
		Name:           "create_resources",
		UpSQL: `CREATE TABLE IF NOT EXISTS resources
				(
					resource_id text NOT NULL PRIMARY KEY,
					resource_created_at timestamp without time zone NOT NULL,
					resource_kind text NOT NULL,
					resource_name text NOT NULL,
					resource_parent_id text REFERENCES resources (resource_id) ON UPDATE NO ACTION ON DELETE NO ACTION
				);
				CREATE INDEX IF NOT EXISTS resources_parent_id_index ON resources(resource_parent_id);
				CREATE INDEX IF NOT EXISTS resources_kind_index ON resources(resource_kind);
				CREATE UNIQUE INDEX IF NOT EXISTS resources_created_at_id_desc_unique_index ON resources(
					resource_created_at DESC,
					resource_id DESC);`,
		DownSQL: `DROP TABLE resources;`,
	},
	{
		SequenceNumber: 4,
		Name:           "create_grants",
		UpSQL: `CREATE TABLE IF NOT EXISTS grants
				(
					grant_id text NOT NULL PRIMARY KEY,
					grant_created_at timestamp without time zone NOT NULL,
					grant_grantee_type text NOT NULL,
					grant_grantee_id text NOT NULL,
					grant_resource_kind text NOT NULL,
					grant_resource_id text NOT NULL,
					grant_permission text NOT NULL,
					grant_effect text NOT NULL,
					grant_inherit bool NOT NULL,
					grant_fields text,
					grant_expires_at timestamp without time zone,
					grant_granted_by text NOT NULL
				);
				CREATE UNIQUE INDEX IF NOT EXISTS grants_unique_index ON grants(
					grant_grantee_type,
					grant_grantee_id,
					grant_resource_id,
					grant_permission,
					grant_effect,
					coalesce(grant_fields, ''),
					coalesce(grant_expires_at, '1970-01-01 00:00:00'));
				CREATE INDEX IF NOT EXISTS grants_grantee_index ON grants(
					grant_grantee_type,
					grant_grantee_id);
				CREATE INDEX IF NOT EXISTS grants_resource_id_index ON grants(grant_resource_id);
				CREATE INDEX IF NOT EXISTS grants_expires_at_index ON grants(grant_expires_at)
					WHERE grant_expires_at IS NOT NULL;
				CREATE UNIQUE INDEX IF NOT EXISTS grants_created_at_id_desc_unique_index ON grants(
					grant_created_at DESC,
					grant_id DESC);`,
		DownSQL: `DROP TABLE grants;`,
	},
	{
		SequenceNumber: 5,
		Name:           "create_audit_events",
		UpSQL: `CREATE TABLE IF NOT EXISTS audit_events
				(
					audit_event_sequence {{ .IntegerPrimaryKey}},
					audit_event_id text NOT NULL,
					audit_event_created_at timestamp without time zone NOT NULL,
					audit_event_kind text NOT NULL,
					audit_event_actor_id text,
					audit_event_grantee_type text NOT NULL,
					audit_event_grantee_id text NOT NULL,
					audit_event_resource_kind text NOT NULL,
					audit_event_resource_id text NOT NULL,
					audit_event_permission text NOT NULL,
					audit_event_grant_id text,
					audit_event_detail text NOT NULL DEFAULT ''
				);
				CREATE UNIQUE INDEX IF NOT EXISTS audit_events_id_unique_index ON audit_events(audit_event_id);
				CREATE INDEX IF NOT EXISTS audit_events_created_at_index ON audit_events(
					audit_event_created_at DESC,
					audit_event_sequence DESC);
				CREATE INDEX IF NOT EXISTS audit_events_kind_index ON audit_events(audit_event_kind);
				CREATE INDEX IF NOT EXISTS audit_events_actor_id_index ON audit_events(audit_event_actor_id);
				CREATE INDEX IF NOT EXISTS audit_events_resource_id_index ON audit_events(audit_event_resource_id);`,
		DownSQL: `DROP TABLE audit_events;`,
	},
}
