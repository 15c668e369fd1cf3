package app

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/siteguard/siteguard/common/logger"
	"github.com/siteguard/siteguard/server/api/rest/server"
	"github.com/siteguard/siteguard/server/services"
	"github.com/siteguard/siteguard/server/services/authorization"
	"github.com/siteguard/siteguard/server/services/cache"
	"github.com/siteguard/siteguard/server/services/expiry"
	"github.com/siteguard/siteguard/server/services/hierarchy"
	"github.com/siteguard/siteguard/server/services/membership"
	"github.com/siteguard/siteguard/server/store"
)

const defaultSQLiteConnectionString = "file:siteguard.db?cache=shared&mode=rwc&_journal_mode=WAL"

// LogSafeFlags is a list of flags by name whose values are safe to log.
var LogSafeFlags = []string{
	"api_server_address",
	"database_driver",
	"database_max_idle_connections",
	"database_max_open_connections",
	"token_ttl",
	"cache_enabled",
	"cache_max_entries",
	"decision_cache_ttl",
	"membership_cache_ttl",
	"ancestors_cache_ttl",
	"expiry_scheduler_enabled",
	"expiry_check_period",
	"expiry_notification_hour_utc",
	"expiry_look_ahead",
	"bootstrap_superuser_username",
	"log_levels",
}

type CacheConfig struct {
	// Enabled turns the in-memory decision cache on. When off every check
	// hits the database.
	Enabled bool
	// MaxEntries bounds the LRU cache.
	MaxEntries int
}

func CacheServiceFactory(config CacheConfig, logFactory logger.LogFactory) services.CacheService {
	if !config.Enabled {
		return cache.NewNoOpCacheService()
	}
	return cache.NewCacheService(config.MaxEntries, logFactory)
}

type BootstrapConfig struct {
	// SuperuserUsername is the account ensured to exist at startup.
	SuperuserUsername string
	// SuperuserPassword is only used when the account does not exist yet.
	SuperuserPassword string
}

type SchedulerConfig struct {
	// Enabled starts the expiry scheduler inside this server process.
	Enabled bool
}

type ServerConfig struct {
	CoreAPIConfig   server.CoreAPIServerConfig
	JWTSecret       server.JWTSecret
	TokenTTL        server.TokenTTL
	DatabaseConfig  store.DatabaseConfig
	CacheConfig     CacheConfig
	DecisionTTL     authorization.DecisionTTL
	MembershipTTL   membership.MembershipTTL
	AncestorsTTL    hierarchy.AncestorsTTL
	ExpiryConfig    expiry.ExpiryConfig
	SchedulerConfig SchedulerConfig
	BootstrapConfig BootstrapConfig
	LogLevels       logger.LogLevelConfig
}

func ConfigFromFlags() (*ServerConfig, error) {
	var (
		databaseDriverStr        string
		databaseConnectionString string
		jwtSecret                string
		tokenTTL                 time.Duration
		decisionTTL              time.Duration
		membershipTTL            time.Duration
		ancestorsTTL             time.Duration
		logLevels                string
	)

	config := &ServerConfig{}

	// API server
	flag.StringVar(&config.CoreAPIConfig.Address, "api_server_address",
		"0.0.0.0:8080", "The interface and port to bind the API server to.")
	flag.StringVar(&jwtSecret, "jwt_secret",
		"", "The secret used to sign and verify bearer tokens.")
	flag.DurationVar(&tokenTTL, "token_ttl",
		time.Duration(server.DefaultTokenTTL), "How long issued bearer tokens remain valid.")

	// Database
	flag.StringVar(&databaseConnectionString, "database_connection_string",
		defaultSQLiteConnectionString, "The connection string for the database")
	flag.StringVar(&databaseDriverStr, "database_driver",
		string(store.Sqlite), "The Database Driver to use (i.e sqlite3|postgres)")
	flag.IntVar(&config.DatabaseConfig.MaxIdleConnections, "database_max_idle_connections",
		store.DefaultDatabaseMaxIdleConnections, "The maximum number of idle database connections to use")
	flag.IntVar(&config.DatabaseConfig.MaxOpenConnections, "database_max_open_connections",
		store.DefaultDatabaseMaxOpenConnections, "The maximum number of open database connections to use")

	// Caching
	flag.BoolVar(&config.CacheConfig.Enabled, "cache_enabled",
		true, "True to cache decisions, group memberships and ancestor chains in memory.")
	flag.IntVar(&config.CacheConfig.MaxEntries, "cache_max_entries",
		cache.DefaultMaxEntries, "The maximum number of entries held in the in-memory cache.")
	flag.DurationVar(&decisionTTL, "decision_cache_ttl",
		time.Duration(authorization.DefaultDecisionTTL), "How long cached decisions live.")
	flag.DurationVar(&membershipTTL, "membership_cache_ttl",
		time.Duration(membership.DefaultMembershipTTL), "How long cached group memberships live.")
	flag.DurationVar(&ancestorsTTL, "ancestors_cache_ttl",
		time.Duration(hierarchy.DefaultAncestorsTTL), "How long cached ancestor chains live.")

	// Expiry scheduler
	flag.BoolVar(&config.SchedulerConfig.Enabled, "expiry_scheduler_enabled",
		true, "True to run the grant expiry scheduler inside this server.")
	flag.DurationVar(&config.ExpiryConfig.CheckPeriod, "expiry_check_period",
		expiry.DefaultCheckPeriod, "How often expired grants are harvested.")
	flag.IntVar(&config.ExpiryConfig.NotificationHourUTC, "expiry_notification_hour_utc",
		expiry.DefaultNotificationHourUTC, "The hour of the day (UTC) the daily expiry notification scan runs at.")
	flag.DurationVar(&config.ExpiryConfig.LookAhead, "expiry_look_ahead",
		expiry.DefaultLookAhead, "How far ahead the daily scan looks for expiring grants.")
	flag.DurationVar(&config.ExpiryConfig.MisfireGrace, "expiry_misfire_grace",
		expiry.DefaultMisfireGrace, "How late a scheduled job may fire before the delay is logged.")

	// Bootstrap superuser
	flag.StringVar(&config.BootstrapConfig.SuperuserUsername, "bootstrap_superuser_username",
		"admin", "The username of the superuser account ensured to exist at startup.")
	flag.StringVar(&config.BootstrapConfig.SuperuserPassword, "bootstrap_superuser_password",
		"", "The password for the superuser account, used only when the account does not exist yet.")

	// Misc
	flag.StringVar(&logLevels, "log_levels",
		"", fmt.Sprintf("A comma separated list of name=level pairs where name is the name of the logger and level is one of: %s", logger.ListLogLevels()))
	flag.Parse()

	if jwtSecret == "" {
		return nil, errors.New("--jwt_secret must be set")
	}
	config.JWTSecret = server.JWTSecret(jwtSecret)
	config.TokenTTL = server.TokenTTL(tokenTTL)

	config.DatabaseConfig.Driver = store.DBDriver(databaseDriverStr)
	config.DatabaseConfig.ConnectionString = store.DatabaseConnectionString(databaseConnectionString)

	config.DecisionTTL = authorization.DecisionTTL(decisionTTL)
	config.MembershipTTL = membership.MembershipTTL(membershipTTL)
	config.AncestorsTTL = hierarchy.AncestorsTTL(ancestorsTTL)

	config.LogLevels = logger.LogLevelConfig(logLevels)

	return config, nil
}
