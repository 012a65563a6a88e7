package config

import "time"

const (
	// DefaultPort is the default HTTP server port.
	DefaultPort = "8080"

	// DefaultDatabaseURL is empty; must be provided via flag or environment
	// when the postgres store is selected.
	DefaultDatabaseURL = ""

	// DefaultStore is the event store backend used when none is given.
	DefaultStore = StorePostgres

	// DefaultSQLitePath is the database file used by the sqlite store.
	DefaultSQLitePath = "data/casetask.db"

	// DefaultAppendRetries is the number of attempts a command gets when its
	// append loses a version race.
	DefaultAppendRetries = 3

	// DefaultTokenTTL is the lifetime of tokens minted by the token command.
	DefaultTokenTTL = 12 * time.Hour

	// DefaultLogFormat is the log output format.
	DefaultLogFormat = "json"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)
