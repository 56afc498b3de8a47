package config

import (
	"strings"
	"time"
)

// JournalDriver selects where submitted chains are recorded.
type JournalDriver string

const (
	// JournalDriverNone disables the journal.
	JournalDriverNone JournalDriver = "none"
	// JournalDriverSQLite keeps the journal in a local SQLite file.
	JournalDriverSQLite JournalDriver = "sqlite3"
	// JournalDriverPostgres keeps the journal in PostgreSQL via pgx.
	JournalDriverPostgres JournalDriver = "pgx"
)

// JournalConfig controls the submission journal.
type JournalConfig struct {
	Driver     JournalDriver `env:"JOURNAL_DRIVER"      envDefault:"sqlite3"`
	SQLitePath string        `env:"JOURNAL_SQLITE_PATH" envDefault:"ivt-chain.db"`
}

// Sanitize normalises the driver name; unknown values disable the journal.
func (j *JournalConfig) Sanitize() {
	d := JournalDriver(strings.ToLower(strings.TrimSpace(string(j.Driver))))
	switch d {
	case "sqlite":
		d = JournalDriverSQLite
	case "postgres", "postgresql":
		d = JournalDriverPostgres
	case JournalDriverSQLite, JournalDriverPostgres:
	default:
		d = JournalDriverNone
	}
	j.Driver = d
	if d == JournalDriverSQLite && strings.TrimSpace(j.SQLitePath) == "" {
		j.SQLitePath = "ivt-chain.db"
	}
}

// Enabled reports whether a journal backend is configured.
func (j *JournalConfig) Enabled() bool {
	return j.Driver == JournalDriverSQLite || j.Driver == JournalDriverPostgres
}

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"ivt"`
	Password string `env:"PASSWORD" envDefault:"ivt"`
	Name     string `env:"NAME"     envDefault:"ivt"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether submit applies migrations before journaling.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration for the submission lock.
type RedisConfig struct {
	Enabled  bool   `env:"ENABLED"  envDefault:"false"`
	URI      string `env:"URI"      envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`

	// LockTTL bounds how long a submission lock survives a crashed submitter.
	LockTTL time.Duration `env:"LOCK_TTL" envDefault:"10m"`
}

// Sanitize applies guardrails to Redis configuration values.
func (r *RedisConfig) Sanitize() {
	r.URI = strings.TrimSpace(r.URI)
	if r.URI == "" {
		r.Enabled = false
	}
	if r.LockTTL < 10*time.Second {
		r.LockTTL = 10 * time.Second
	}
}
