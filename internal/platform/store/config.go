package store

import (
	"time"

	"bazaar/internal/platform/config"
	"bazaar/internal/platform/store/blob"
	"bazaar/internal/platform/store/cache"
	"bazaar/internal/platform/store/pg"
	"bazaar/internal/platform/store/retry"
)

// Config aggregates per backend configuration
type Config struct {
	AppName string

	DB    DBConfig
	Cache cache.Config
	Blob  blob.Config
}

// DBConfig configures the pool, the statement retry policy and the boot guard
type DBConfig struct {
	Enabled bool
	Pool    pg.Config
	LogSQL  bool

	// boot guard
	ConnectRetries int
	PingTimeout    time.Duration

	HealthTimeout time.Duration

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// Boot guard defaults
const (
	DefaultConnectRetries = 20
	DefaultPingTimeout    = 3 * time.Second
)

// ConfigFromEnv reads DB_*, CACHE_*, STORAGE_* and S3_* from c
func ConfigFromEnv(c config.Conf) Config {
	db := c.Prefix("DB_")
	return Config{
		AppName: c.MayString("APP_NAME", "bazaar"),
		DB: DBConfig{
			Enabled: db.MayBool("ENABLED", true),
			Pool: pg.Config{
				URL:             db.MayString("URL", ""),
				Host:            db.MayString("HOST", pg.DefaultHost),
				Port:            db.MayInt("PORT", pg.DefaultPort),
				User:            db.MayString("USER", "postgres"),
				Password:        db.MayString("PASSWORD", ""),
				Database:        db.MayString("NAME", "bazaar"),
				ConnectionLimit: int32(db.MayInt("CONNECTION_LIMIT", pg.DefaultConnectionLimit)),
				IdleLimit:       int32(db.MayInt("IDLE_LIMIT", pg.DefaultConnectionLimit)),
				IdleTimeout:     db.MayDuration("IDLE_TIMEOUT", pg.DefaultIdleTimeout),
				QueueLimit:      db.MayInt("QUEUE_LIMIT", 0),
				KeepAlive:       db.MayBool("KEEP_ALIVE", true),
				KeepAliveDelay:  db.MayDuration("KEEP_ALIVE_DELAY", pg.DefaultKeepAliveDelay),
				TLS: pg.TLSMode(db.MayEnum("TLS", string(pg.TLSDisabled),
					string(pg.TLSDisabled), string(pg.TLSRequired), string(pg.TLSSkipVerify))),
				SlowMs: db.MayInt("SLOW_MS", 500),
			},
			LogSQL:         db.MayBool("LOG_SQL", false),
			ConnectRetries: db.MayInt("CONNECT_RETRIES", DefaultConnectRetries),
			PingTimeout:    db.MayDuration("PING_TIMEOUT", DefaultPingTimeout),
			HealthTimeout:  db.MayDuration("HEALTH_TIMEOUT", DefaultHealthTimeout),
			RetryAttempts:  db.MayInt("RETRY_ATTEMPTS", retry.DefaultMaxAttempts),
			RetryBaseDelay: db.MayDuration("RETRY_BASE_DELAY", retry.DefaultBaseDelay),
			RetryMaxDelay:  db.MayDuration("RETRY_MAX_DELAY", retry.DefaultMaxDelay),
		},
		Cache: cache.ConfigFromEnv(c),
		Blob:  blob.ConfigFromEnv(c),
	}
}
