// Package pg builds the bounded pgx connection pool the substrate runs on
package pg

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TLSMode selects transport security for pool connections
type TLSMode string

// Supported TLS modes
const (
	TLSDisabled   TLSMode = "disabled"
	TLSRequired   TLSMode = "required"    // encrypted, server certificate verified
	TLSSkipVerify TLSMode = "skip-verify" // encrypted, certificate not verified
)

// Pool defaults applied by Normalize
const (
	DefaultHost            = "localhost"
	DefaultPort            = 5432
	DefaultConnectionLimit = 10
	DefaultIdleTimeout     = 60 * time.Second
	DefaultKeepAliveDelay  = 10 * time.Second
)

// Config is the pool configuration; it is read once when the pool is built
type Config struct {
	// URL, when set, is parsed as a full connection string and replaces the
	// host, port, credential, database and TLS fields
	URL string

	Host     string
	Port     int
	User     string
	Password string
	Database string

	ConnectionLimit int32
	IdleLimit       int32
	IdleTimeout     time.Duration
	QueueLimit      int // statements allowed to wait for a connection; 0 = unbounded

	KeepAlive      bool
	KeepAliveDelay time.Duration
	TLS            TLSMode

	AppName string
	SlowMs  int
}

// Normalize returns a copy with invalid values replaced by defaults
func (c Config) Normalize() Config {
	if strings.TrimSpace(c.Host) == "" {
		c.Host = DefaultHost
	}
	if c.Port < 1 || c.Port > 65535 {
		c.Port = DefaultPort
	}
	if c.ConnectionLimit <= 0 {
		c.ConnectionLimit = DefaultConnectionLimit
	}
	if c.IdleLimit <= 0 || c.IdleLimit > c.ConnectionLimit {
		c.IdleLimit = c.ConnectionLimit
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.QueueLimit < 0 {
		c.QueueLimit = 0
	}
	if c.KeepAliveDelay <= 0 {
		c.KeepAliveDelay = DefaultKeepAliveDelay
	}
	switch c.TLS {
	case TLSDisabled, TLSRequired, TLSSkipVerify:
	default:
		c.TLS = TLSDisabled
	}
	return c
}

// sslMode maps TLSMode onto libpq sslmode names
func (m TLSMode) sslMode() string {
	switch m {
	case TLSRequired:
		return "verify-full"
	case TLSSkipVerify:
		return "require"
	default:
		return "disable"
	}
}

// DSN renders the connection string used to build the pool
func (c Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.User != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.User, c.Password)
		} else {
			u.User = url.User(c.User)
		}
	}
	q := url.Values{}
	q.Set("sslmode", c.TLS.sslMode())
	if c.AppName != "" {
		q.Set("application_name", c.AppName)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// PG is a postgres client with pool and optional tracer
type PG struct {
	Pool   *pgxpool.Pool
	Tracer QueryTracer
	SlowMs int
}

var newPool = pgxpool.NewWithConfig

// Open builds the pool for cfg. poolCfgMut may adjust the pgxpool config last
func Open(ctx context.Context, cfg Config, tracer QueryTracer, poolCfgMut func(*pgxpool.Config)) (*PG, error) {
	cfg = cfg.Normalize()
	pcfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}
	applyPoolLimits(pcfg, cfg)

	var published atomic.Pointer[pgxpool.Pool]
	idleLimit := cfg.IdleLimit
	pcfg.AfterRelease = func(*pgx.Conn) bool {
		p := published.Load()
		if p == nil {
			return true
		}
		// false destroys the connection instead of parking it idle
		return p.Stat().IdleConns() < idleLimit
	}

	if poolCfgMut != nil {
		poolCfgMut(pcfg)
	}
	pool, err := newPool(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	published.Store(pool)
	return &PG{
		Pool:   pool,
		Tracer: tracer,
		SlowMs: cfg.SlowMs,
	}, nil
}

// applyPoolLimits copies sizing and socket options onto a parsed pgxpool config
func applyPoolLimits(pcfg *pgxpool.Config, cfg Config) {
	pcfg.MaxConns = cfg.ConnectionLimit
	pcfg.MaxConnIdleTime = cfg.IdleTimeout

	keepAlive := cfg.KeepAliveDelay
	if !cfg.KeepAlive {
		keepAlive = -1
	}
	dialer := &net.Dialer{KeepAlive: keepAlive, Timeout: pcfg.ConnConfig.ConnectTimeout}
	pcfg.ConnConfig.DialFunc = dialer.DialContext
}

// Close closes the pool
func (p *PG) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}
