package postgres

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const applicationName = "event-enricher"

type Config struct {
	Host           string
	Port           int
	Database       string
	Username       string
	Password       string
	SSLMode        string
	MaxConns       int32
	ConnectTimeout time.Duration
	// PageSize bounds the rows of one distance recalculation batch
	PageSize       int
}

// Validate checks required fields and fills defaults in place
func (c *Config) Validate() error {
	switch {
	case c.Host == "":
		return fmt.Errorf("PostgreSQL host is required")
	case c.Database == "":
		return fmt.Errorf("PostgreSQL database name is required")
	case c.Username == "":
		return fmt.Errorf("PostgreSQL username is required")
	}
	if c.Port <= 0 {
		c.Port = 5432
	}
	if c.SSLMode == "" {
		c.SSLMode = "prefer"
	}
	if c.MaxConns <= 0 {
		// refresh batches plus the three queue writers
		c.MaxConns = 10
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	return nil
}

// ConnString renders the config as a postgres:// URL with credentials escaped
func (c *Config) ConnString() string {
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	q.Set("application_name", applicationName)
	if c.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds())))
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func (c *Config) poolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.ConnString())
	if err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL config: %w", err)
	}
	pc.MaxConns = c.MaxConns
	return pc, nil
}

// NewConfigFromURL parses a postgres:// URL or key/value DSN using pgx's rules
func NewConfigFromURL(connStr string) (*Config, error) {
	pc, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL URL: %w", err)
	}
	cc := pc.ConnConfig
	if cc.Database == "" {
		return nil, fmt.Errorf("PostgreSQL URL has no database name")
	}

	config := &Config{
		Host:           cc.Host,
		Port:           int(cc.Port),
		Database:       cc.Database,
		Username:       cc.User,
		Password:       cc.Password,
		SSLMode:        "prefer",
		MaxConns:       pc.MaxConns,
		ConnectTimeout: cc.ConnectTimeout,
	}
	if u, err := url.Parse(connStr); err == nil {
		if mode := u.Query().Get("sslmode"); mode != "" {
			config.SSLMode = mode
		}
	}
	return config, nil
}
