package sqlite

import (
	"fmt"
	"strings"
)

type Config struct {
	DatabasePath string
	// PageSize bounds the rows held in memory by ForEachCoordinates
	PageSize int
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database path is required")
	}
	if c.PageSize < 0 {
		return fmt.Errorf("page size must not be negative")
	}
	return nil
}

// DSN appends connection options for file databases
func (c *Config) DSN() string {
	if c.DatabasePath == ":memory:" || strings.Contains(c.DatabasePath, "?") {
		return c.DatabasePath
	}
	return c.DatabasePath + "?_busy_timeout=5000&_journal_mode=WAL"
}

func DefaultConfig() *Config {
	return &Config{
		DatabasePath: "./events.db",
	}
}
