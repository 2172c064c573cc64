package logging

import (
	"fmt"
	"log/slog"
	"os"
)

const (
	// KeyError is the key used for errors in log attributes.
	KeyError = "err"

	// KeyDal is the key used for the data access layer name.
	KeyDal = "dal"

	// KeyGuildID is the key used for the guild ID.
	KeyGuildID = "guild_id"

	// KeyTicketID is the key used for the ticket number.
	KeyTicketID = "ticket_id"

	// KeyChannelID is the key used for the channel ID.
	KeyChannelID = "channel_id"

	// KeyAppName is the key used for the application name.
	KeyAppName = "app"
)

// Name is the name of the application that the logger is created for.
type Name string

// Config is the configuration for a logger.
type Config struct {
	// name is the application name attached to every record.
	name string

	// level is the minimum level that will be logged.
	level slog.Level
}

// NewConfig creates a new logging configuration for the named application.
func NewConfig(name Name) *Config {
	return &Config{
		name:  string(name),
		level: slog.LevelDebug,
	}
}

// CommonLogger creates the logger used across the application. It writes
// JSON records to stdout with the application name attached.
func CommonLogger(c *Config) (*slog.Logger, error) {
	if c == nil {
		return nil, fmt.Errorf("logging config is nil")
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: c.level,
	})

	l := slog.New(h).With(slog.String(KeyAppName, c.name))

	// Set the default logger so that packages logging through slog.Default
	// share the same handler.
	slog.SetDefault(l)

	return l, nil
}
