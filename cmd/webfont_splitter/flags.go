package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/jonathan/webfont-splitter/internal/compress"
	"github.com/jonathan/webfont-splitter/internal/config"
	"github.com/jonathan/webfont-splitter/internal/db"
)

// modeValue is the --mode flag
type modeValue string

var _ pflag.Value = (*modeValue)(nil)

func (m *modeValue) String() string { return string(*m) }

func (m *modeValue) Set(s string) error {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case config.ModeBasic, config.ModeStatic:
		*m = modeValue(s)
		return nil
	default:
		return fmt.Errorf("must be %q or %q", config.ModeBasic, config.ModeStatic)
	}
}

func (m *modeValue) Type() string { return "mode" }

// compressionValue is the --compression flag of refdata pack
type compressionValue compress.Tag

var _ pflag.Value = (*compressionValue)(nil)

func (c *compressionValue) String() string { return compress.Tag(*c).String() }

func (c *compressionValue) Set(s string) error {
	tag, err := compress.ParseTag(strings.ToLower(s))
	if err != nil {
		return err
	}
	*c = compressionValue(tag)
	return nil
}

func (c *compressionValue) Type() string { return "compression" }

// openDatabase connects and makes sure the tables exist
func openDatabase(ctx context.Context, url string) (*db.DB, error) {
	database, err := db.Connect(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}
