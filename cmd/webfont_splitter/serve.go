package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/webfont-splitter/internal/config"
	"github.com/jonathan/webfont-splitter/internal/observability"
	"github.com/jonathan/webfont-splitter/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start an HTTP server that serves the store's WOFF2 files and runs the pipeline on
request, streaming progress via server-sent events.

Run submission requires "Authorization: Bearer $SPLITTER_API_TOKEN" when that variable
is set, and the token is mandatory when --host is not a loopback address. Local font
paths and webroots in requests must lie inside a --root directory. The run log endpoints
need a database (DATABASE_URL or --db-url).`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveHost        string
	servePort        int
	serveRoots       []string
	serveConfigPath  string
	serveStoreDir    string
	serveBaseURI     string
	serveDatabaseURL string
	serveVerbose     bool
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Address to listen on; anything but loopback requires SPLITTER_API_TOKEN")
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().StringSliceVar(&serveRoots, "root", nil, "Directory run requests may read fonts and webroots from (repeatable)")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Config file supplying run defaults")
	serveCmd.Flags().StringVarP(&serveStoreDir, "store", "s", "", "Store directory")
	serveCmd.Flags().StringVar(&serveBaseURI, "base-uri", "", "Public URI prefix of the store")
	serveCmd.Flags().StringVar(&serveDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	serveCmd.Flags().BoolVarP(&serveVerbose, "verbose", "v", false, "Debug logging")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	var base config.Config
	if serveConfigPath != "" {
		loaded, err := config.LoadConfig(serveConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		base = *loaded
	}
	if cmd.Flags().Changed("store") {
		base.StoreDir = serveStoreDir
	}
	if cmd.Flags().Changed("base-uri") {
		base.BaseURI = serveBaseURI
	}
	if cmd.Flags().Changed("db-url") {
		base.DatabaseURL = serveDatabaseURL
	}
	if base.DatabaseURL == "" {
		base.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	logger, err := observability.NewLogger(serveVerbose || base.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg := server.Config{
		Host:     serveHost,
		Port:     servePort,
		Roots:    serveRoots,
		Base:     base,
		APIToken: os.Getenv("SPLITTER_API_TOKEN"),
		Logger:   logger,
	}
	if base.DatabaseURL != "" {
		database, err := openDatabase(context.Background(), base.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()
		cfg.RunLog = database
	}

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Start()
}
