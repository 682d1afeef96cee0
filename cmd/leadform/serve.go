package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/leadform/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the form capture endpoint",
	Long: `Start an HTTP server that accepts url-encoded form posts on /submit and
journals them, to Postgres when DATABASE_URL is set and in memory otherwise.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (defaults to config port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	port := servePort
	if port == 0 {
		port = appConfig.Port
	}

	srv, err := server.New(cmd.Context(), server.Config{
		Port:        port,
		DatabaseURL: appConfig.DatabaseURL,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}
