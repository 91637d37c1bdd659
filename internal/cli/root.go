// Package cli is the command line front end over the store's message router
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands
type RootOptions struct {
	ConfigPath string
	Env        string
	DBPath     string
	Format     string // "json" | "text"
	Verbose    bool
}

// ValidFormats defines the allowed output formats
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "scrollguard",
		Short: "scrollguard - local behavioral data store",
		Long:  "Inspect and maintain the on-device behavioral data store: migrations, retention, export and import.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (.yaml, .yml or .toml)")
	cmd.PersistentFlags().StringVar(&opts.Env, "env", "production", "environment preset (development|test|production)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "database path, overrides the config")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewRetentionCommand(opts))
	cmd.AddCommand(NewUsageCommand(opts))
	cmd.AddCommand(NewPatternsCommand(opts))
	cmd.AddCommand(NewJournalCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))

	return cmd
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
