package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"scrollguard/internal/app"
	"scrollguard/internal/types"
)

// NewMigrateCommand creates the migrate command
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the table layout and run pending data migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				current, target, err := s.app.SchemaVersion(cmd.Context())
				if err != nil {
					return WrapExitError(ExitFailure, "reading schema version", err)
				}
				layout, err := s.app.LayoutVersion(cmd.Context())
				if err != nil {
					return WrapExitError(ExitFailure, "reading table layout version", err)
				}
				if rootOpts.Format == "json" {
					data, _ := json.Marshal(map[string]int64{"current": int64(current), "target": int64(target), "layout": layout})
					return writeJSON(cmd.OutOrStdout(), data)
				}
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Schema version %d/%d\n", current, target)
				fmt.Fprintf(cmd.OutOrStdout(), "Table layout version %d\n", layout)
				return nil
			})
		},
	}
}

// ExportOptions holds flags for the export command
type ExportOptions struct {
	*RootOptions
	Output string
}

// NewExportCommand creates the export command
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the whole dataset as one JSON document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				data, err := s.call(app.MsgExportData, nil)
				if err != nil {
					return err
				}
				if opts.Output == "" || opts.Output == "-" {
					return writeJSON(cmd.OutOrStdout(), data)
				}

				f, err := os.Create(opts.Output)
				if err != nil {
					return WrapExitError(ExitCommandError, "creating export file", err)
				}
				if err := writeJSON(f, data); err != nil {
					f.Close()
					return WrapExitError(ExitCommandError, "writing export file", err)
				}
				if err := f.Close(); err != nil {
					return WrapExitError(ExitCommandError, "writing export file", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", opts.Output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default stdout)")
	return cmd
}

// NewImportCommand creates the import command
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace stored data with an export document",
		Long: `Replace stored data with an export document.

The document is validated completely before anything is written. Collections
absent from the document are left untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "reading import file", err)
			}
			return withSession(cmd, rootOpts, func(s *session) error {
				if _, err := s.call(app.MsgImportData, json.RawMessage(data)); err != nil {
					return err
				}
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Imported %s\n", args[0])
				return nil
			})
		},
	}
}

// RetentionOptions holds flags for the retention command
type RetentionOptions struct {
	*RootOptions
	Days   int
	Vacuum bool
}

// NewRetentionCommand creates the retention command
func NewRetentionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RetentionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "retention",
		Short: "Delete data older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{}
			if cmd.Flags().Changed("days") {
				payload["windowDays"] = opts.Days
			}
			return withSession(cmd, rootOpts, func(s *session) error {
				data, err := s.call(app.MsgApplyRetention, payload)
				if err != nil {
					return err
				}
				if opts.Vacuum {
					if err := s.app.Optimize(cmd.Context()); err != nil {
						return WrapExitError(ExitFailure, "optimizing database", err)
					}
				}
				if rootOpts.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), data)
				}

				var result types.RetentionResult
				if err := json.Unmarshal(data, &result); err != nil {
					return WrapExitError(ExitFailure, "decoding response", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Cutoff:           %s\n", result.Cutoff)
				fmt.Fprintf(out, "Daily metrics:    %d\n", result.MetricsDeleted)
				fmt.Fprintf(out, "Patterns:         %d\n", result.PatternsDeleted)
				fmt.Fprintf(out, "Reports:          %d\n", result.ReportsDeleted)
				fmt.Fprintf(out, "Archive days:     %d\n", result.ArchiveDaysPruned)
				fmt.Fprintf(out, "Journal days:     %d\n", result.JournalDaysPruned)
				if opts.Vacuum {
					fmt.Fprintln(out, "Database optimized")
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&opts.Days, "days", 0, "retention window in days (default from preferences)")
	cmd.Flags().BoolVar(&opts.Vacuum, "vacuum", false, "analyze and compact the database after the sweep")
	return cmd
}

// NewUsageCommand creates the usage command
func NewUsageCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show how much of the storage quota the store uses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				data, err := s.call(app.MsgGetStorageUsage, nil)
				if err != nil {
					return err
				}
				if rootOpts.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), data)
				}

				var usage app.StorageUsage
				if err := json.Unmarshal(data, &usage); err != nil {
					return WrapExitError(ExitFailure, "decoding response", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Used:      %d bytes\n", usage.BytesUsed)
				fmt.Fprintf(out, "Available: %d bytes\n", usage.BytesAvailable)
				line := fmt.Sprintf("Percent:   %.2f%%\n", usage.PercentageUsed)
				if usage.NearLimit {
					color.New(color.FgYellow).Fprint(out, line)
					color.New(color.FgYellow).Fprintln(out, "Warning: storage is close to its quota, consider a shorter retention window")
					return nil
				}
				fmt.Fprint(out, line)
				return nil
			})
		},
	}
}
