package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"scrollguard/internal/app"
	"scrollguard/internal/types"
)

// PatternsOptions holds flags for the patterns command
type PatternsOptions struct {
	*RootOptions
	Type  string
	Limit int
}

// NewPatternsCommand creates the patterns command
func NewPatternsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PatternsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List the most recent behavior patterns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				data, err := s.call(app.MsgGetRecentPatterns, map[string]any{"type": opts.Type, "limit": opts.Limit})
				if err != nil {
					return err
				}
				if rootOpts.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), data)
				}

				var patterns []types.BehaviorPattern
				if err := json.Unmarshal(data, &patterns); err != nil {
					return WrapExitError(ExitFailure, "decoding response", err)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "STARTED\tTYPE\tDURATION\tID")
				for _, p := range patterns {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
						time.UnixMilli(p.StartTime).UTC().Format(time.RFC3339),
						p.Type,
						(time.Duration(p.Duration) * time.Millisecond).String(),
						p.ID)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", "", "only patterns of this type")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of patterns")
	return cmd
}

// NewJournalCommand creates the journal command group
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Add, list and search journal entries",
	}
	cmd.AddCommand(newJournalAddCommand(rootOpts))
	cmd.AddCommand(newJournalListCommand(rootOpts))
	cmd.AddCommand(newJournalSearchCommand(rootOpts))
	return cmd
}

func newJournalAddCommand(rootOpts *RootOptions) *cobra.Command {
	var mood string
	var tags []string

	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Append an entry dated today",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				data, err := s.call(app.MsgAddJournalEntry, map[string]any{
					"text": strings.Join(args, " "),
					"mood": mood,
					"tags": tags,
				})
				if err != nil {
					return err
				}
				return printEntries(cmd, rootOpts, data, true)
			})
		},
	}

	cmd.Flags().StringVar(&mood, "mood", "", "mood (great|good|neutral|low|bad)")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tag, repeatable")
	return cmd
}

func newJournalListCommand(rootOpts *RootOptions) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entries between two dates (default today)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				data, err := s.call(app.MsgGetJournalEntries, map[string]any{"from": from, "to": to})
				if err != nil {
					return err
				}
				return printEntries(cmd, rootOpts, data, false)
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD")
	return cmd
}

func newJournalSearchCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find entries whose text or tags contain the query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				data, err := s.call(app.MsgSearchJournal, map[string]any{"query": strings.Join(args, " "), "limit": limit})
				if err != nil {
					return err
				}
				return printEntries(cmd, rootOpts, data, false)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of entries (0 = all)")
	return cmd
}

func printEntries(cmd *cobra.Command, rootOpts *RootOptions, data json.RawMessage, single bool) error {
	if rootOpts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), data)
	}

	var entries []types.JournalEntry
	if single {
		var e types.JournalEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return WrapExitError(ExitFailure, "decoding response", err)
		}
		entries = append(entries, e)
	} else if err := json.Unmarshal(data, &entries); err != nil {
		return WrapExitError(ExitFailure, "decoding response", err)
	}

	out := cmd.OutOrStdout()
	for _, e := range entries {
		line := e.Date + "  " + e.Text
		if e.Mood != "" {
			line += "  (" + string(e.Mood) + ")"
		}
		if len(e.Tags) > 0 {
			line += "  #" + strings.Join(e.Tags, " #")
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

// NewQueryCommand creates the query command, a raw message passthrough
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	var payload string

	cmd := &cobra.Command{
		Use:   "query <MESSAGE_TYPE>",
		Short: "Send one message to the store and print the reply data",
		Long: `Send one message to the store and print the reply data.

Example:
  scrollguard query GET_PRODUCTIVITY_STATS --payload '{"days":7}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(payload)) {
				return WrapExitError(ExitCommandError, "invalid --payload JSON", fmt.Errorf("%q", payload))
			}
			return withSession(cmd, rootOpts, func(s *session) error {
				data, err := s.call(app.MessageType(strings.ToUpper(args[0])), json.RawMessage(payload))
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), data)
			})
		},
	}

	cmd.Flags().StringVar(&payload, "payload", "{}", "message payload as JSON")
	return cmd
}
