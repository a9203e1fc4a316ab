package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/palisade/palisade/internal/credential"
)

// auditConfig holds flags for the audit tail command.
type auditConfig struct {
	limit      int
	jsonOutput bool
}

// NewAuditCmd creates the audit subcommand tree.
func NewAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit trail",
	}

	cmd.AddCommand(newAuditTailCmd())

	return cmd
}

func newAuditTailCmd() *cobra.Command {
	cfg := &auditConfig{}

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the most recent audit entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, func(svc *credential.Service) error {
				entries, err := svc.GetAuditLog(cmd.Context(), cfg.limit)
				if err != nil {
					return err
				}

				if cfg.jsonOutput {
					data, err := json.MarshalIndent(entries, "", "  ")
					if err != nil {
						return fmt.Errorf("failed to marshal entries: %w", err)
					}
					cmd.Println(string(data))
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tORIGIN\tACTOR\tACTION\tDETAIL")
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						e.Timestamp.UTC().Format(time.RFC3339), e.Origin, e.Actor, e.Action, e.Detail)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&cfg.limit, "limit", 50, "maximum number of entries to show")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output entries as JSON")

	return cmd
}
