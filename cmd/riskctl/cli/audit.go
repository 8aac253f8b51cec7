package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tradegate/internal/models"
	"tradegate/pkg/utils"
)

func newAuditCmd(rc *RootConfig) *cobra.Command {
	var (
		limit  int
		since  string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Последние переходы гейтов риска",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var from time.Time
			if since != "" {
				t, err := utils.ParseTimestamp(since)
				if err != nil {
					return fmt.Errorf("invalid --since %q: expected RFC3339", since)
				}
				from = t
			}

			c, err := newClient(rc)
			if err != nil {
				return err
			}
			var resp struct {
				Events []models.RiskAuditEvent `json:"events"`
			}
			if err := c.get(cmd.Context(), "/risk/audit?limit="+strconv.Itoa(limit), &resp); err != nil {
				return err
			}
			events := resp.Events[:0]
			for _, ev := range resp.Events {
				if from.IsZero() || !ev.Timestamp.Before(from) {
					events = append(events, ev)
				}
			}

			if asJSON {
				return writeIndented(cmd.OutOrStdout(), events)
			}

			out := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintln(out, "no gate transitions")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, ev := range events {
				symbol := ev.Symbol
				if symbol == "" {
					symbol = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ev.Timestamp.UTC().Format(time.RFC3339), ev.Gate, symbol, ev.Event)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "сколько событий показать (максимум 500)")
	cmd.Flags().StringVar(&since, "since", "", "только события не раньше момента (RFC3339)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "вывести JSON как есть")
	return cmd
}
