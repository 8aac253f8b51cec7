package cli

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tradegate/internal/models"
)

type statusResponse struct {
	OK   bool              `json:"ok"`
	Risk models.RiskStatus `json:"risk"`
}

func newStatusCmd(rc *RootConfig) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Показать состояние гейтов и бюджетов дня",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(rc)
			if err != nil {
				return err
			}
			var resp statusResponse
			if err := c.get(cmd.Context(), "/risk/status", &resp); err != nil {
				return err
			}
			if asJSON {
				return writeIndented(cmd.OutOrStdout(), resp.Risk)
			}
			return printStatus(cmd.OutOrStdout(), resp.Risk)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "вывести JSON как есть")
	return cmd
}

func printStatus(out io.Writer, st models.RiskStatus) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "day\t%s\tresets %s\n", st.Day, st.ResetsAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(tw, "killswitch\t%s\n", onOff(st.Gates.ManualKillswitchBlocked))
	fmt.Fprintf(tw, "daily drawdown\t%s\tpnl=%.2f\tlimit=%.2f\tmode=%s\n",
		blockedWord(st.Gates.DailyDrawdownBlocked), st.Global.PnlTodayUsd, st.Global.LimitUsd, st.Global.Mode)

	symbols := make([]string, 0, len(st.BySymbol))
	for s := range st.BySymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	for _, s := range symbols {
		b := st.BySymbol[s]
		fmt.Fprintf(tw, "%s\t%s\tpnl=%.2f\tlimit=%.2f\n", s, blockedWord(b.Blocked), b.PnlTodayUsd, b.LimitUsd)
	}
	return tw.Flush()
}

func writeIndented(out io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func blockedWord(v bool) string {
	if v {
		return "blocked"
	}
	return "ok"
}
