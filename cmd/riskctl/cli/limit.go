package cli

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tradegate/pkg/utils"
)

func newLimitCmd(rc *RootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "limit",
		Short: "Дневные лимиты убытка",
	}

	cmd.AddCommand(
		newLimitGlobalCmd(rc),
		newLimitSymbolCmd(rc),
	)

	return cmd
}

type drawdownResponse struct {
	Mode        string  `json:"mode"`
	LimitUsd    float64 `json:"limitUsd"`
	PnlTodayUsd float64 `json:"pnl_today_usd"`
	Breached    bool    `json:"breached"`
}

type symbolLimitResponse struct {
	Symbol      string  `json:"symbol"`
	LimitUsd    float64 `json:"limit_usd"`
	PnlTodayUsd float64 `json:"pnl_today_usd"`
	Blocked     bool    `json:"blocked"`
}

func newLimitGlobalCmd(rc *RootConfig) *cobra.Command {
	var (
		pct  float64
		base float64
	)

	cmd := &cobra.Command{
		Use:   "global [usd]",
		Short: "Показать или задать глобальный лимит (usd либо --pct и --base)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(rc)
			if err != nil {
				return err
			}

			var resp drawdownResponse
			switch {
			case len(args) == 1:
				usd, err := parseAmount(args[0])
				if err != nil {
					return err
				}
				err = c.post(cmd.Context(), "/risk/drawdown-limit", map[string]float64{"usd": usd}, &resp)
				if err != nil {
					return err
				}
			case cmd.Flags().Changed("pct") || cmd.Flags().Changed("base"):
				if pct <= 0 || base <= 0 {
					return errors.New("--pct and --base must both be > 0")
				}
				err = c.post(cmd.Context(), "/risk/drawdown-limit", map[string]float64{"pct": pct, "base": base}, &resp)
				if err != nil {
					return err
				}
			default:
				if err := c.get(cmd.Context(), "/risk/drawdown-limit", &resp); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "global limit=%.2f mode=%s pnl=%.2f %s\n",
				resp.LimitUsd, resp.Mode, resp.PnlTodayUsd, breachedWord(resp.Breached))
			return nil
		},
	}

	cmd.Flags().Float64Var(&pct, "pct", 0, "процент от базы (1 = 1%)")
	cmd.Flags().Float64Var(&base, "base", 0, "база в USD для --pct")
	return cmd
}

func newLimitSymbolCmd(rc *RootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "symbol <symbol> [usd]",
		Short: "Показать или задать лимит убытка по символу",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol := strings.TrimSpace(args[0])
			if err := utils.ValidateSymbol(symbol); err != nil {
				return err
			}

			c, err := newClient(rc)
			if err != nil {
				return err
			}

			var resp symbolLimitResponse
			if len(args) == 2 {
				usd, err := parseAmount(args[1])
				if err != nil {
					return err
				}
				body := map[string]interface{}{"symbol": symbol, "usd": usd}
				if err := c.post(cmd.Context(), "/risk/symbol-limit", body, &resp); err != nil {
					return err
				}
			} else {
				if err := c.get(cmd.Context(), "/risk/symbol-limit/"+url.PathEscape(symbol), &resp); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s limit=%.2f pnl=%.2f %s\n",
				resp.Symbol, resp.LimitUsd, resp.PnlTodayUsd, blockedWord(resp.Blocked))
			return nil
		},
	}
}

func parseAmount(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("amount must be a positive number, got %q", raw)
	}
	return v, nil
}

func breachedWord(v bool) string {
	if v {
		return "breached"
	}
	return "ok"
}
