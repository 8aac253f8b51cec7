package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newKillSwitchCmd(rc *RootConfig) *cobra.Command {
	return &cobra.Command{
		Use:       "killswitch on|off",
		Short:     "Включить или выключить ручной kill switch",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var active bool
			switch strings.ToLower(strings.TrimSpace(args[0])) {
			case "on", "true", "1":
				active = true
			case "off", "false", "0":
				active = false
			default:
				return fmt.Errorf("expected on or off, got %q", args[0])
			}

			c, err := newClient(rc)
			if err != nil {
				return err
			}
			var resp struct {
				Active bool `json:"active"`
			}
			if err := c.post(cmd.Context(), "/risk/killswitch", map[string]bool{"active": active}, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "killswitch %s\n", onOff(resp.Active))
			return nil
		},
	}
}
