// Package cli содержит команды riskctl для управления гейтами риска
// работающего сервера через REST API.
package cli

import (
	"time"

	"github.com/spf13/cobra"
)

// DefaultAddr адрес сервера по умолчанию
const DefaultAddr = "http://localhost:8080"

// RootConfig общие флаги всех команд
type RootConfig struct {
	Addr    string
	Timeout time.Duration
}

// NewRootCmd собирает дерево команд riskctl
func NewRootCmd() *cobra.Command {
	rc := &RootConfig{}

	cmd := &cobra.Command{
		Use:   "riskctl",
		Short: "Управление гейтами риска tradegate",
		Long: `riskctl работает с запущенным сервером tradegate.

Команды:
  status                       состояние гейтов и бюджетов дня
  killswitch on|off            ручной kill switch
  limit global <usd>           глобальный дневной лимит убытка
  limit global --pct P --base B
  limit symbol <symbol> <usd>  лимит убытка по символу
  audit [--limit N]            последние переходы гейтов`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&rc.Addr, "addr", DefaultAddr, "адрес сервера tradegate")
	cmd.PersistentFlags().DurationVar(&rc.Timeout, "timeout", 10*time.Second, "таймаут HTTP запроса")

	cmd.AddCommand(
		newStatusCmd(rc),
		newKillSwitchCmd(rc),
		newLimitCmd(rc),
		newAuditCmd(rc),
	)

	return cmd
}
