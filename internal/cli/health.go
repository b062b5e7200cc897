package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloudspend/sentinel/pkg/health"
	"github.com/cloudspend/sentinel/pkg/model"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run one push-channel health and feedback cycle",
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	reg, gw, store, err := initRegistry(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	monitor := health.New(reg, gw, gw, cfg.Health.CertWarnDays, logger)
	report := monitor.Run(cmd.Context())

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}

	if report.Status == model.StatusCritical {
		return fmt.Errorf("push channel is unhealthy")
	}
	return nil
}
