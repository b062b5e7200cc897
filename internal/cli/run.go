package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloudspend/sentinel/internal/runner"
	"github.com/cloudspend/sentinel/pkg/costsource"
	"github.com/cloudspend/sentinel/pkg/dispatch"
	"github.com/cloudspend/sentinel/pkg/gateway"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one monitoring cycle: fetch spend, compare, alert",
	RunE:  runCycle,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Float64("threshold", 0, "Override the spend threshold in USD")
	runCmd.Flags().String("topic", "", "Override the alert topic ARN")
}

func runCycle(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if threshold, _ := cmd.Flags().GetFloat64("threshold"); threshold > 0 {
		cfg.Billing.ThresholdUSD = threshold
	}
	if topic, _ := cmd.Flags().GetString("topic"); topic != "" {
		cfg.Alerts.TopicARN = topic
	}
	if cfg.Alerts.TopicARN == "" {
		return fmt.Errorf("alerts.topic_arn is not configured")
	}

	logger := newLogger(cfg)
	ctx := cmd.Context()

	awsCfg, err := loadAWS(ctx, cfg)
	if err != nil {
		return err
	}

	policy, err := cfg.RetryPolicy()
	if err != nil {
		return err
	}

	costs := costsource.NewClient(awsCfg)
	dest := gateway.NewTopicDestination(awsCfg, cfg.Push.Sandbox)
	sink := initSink(awsCfg, cfg, logger)
	dispatcher := dispatch.New(dest, sink, policy, logger)

	r := runner.New(costs, dispatcher, cfg, logger)

	outcome, err := r.Cycle(ctx)
	if err != nil {
		return err
	}
	if outcome == nil {
		fmt.Println("spend under threshold, no alert sent")
		return nil
	}

	fmt.Printf("alert sent: message_id=%s channels=%v fallback=%t retries=%d\n",
		outcome.MessageID, outcome.Channels, outcome.FallbackUsed, outcome.Metrics.Retries)
	return nil
}
