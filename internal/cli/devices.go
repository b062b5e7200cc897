package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Manage registered push devices",
}

var devicesRegisterCmd = &cobra.Command{
	Use:   "register <token>",
	Short: "Register a device token for push alerts",
	Args:  cobra.ExactArgs(1),
	RunE:  runDevicesRegister,
}

var devicesRotateCmd = &cobra.Command{
	Use:   "rotate <endpoint-arn> <new-token>",
	Short: "Rotate the token behind an existing endpoint",
	Args:  cobra.ExactArgs(2),
	RunE:  runDevicesRotate,
}

var devicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered devices",
	RunE:  runDevicesList,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
	devicesCmd.AddCommand(devicesRegisterCmd)
	devicesCmd.AddCommand(devicesRotateCmd)
	devicesCmd.AddCommand(devicesListCmd)

	devicesRegisterCmd.Flags().String("user", "", "User identifier to attach to the registration")
	devicesListCmd.Flags().Bool("json", false, "Output as JSON")
}

func runDevicesRegister(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	reg, _, store, err := initRegistry(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	userID, _ := cmd.Flags().GetString("user")
	record, err := reg.Register(cmd.Context(), args[0], userID)
	if err != nil {
		return err
	}

	fmt.Printf("registered: endpoint=%s\n", record.EndpointARN)
	return nil
}

func runDevicesRotate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	reg, _, store, err := initRegistry(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	record, err := reg.RotateToken(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}

	fmt.Printf("rotated: endpoint=%s\n", record.EndpointARN)
	return nil
}

func runDevicesList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStore(cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer store.Close()

	records, err := store.List(cmd.Context())
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TOKEN\tENDPOINT\tUSER\tENABLED\tUPDATED")
	for _, r := range records {
		fmt.Fprintf(w, "%s...\t%s\t%s\t%t\t%s\n",
			r.Token[:8], r.EndpointARN, r.UserID, r.Enabled,
			r.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
