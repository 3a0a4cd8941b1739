package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/psantana5/sitesync/pkg/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create the CLI configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  `Print the configuration after applying the config file, .env, SITESYNC_* variables and flags. The API key is masked.`,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default values",
	RunE:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = cfg.Redacted()
	if IsJSONOutput() {
		return printJSON(cfg)
	}
	data, err := cfg.Encode()
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, string(data))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}

	cfg := config.Default()
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if tenantID != "" {
		cfg.TenantID = tenantID
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := config.WriteFile(path, cfg, configForce); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Config written to %s\n", path)
	return nil
}
