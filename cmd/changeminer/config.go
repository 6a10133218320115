package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/changeminer/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage changeminer configuration",
	Long:  `View, validate and initialise changeminer configuration and stored secrets.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for errors",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret <item>",
	Short: "Store a secret in the OS keychain",
	Long: `Store a secret in the OS keychain. The value is read from stdin without echo.

Items:
  neo4j-password   neo4j.password
  postgres-dsn     storage.postgres_dsn

Environment variables still take precedence over the keychain.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigSetSecret,
}

var configDeleteSecretCmd = &cobra.Command{
	Use:   "delete-secret <item>",
	Short: "Remove a secret from the OS keychain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.NewKeyringManager(logger).Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %s from the keychain\n", args[0])
		return nil
	},
}

var forceInit bool

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetSecretCmd)
	configCmd.AddCommand(configDeleteSecretCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	data, err := cfg.Redacted().YAML()
	if err != nil {
		return err
	}
	fmt.Print(string(data))

	fmt.Println("\n# secret sources")
	for _, item := range config.SecretItems {
		fmt.Printf("#   %-15s %s\n", item, cfg.SecretSource(item))
	}
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	result := cfg.Validate()
	if result.HasErrors() {
		return result.Err()
	}
	for _, w := range result.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	fmt.Println("Configuration is valid")
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath()
	if _, err := os.Stat(path); err == nil && !forceInit {
		fmt.Printf("Configuration file already exists at %s (use --force to overwrite)\n", path)
		return nil
	}

	if err := config.Default().Save(path); err != nil {
		return err
	}
	fmt.Printf("Created configuration file: %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Optionally store database secrets: changeminer config set-secret postgres-dsn")
	fmt.Println("  2. Mine a repository: changeminer mine <path-or-url>")
	return nil
}

func runConfigSetSecret(cmd *cobra.Command, args []string) error {
	km := config.NewKeyringManager(logger)
	if !km.IsAvailable() {
		return fmt.Errorf("OS keychain not available; set the value through the environment instead")
	}

	value, err := config.ReadSecret(os.Stdin, os.Stderr, fmt.Sprintf("Value for %s: ", args[0]))
	if err != nil {
		return err
	}
	if err := km.Set(args[0], value); err != nil {
		return err
	}
	fmt.Printf("Stored %s (%s) in the keychain\n", args[0], config.MaskSecret(value))
	return nil
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".changeminer", config.FileName+".yaml")
}
