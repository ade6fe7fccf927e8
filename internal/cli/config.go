package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/tessro/rewind/internal/config"
	rwerrors "github.com/tessro/rewind/internal/errors"
	"github.com/tessro/rewind/internal/spotify/connect"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Commands for viewing and editing rewind configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration, after defaults and environment overrides.`,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE:  runConfigPath,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long:  `Create a new configuration file with default values.`,
	RunE:  runConfigInit,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value.

Supported keys:
  ` + strings.Join(config.Keys(), "\n  ") + `

Examples:
  rewind config set spotify.client_id 0123456789abcdef
  rewind config set device.name "Kitchen"
  rewind config set recorder.silence_threshold_ms 100`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configSetDeviceCmd = &cobra.Command{
	Use:   "set-device",
	Short: "Interactively select default device",
	Long:  `Shows a picker to select the default device for recording and replay.`,
	RunE:  runConfigSetDevice,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetDeviceCmd)
	rootCmd.AddCommand(configCmd)
}

func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.Path()
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if JSONOutput() {
		printJSON(cfg)
		return nil
	}

	encoder := toml.NewEncoder(os.Stdout)
	encoder.Indent = "  "
	return encoder.Encode(cfg)
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path := getConfigPath()
	_, err := os.Stat(path)
	exists := err == nil

	if JSONOutput() {
		printJSON(map[string]any{"path": path, "exists": exists})
		return nil
	}
	fmt.Println(path)
	if !exists && Verbose() {
		fmt.Fprintln(os.Stderr, "(file does not exist yet)")
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists at %s", configPath)
	}

	if err := config.Write(configPath, config.Default()); err != nil {
		return err
	}

	if JSONOutput() {
		printJSON(map[string]string{
			"status": "created",
			"path":   configPath,
		})
	} else {
		fmt.Printf("Created config file: %s\n", configPath)
		fmt.Println("\nNext steps:")
		fmt.Println("  1. Set your Spotify client ID: rewind config set spotify.client_id <id>")
		fmt.Println("  2. Run 'rewind auth login' to authenticate with Spotify")
		fmt.Println("  3. Run 'rewind record' and press Ctrl+C when you are done")
	}

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return rwerrors.WithSuggestion(
			fmt.Errorf("%w at %s", rwerrors.ErrConfigNotFound, configPath),
			"Run 'rewind config init' first")
	}

	if err := config.Set(configPath, key, value); err != nil {
		return err
	}

	if JSONOutput() {
		printJSON(map[string]string{
			"status": "updated",
			"key":    key,
			"value":  value,
		})
	} else {
		fmt.Printf("Set %s = %s\n", key, value)
	}

	return nil
}

func runConfigSetDevice(cmd *cobra.Command, args []string) error {
	if !canInteract() {
		return rwerrors.WithSuggestion(
			fmt.Errorf("set-device needs an interactive terminal"),
			"Use 'rewind config set device.name <name>' instead")
	}

	ctx := cmd.Context()
	c, err := spotifyClient(ctx)
	if err != nil {
		return err
	}

	devices, err := connect.ListDevices(ctx, c)
	if err != nil {
		return fmt.Errorf("failed to get devices: %w", err)
	}
	if len(devices) == 0 {
		return fmt.Errorf("%w: no devices found. Make sure Spotify is open on at least one device", rwerrors.ErrDeviceNotReady)
	}

	dev, err := promptDevice("Select default device", devices)
	if err != nil {
		return err
	}

	// Device IDs can rotate between sessions; the name is the stable handle.
	configPath := getConfigPath()
	if err := config.Set(configPath, "device.name", dev.Name); err != nil {
		return err
	}
	fmt.Printf("Default device set to %s\n", dev.Name)
	return nil
}
