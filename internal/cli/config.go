package cli

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/tessro/riffbar/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Commands for viewing and editing riffbar configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration, including defaults and RIFFBAR_* overrides.`,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the configuration file path",
	RunE:  runConfigPath,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long:  `Open the configuration file in your default editor.`,
	RunE:  runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long:  `Create a new configuration file with default values.`,
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for errors",
	RunE:  runConfigValidate,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value.

Examples:
  riffbar config set backend.url https://example.com/api/spotify
  riffbar config set sync.interval 2000
  riffbar config set backend.cached true`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

// Keys whose values are written as numbers or booleans rather than strings.
var (
	intKeys = map[string]bool{
		"backend.timeout": true, "backend.rate_limit": true,
		"sync.interval": true, "auth.refresh_interval": true,
		"search.debounce": true, "search.limit": true,
		"control.restart_threshold": true, "tui.queue_rows": true,
	}
	boolKeys = map[string]bool{"backend.cached": true}
)

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if JSONOutput() {
		return printJSON(cfg)
	}

	encoder := toml.NewEncoder(os.Stdout)
	encoder.Indent = "  "
	return encoder.Encode(cfg)
}

// getConfigPath returns the file in use, or where a new one would go.
func getConfigPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	if p := config.FindConfigFile(); p != "" {
		return p, nil
	}
	return config.DefaultPath()
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}
	_, statErr := os.Stat(path)
	if JSONOutput() {
		return printJSON(map[string]any{"path": path, "exists": statErr == nil})
	}
	fmt.Println(path)
	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configPath, err := getConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found at %s. Run 'riffbar config init' first", configPath)
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		for _, e := range []string{"nano", "vim", "vi", "notepad"} {
			if _, err := exec.LookPath(e); err == nil {
				editor = e
				break
			}
		}
	}
	if editor == "" {
		return fmt.Errorf("no editor found. Set EDITOR environment variable")
	}

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	return editorCmd.Run()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := cfgFile
	if configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return fmt.Errorf("locate config directory: %w", err)
		}
		configPath = p
	}

	if _, err := os.Stat(configPath); err == nil && !configForce {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
	}

	if err := config.Write(configPath, config.Default()); err != nil {
		return err
	}

	if JSONOutput() {
		return printJSON(map[string]string{"status": "created", "path": configPath})
	}
	fmt.Printf("Created config file: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Point backend.url at your backend, or set RIFFBAR_BACKEND_URL")
	fmt.Println("  2. Run 'riffbar auth login' to sign in")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	// The root hook already loaded and validated; reaching here means the
	// configuration is usable.
	path, _ := getConfigPath()
	return report("valid", fmt.Sprintf("Configuration OK (%s)", path))
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	configPath, err := getConfigPath()
	if err != nil {
		return err
	}

	raw := map[string]any{}
	if data, err := os.ReadFile(configPath); err == nil {
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read config: %w", err)
	}

	section, field, ok := strings.Cut(key, ".")
	if !ok || section == "" || field == "" {
		return fmt.Errorf("invalid key format. Use 'section.key' (e.g., sync.interval)")
	}

	var typed any = value
	switch {
	case intKeys[key]:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("value must be an integer for %s", key)
		}
		typed = n
	case boolKeys[key]:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("value must be true or false for %s", key)
		}
		typed = b
	}

	sectionMap, ok := raw[section].(map[string]any)
	if !ok {
		sectionMap = map[string]any{}
		raw[section] = sectionMap
	}
	sectionMap[field] = typed

	// Round-trip through the schema so a bad value never reaches disk.
	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(raw); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	next := &config.Config{}
	if _, err := toml.Decode(buf.String(), next); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	next.ApplyDefaults()
	if err := next.Validate(); err != nil {
		return err
	}

	if err := config.Write(configPath, next); err != nil {
		return err
	}

	if JSONOutput() {
		return printJSON(map[string]string{"status": "updated", "key": key, "value": value})
	}
	fmt.Printf("Set %s = %s\n", key, value)
	return nil
}
