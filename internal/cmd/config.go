package cmd

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/wikinav/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage CLI configuration stored in ~/.config/wikinav/config.yaml.

Keys cover the page store (backend, pages_dir, page_ext), rendering
(wiki_url, title, default_toc, allowed_macros), the Roam backend
(base_url, graph_name, token, keyring_backend) and the CLI itself
(output_format, log_level). Run "wikinav config keys" for the list.`,
	Annotations: map[string]string{annotationNoConfig: "true"},
}

// configView is the config as key/value pairs, token masked.
type configView map[string]string

func (v configView) Text() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("Config:\n")
	for _, k := range keys {
		sb.WriteString("  " + k + ": " + v[k] + "\n")
	}
	return sb.String()
}

func newConfigView(cfg *config.Config) configView {
	view := configView{}
	for _, key := range config.Keys() {
		value, _ := cfg.Get(key)
		if key == "token" && value != "" {
			value = maskToken(value)
		}
		view[key] = value
	}
	return view
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfigFromFlag()
		if err != nil {
			return formatConfigLoadError(err)
		}
		return printResult(cmd, newConfigView(cfg))
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Unset a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigUnset,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List supported configuration keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResult(cmd, config.Keys())
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		if structuredOutputRequested() {
			return printResult(cmd, map[string]string{"path": path})
		}
		printf(cmd, "%s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configKeysCmd)
	configCmd.AddCommand(configPathCmd)

	rootCmd.AddCommand(configCmd)
}

// updateConfig loads the config file, applies fn and saves it.
func updateConfig(fn func(*config.Config) error) error {
	cfg, err := loadConfigFromFlag()
	if err != nil {
		return formatConfigLoadError(err)
	}
	if err := fn(cfg); err != nil {
		return err
	}
	path, err := configPath()
	if err != nil {
		return err
	}
	return cfg.Save(path)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := strings.ToLower(strings.TrimSpace(args[0]))
	value := strings.TrimSpace(args[1])

	if err := updateConfig(func(cfg *config.Config) error { return cfg.Set(key, value) }); err != nil {
		return err
	}

	if structuredOutputRequested() {
		if key == "token" {
			value = maskToken(value)
		}
		return printResult(cmd, map[string]string{
			"status": "updated",
			"key":    key,
			"value":  value,
		})
	}
	printf(cmd, "Updated %s\n", key)
	return nil
}

func runConfigUnset(cmd *cobra.Command, args []string) error {
	key := strings.ToLower(strings.TrimSpace(args[0]))

	if err := updateConfig(func(cfg *config.Config) error { return cfg.Unset(key) }); err != nil {
		return err
	}

	if structuredOutputRequested() {
		return printResult(cmd, map[string]string{
			"status": "unset",
			"key":    key,
		})
	}
	printf(cmd, "Unset %s\n", key)
	return nil
}
