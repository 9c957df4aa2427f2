package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/salmonumbrella/wikinav/internal/api"
	"github.com/salmonumbrella/wikinav/internal/config"
	"github.com/salmonumbrella/wikinav/internal/secrets"
	"github.com/salmonumbrella/wikinav/internal/store"
)

const (
	// defaultProfile is the profile name used for credentials
	defaultProfile = "default"
	// graphKeyPrefix is used for storing graph name in keyring
	graphKeyPrefix = "graph:"
)

// loadConfigFromFlag loads config from --config if provided, otherwise from default path.
func loadConfigFromFlag() (*config.Config, error) {
	if strings.TrimSpace(configFile) != "" {
		return config.Load(configFile)
	}
	return config.ReadConfig()
}

func configPath() (string, error) {
	if strings.TrimSpace(configFile) != "" {
		return configFile, nil
	}
	return config.DefaultConfigPath()
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil {
		return false
	}
	if cmd.Flags().Changed(name) {
		return true
	}
	return cmd.InheritedFlags().Changed(name)
}

// firstNonEmpty returns the first value that is not blank.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// flagValue returns value only when the flag was set on the command line.
func flagValue(cmd *cobra.Command, name, value string) string {
	if !flagChanged(cmd, name) {
		return ""
	}
	return value
}

// newPageStore opens the page store named by --backend, WIKINAV_BACKEND
// or the config file. The dir backend is the default.
func newPageStore(cmd *cobra.Command, cfg *config.Config, log *zap.Logger) (store.PageStore, error) {
	backend := firstNonEmpty(flagValue(cmd, "backend", backendName), envGet("WIKINAV_BACKEND"), cfg.Backend, config.BackendDir)

	switch backend {
	case config.BackendDir:
		root := firstNonEmpty(flagValue(cmd, "pages-dir", pagesDir), envGet("WIKINAV_PAGES_DIR"), cfg.PagesDir, ".")
		log.Debug("Using page directory", zap.String("dir", root))
		return store.NewDir(root, cfg.PageExt), nil
	case config.BackendRoam:
		client, err := newRoamClient(cmd, cfg, log)
		if err != nil {
			return nil, err
		}
		log.Debug("Using Roam graph", zap.String("graph", client.GraphName()))
		return store.NewRoam(client, store.WithRoamLogger(log)), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (expected dir|roam)", backend)
	}
}

// newRoamClient connects to the graph named by the resolved credentials.
func newRoamClient(cmd *cobra.Command, cfg *config.Config, log *zap.Logger) (api.RoamAPI, error) {
	token, graph, mode := resolveCredentials(cmd, cfg)

	// encrypted graphs are served by the desktop app without a token
	if token == "" && mode != secrets.ModeEncrypted {
		return nil, fmt.Errorf("API token required. Set ROAM_API_TOKEN or use --token flag.\nRun 'wikinav auth login' to configure authentication.")
	}
	if graph == "" {
		return nil, fmt.Errorf("graph name required. Set ROAM_GRAPH_NAME or use --graph flag")
	}

	client, err := newClientFromCredsFunc(graph, token, mode, log, clientOptionsFromConfig(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	return client, nil
}

// resolveCredentials resolves token/graph/mode with precedence:
// flags > env > keyring > config. Mode comes from --local or the keyring.
func resolveCredentials(cmd *cobra.Command, cfg *config.Config) (token, graph, mode string) {
	if useLocal {
		mode = secrets.ModeEncrypted
	}

	token = firstNonEmpty(flagValue(cmd, "token", apiToken), envGet("ROAM_API_TOKEN"))
	graph = firstNonEmpty(flagValue(cmd, "graph", graphName), envGet("ROAM_GRAPH_NAME"))

	if token == "" || graph == "" {
		if s, err := openSecretsStore(); err == nil {
			if token == "" {
				if tok, err := s.GetToken(defaultProfile); err == nil {
					token = tok.RefreshToken
					if mode == "" {
						mode = tok.Mode
					}
				}
			}
			if graph == "" {
				if graphTok, err := s.GetToken(graphKeyPrefix + defaultProfile); err == nil {
					graph = graphTok.RefreshToken
				}
			}
		}
	}

	if cfg != nil {
		token = firstNonEmpty(token, cfg.Token)
		graph = firstNonEmpty(graph, cfg.GraphName)
	}
	return token, graph, mode
}

// clientOptionsFromConfig builds API client options from config.
func clientOptionsFromConfig(cfg *config.Config) []api.ClientOption {
	if cfg == nil || strings.TrimSpace(cfg.BaseURL) == "" {
		return nil
	}
	return []api.ClientOption{api.WithBaseURL(strings.TrimSpace(cfg.BaseURL))}
}

func formatConfigLoadError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("load config: %w", err)
}
