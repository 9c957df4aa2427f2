package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/salmonumbrella/wikinav/internal/api"
	"github.com/salmonumbrella/wikinav/internal/secrets"
)

// verifyQuery counts the pages of a graph.
const verifyQuery = "[:find (count ?p) :where [?p :node/title]]"

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Roam credentials",
	Long: `Manage the credentials of the roam backend.

Credentials are stored in your system keychain (macOS Keychain, Windows
Credential Manager, or an encrypted file on Linux).

Examples:
  wikinav auth login --token YOUR_API_TOKEN --graph your-graph-name
  wikinav auth login  # prompts for token and graph
  wikinav auth status --verify
  wikinav auth logout`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store Roam credentials",
	Long: `Store the API token and graph name used by the roam backend.

To obtain an API token open the graph settings in Roam, go to the API
Tokens section and generate a read-only token.

Encrypted graphs are read through the desktop app, which must be running
with the encrypted local API enabled; they need no token.

Examples:
  wikinav auth login
  wikinav auth login --token TOKEN --graph GRAPH
  wikinav auth login --graph GRAPH --encrypted-graph`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear stored credentials",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current authentication status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var (
	loginToken     string
	loginGraph     string
	encryptedGraph bool
	verifyAuth     bool
)

func init() {
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(authCmd)

	loginCmd.Flags().StringVar(&loginToken, "token", "", "API token")
	loginCmd.Flags().StringVar(&loginGraph, "graph", "", "Graph name")
	loginCmd.Flags().BoolVar(&encryptedGraph, "encrypted-graph", false, "Read an encrypted graph through the desktop app")

	statusCmd.Flags().BoolVar(&verifyAuth, "verify", false, "Verify credentials with the API")
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	structured := structuredOutputRequested()

	store, err := openSecretsStore()
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}

	mode := secrets.ModeCloud
	if encryptedGraph {
		mode = secrets.ModeEncrypted
	}

	token := firstNonEmpty(loginToken, envGet("ROAM_API_TOKEN"))
	if token == "" && mode == secrets.ModeCloud {
		if token, err = promptSecret(ctx, "Enter API token: "); err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
		if token == "" {
			return fmt.Errorf("API token is required")
		}
	}

	graph := firstNonEmpty(loginGraph, envGet("ROAM_GRAPH_NAME"))
	if graph == "" {
		if graph, err = promptString(ctx, "Enter graph name: "); err != nil {
			return fmt.Errorf("failed to read graph name: %w", err)
		}
		if graph == "" {
			return fmt.Errorf("graph name is required")
		}
	}

	if mode == secrets.ModeEncrypted {
		if home, err := os.UserHomeDir(); err == nil {
			if _, err := os.Stat(filepath.Join(home, api.PortFilePath)); os.IsNotExist(err) {
				return api.DesktopNotRunningError{Message: "encrypted graph requires the Roam desktop app to be running with the local API enabled"}
			}
		}
	}

	if !structured {
		printf(cmd, "Verifying credentials...\n")
	}
	pages, err := verifyCredentials(ctx, graph, token, mode)
	if err != nil {
		var authErr api.AuthenticationError
		if errors.As(err, &authErr) {
			return fmt.Errorf("authentication failed: invalid API token")
		}
		if !structured {
			printf(cmd, "Warning: Could not verify credentials: %v\nProceeding with credential storage...\n", err)
		}
	} else if !structured {
		printf(cmd, "Credentials verified: %d pages in %s\n", pages, graph)
	}

	now := time.Now().UTC()
	if err := store.SetToken(defaultProfile, secrets.Token{Profile: defaultProfile, RefreshToken: token, Mode: mode, CreatedAt: now}); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}
	graphProfile := graphKeyPrefix + defaultProfile
	if err := store.SetToken(graphProfile, secrets.Token{Profile: graphProfile, RefreshToken: graph, CreatedAt: now}); err != nil {
		return fmt.Errorf("failed to store graph name: %w", err)
	}
	if err := store.SetDefaultAccount(defaultProfile); err != nil {
		return fmt.Errorf("failed to set default account: %w", err)
	}

	if structured {
		return printResult(cmd, map[string]interface{}{
			"status": "authenticated",
			"graph":  graph,
			"mode":   mode,
		})
	}
	printf(cmd, "\nAuthenticated. Graph: %s (%s)\n", graph, mode)
	printf(cmd, "Set backend to roam to read TOC pages from it: wikinav config set backend roam\n")
	return nil
}

// verifyCredentials counts the pages of graph with a fresh client.
func verifyCredentials(ctx context.Context, graph, token, mode string) (int, error) {
	cfg, err := loadConfigFromFlag()
	if err != nil {
		return 0, formatConfigLoadError(err)
	}
	client, err := newClientFromCredsFunc(graph, token, mode, logger, clientOptionsFromConfig(cfg)...)
	if err != nil {
		return 0, fmt.Errorf("failed to create API client: %w", err)
	}
	rows, err := client.Query(ctx, verifyQuery)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	if n, ok := rows[0][0].(float64); ok {
		return int(n), nil
	}
	return 0, nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	store, err := openSecretsStore()
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}

	for _, profile := range []string{defaultProfile, graphKeyPrefix + defaultProfile} {
		if err := store.DeleteToken(profile); err != nil && !errors.Is(err, secrets.ErrNotFound) && !strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("failed to remove credentials: %w", err)
		}
	}

	if structuredOutputRequested() {
		return printResult(cmd, map[string]string{"status": "logged_out"})
	}
	printf(cmd, "Logged out. Credentials have been removed from the system keychain.\n")
	return nil
}

// authStatus is the output of auth status.
type authStatus struct {
	Authenticated   bool   `json:"authenticated" yaml:"authenticated"`
	Profile         string `json:"profile,omitempty" yaml:"profile,omitempty"`
	Graph           string `json:"graph,omitempty" yaml:"graph,omitempty"`
	Mode            string `json:"mode,omitempty" yaml:"mode,omitempty"`
	AuthenticatedAt string `json:"authenticated_at,omitempty" yaml:"authenticated_at,omitempty"`
	TokenPreview    string `json:"token_preview,omitempty" yaml:"token_preview,omitempty"`
	Verified        *bool  `json:"verified,omitempty" yaml:"verified,omitempty"`
	Pages           int    `json:"pages,omitempty" yaml:"pages,omitempty"`
	VerifyError     string `json:"verify_error,omitempty" yaml:"verify_error,omitempty"`
}

func (s authStatus) Text() string {
	if !s.Authenticated {
		return "Status: Not authenticated\n\nRun 'wikinav auth login' to authenticate.\n"
	}

	var sb strings.Builder
	sb.WriteString("Status: Authenticated\n")
	fmt.Fprintf(&sb, "Profile: %s\n", s.Profile)
	if s.AuthenticatedAt != "" {
		fmt.Fprintf(&sb, "Authenticated at: %s\n", s.AuthenticatedAt)
	}
	if s.Graph != "" {
		fmt.Fprintf(&sb, "Graph: %s\n", s.Graph)
	} else {
		sb.WriteString("Graph: Not configured\n")
	}
	fmt.Fprintf(&sb, "Type: %s\n", s.Mode)
	if s.TokenPreview != "" {
		fmt.Fprintf(&sb, "Token: %s\n", s.TokenPreview)
	}
	switch {
	case s.Verified == nil:
	case *s.Verified:
		fmt.Fprintf(&sb, "Verification: OK - %d pages\n", s.Pages)
	default:
		fmt.Fprintf(&sb, "Verification: FAILED - %s\n", s.VerifyError)
	}
	return sb.String()
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := openSecretsStore()
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}

	tok, err := store.GetToken(defaultProfile)
	if err != nil {
		return printResult(cmd, authStatus{})
	}

	status := authStatus{
		Authenticated: true,
		Profile:       tok.Profile,
		Mode:          tok.Mode,
	}
	if status.Mode == "" {
		status.Mode = secrets.ModeCloud
	}
	if graphTok, err := store.GetToken(graphKeyPrefix + defaultProfile); err == nil {
		status.Graph = graphTok.RefreshToken
	}
	if !tok.CreatedAt.IsZero() {
		status.AuthenticatedAt = tok.CreatedAt.Format(time.RFC3339)
	}
	if tok.RefreshToken != "" {
		status.TokenPreview = maskToken(tok.RefreshToken)
	}

	if verifyAuth {
		ok := false
		if status.Graph == "" {
			status.VerifyError = "graph name not configured"
		} else if pages, err := verifyCredentials(cmd.Context(), status.Graph, tok.RefreshToken, tok.Mode); err != nil {
			var authErr api.AuthenticationError
			if errors.As(err, &authErr) {
				status.VerifyError = "invalid or expired token"
			} else {
				status.VerifyError = err.Error()
			}
		} else {
			ok = true
			status.Pages = pages
		}
		status.Verified = &ok
	}

	return printResult(cmd, status)
}

// promptString prompts for a string input
func promptString(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(stderrFromContext(ctx), prompt)
	input, err := readLine(stdinFromContext(ctx))
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// readLine reads up to and including the next newline. It reads one byte
// at a time so that later prompts still see the rest of the input.
func readLine(r io.Reader) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			sb.WriteByte(buf[0])
			if buf[0] == '\n' {
				return sb.String(), nil
			}
		}
		if err != nil {
			return sb.String(), err
		}
	}
}

// promptSecret prompts for a secret input (no echo)
func promptSecret(ctx context.Context, prompt string) (string, error) {
	in := stdinFromContext(ctx)
	if file, ok := in.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		fmt.Fprint(stderrFromContext(ctx), prompt)
		password, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(stderrFromContext(ctx))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(password)), nil
	}
	return promptString(ctx, prompt)
}

// maskToken masks a token for display, showing only first and last 4 characters
func maskToken(token string) string {
	if len(token) <= 12 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
