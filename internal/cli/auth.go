package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tessro/rewind/internal/browser"
	"github.com/tessro/rewind/internal/spotify/auth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Spotify authentication",
	Long:  `Commands for managing Spotify OAuth authentication.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with Spotify",
	Long:  `Opens a browser to authenticate with Spotify using OAuth PKCE flow.`,
	RunE:  runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored Spotify credentials",
	Long:  `Removes the stored Spotify OAuth tokens from the local machine.`,
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	Long:  `Shows the current Spotify authentication status.`,
	RunE:  runAuthStatus,
}

func init() {
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	if err := requireClientID(); err != nil {
		return err
	}

	oauthCfg := auth.NewConfig(cfg.Spotify.ClientID, cfg.Spotify.RedirectURI)
	login := auth.NewLoginRequest()

	callbackServer, err := auth.NewCallbackServer(oauthCfg.RedirectURL)
	if err != nil {
		return fmt.Errorf("failed to start callback server: %w", err)
	}
	callbackServer.Start()
	defer func() { _ = callbackServer.Shutdown(context.Background()) }()

	authURL := login.AuthURL(oauthCfg)

	fmt.Println("Opening browser for Spotify authentication...")
	if err := browser.Open(authURL); err != nil {
		logger.Debug("browser open failed", zap.Error(err))
		fmt.Printf("Could not open browser automatically.\n")
		fmt.Printf("Please open this URL in your browser:\n\n%s\n\n", authURL)
	}

	fmt.Println("Waiting for authentication...")
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()
	ctx, stop := signalContext(ctx)
	defer stop()

	code, err := callbackServer.WaitForCode(ctx, login.State)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	fmt.Println("Exchanging code for tokens...")
	token, err := login.Exchange(ctx, oauthCfg, code)
	if err != nil {
		return err
	}

	storage, err := auth.NewTokenStorage("")
	if err != nil {
		return fmt.Errorf("failed to initialize token storage: %w", err)
	}
	if err := storage.Save(token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	c, err := spotifyClient(ctx)
	if err != nil {
		return err
	}
	user, err := c.GetCurrentUser(ctx)
	if err != nil {
		logger.Warn("fetching profile after login failed", zap.Error(err))
		fmt.Println("Authentication successful! Token stored.")
		return nil
	}

	if JSONOutput() {
		printJSON(map[string]any{
			"status":       "authenticated",
			"user_id":      user.ID,
			"display_name": user.DisplayName,
			"email":        user.Email,
			"product":      user.Product,
		})
	} else {
		fmt.Printf("Successfully authenticated as %s (%s)\n", user.DisplayName, user.Email)
	}

	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	storage, err := auth.NewTokenStorage("")
	if err != nil {
		return fmt.Errorf("failed to initialize token storage: %w", err)
	}

	if !storage.Exists() {
		if JSONOutput() {
			printJSON(map[string]string{"status": "not_authenticated"})
		} else {
			fmt.Println("Not authenticated with Spotify.")
		}
		return nil
	}

	if err := storage.Delete(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	if JSONOutput() {
		printJSON(map[string]string{"status": "logged_out"})
	} else {
		fmt.Println("Logged out of Spotify.")
	}

	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	storage, err := auth.NewTokenStorage("")
	if err != nil {
		return fmt.Errorf("failed to initialize token storage: %w", err)
	}

	token, err := storage.Load()
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}

	if token == nil {
		if JSONOutput() {
			printJSON(map[string]any{"authenticated": false})
		} else {
			fmt.Println("Not authenticated with Spotify.")
			fmt.Println("Run 'rewind auth login' to authenticate.")
		}
		return nil
	}

	if cfg.Spotify.ClientID == "" {
		if JSONOutput() {
			printJSON(map[string]any{
				"authenticated": true,
				"expired":       !token.Valid(),
				"expires_at":    token.Expiry,
			})
		} else if token.Valid() {
			fmt.Println("Authenticated with Spotify.")
		} else {
			fmt.Println("Authenticated but token expired.")
		}
		return nil
	}

	ctx := cmd.Context()
	c, err := spotifyClient(ctx)
	if err != nil {
		return err
	}

	user, err := c.GetCurrentUser(ctx)
	if err != nil {
		if JSONOutput() {
			printJSON(map[string]any{
				"authenticated": true,
				"expired":       true,
				"error":         err.Error(),
			})
		} else {
			fmt.Printf("Token may be expired or invalid: %v\n", err)
			fmt.Println("Run 'rewind auth login' to re-authenticate.")
		}
		return nil
	}

	// Reload: the call above may have refreshed and persisted a new token.
	if fresh, err := storage.Load(); err == nil && fresh != nil {
		token = fresh
	}

	if JSONOutput() {
		printJSON(map[string]any{
			"authenticated": true,
			"expired":       false,
			"user_id":       user.ID,
			"display_name":  user.DisplayName,
			"email":         user.Email,
			"product":       user.Product,
			"expires_at":    token.Expiry,
		})
	} else {
		fmt.Printf("Authenticated as: %s (%s)\n", user.DisplayName, user.Email)
		fmt.Printf("Account type: %s\n", user.Product)
		fmt.Printf("Token expires: %s (%s)\n", token.Expiry.Format(time.RFC3339), FormatAge(token.Expiry))
	}

	return nil
}
