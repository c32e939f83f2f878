package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tessro/sheetplayer/internal/browser"
	apperrors "github.com/tessro/sheetplayer/internal/errors"
	"github.com/tessro/sheetplayer/internal/spotify/auth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Spotify authentication",
	Long:  `Commands for managing Spotify OAuth authentication.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with Spotify",
	Long: `Opens a browser at the Spotify consent page provided by the API service
and waits for the redirect on the local callback port.`,
	RunE: runAuthLogin,
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

var loginTimeout time.Duration

func init() {
	authLoginCmd.Flags().DurationVar(&loginTimeout, "timeout", 5*time.Minute, "how long to wait for the browser redirect")
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	logger := newLogger(false)
	sess, err := newSession(logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), loginTimeout)
	defer cancel()

	// Fail fast when the API service is not running
	if err := sess.Backend().Health(ctx); err != nil {
		return err
	}

	authURL, err := sess.LoginURL(ctx)
	if err != nil {
		return fmt.Errorf("failed to get login url: %w", err)
	}

	uri, err := callbackURI()
	if err != nil {
		return fmt.Errorf("invalid redirect uri: %w", err)
	}
	callbackServer, err := auth.NewCallbackServer(uri)
	if err != nil {
		return fmt.Errorf("failed to start callback server: %w", err)
	}
	callbackServer.Start()
	defer func() { _ = callbackServer.Shutdown(context.Background()) }()

	fmt.Fprintln(os.Stderr, "Opening browser for Spotify authentication...")
	if err := browser.Open(authURL); err != nil {
		fmt.Fprintf(os.Stderr, "Could not open browser automatically.\n")
		fmt.Fprintf(os.Stderr, "Please open this URL in your browser:\n\n%s\n\n", authURL)
	}

	fmt.Fprintln(os.Stderr, "Waiting for authentication...")
	result, err := callbackServer.Wait(ctx)
	if err != nil {
		return fmt.Errorf("authentication timed out: %w", err)
	}
	if err := result.Err(); err != nil {
		return err
	}

	rec, err := sess.CompleteLogin(ctx, result.Code)
	if err != nil {
		return err
	}

	// The profile is informational; a failure here still leaves a valid login.
	user, err := sess.Backend().Me(ctx, rec.AccessToken)
	if err != nil {
		if JSONOutput() {
			return printJSON(map[string]interface{}{"status": "authenticated"})
		}
		fmt.Println("Authentication successful! Token stored.")
		return nil
	}

	if JSONOutput() {
		return printJSON(map[string]interface{}{
			"status":       "authenticated",
			"user_id":      user.ID,
			"display_name": user.DisplayName,
			"email":        user.Email,
			"product":      user.Product,
		})
	}
	fmt.Printf("Successfully authenticated as %s (%s)\n", user.DisplayName, user.Email)
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	sess, err := newSession(newLogger(false))
	if err != nil {
		return err
	}

	if !sess.Status().LoggedIn {
		if JSONOutput() {
			return printJSON(map[string]string{"status": "not_authenticated"})
		}
		fmt.Println("Not authenticated with Spotify.")
		return nil
	}

	if err := sess.Logout(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	if JSONOutput() {
		return printJSON(map[string]string{"status": "logged_out"})
	}
	fmt.Println("Logged out of Spotify.")
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	sess, err := newSession(newLogger(false))
	if err != nil {
		return err
	}

	st := sess.Status()
	if !st.LoggedIn {
		if JSONOutput() {
			return printJSON(map[string]interface{}{"authenticated": false})
		}
		fmt.Println("Not authenticated with Spotify.")
		fmt.Println(apperrors.GetSuggestion(apperrors.ErrNotAuthenticated) + ".")
		return nil
	}

	if JSONOutput() {
		return printJSON(map[string]interface{}{
			"authenticated": true,
			"valid":         st.Valid,
			"expiring_soon": st.ExpiringSoon,
			"expires_at":    st.ExpiresAt,
		})
	}

	switch {
	case !st.Valid:
		fmt.Printf("Token expired %s. It will be refreshed on next use.\n", humanize.Time(st.ExpiresAt))
	case st.ExpiringSoon:
		fmt.Printf("Authenticated. Token expires %s and will be refreshed on next use.\n", humanize.Time(st.ExpiresAt))
	default:
		fmt.Printf("Authenticated. Token expires %s.\n", humanize.Time(st.ExpiresAt))
	}

	if Verbose() {
		fmt.Printf("Expires at: %s\n", st.ExpiresAt.Local().Format(time.RFC3339))
	}
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
