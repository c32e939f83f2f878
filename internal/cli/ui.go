package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	apperrors "github.com/tessro/sheetplayer/internal/errors"
	"github.com/tessro/sheetplayer/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:     "ui",
	Aliases: []string{"tui"},
	Short:   "Launch interactive dashboard",
	Long: `Launch the live terminal dashboard.

The dashboard shows the current track and its sheet: key signature,
tempo, meter and descriptor bars. It refreshes on every poll.

Keyboard shortcuts:
  q, Ctrl+C    Quit
  ?            Help
  Tab          Switch panel`,
	RunE: runUI,
}

func init() {
	rootCmd.AddCommand(uiCmd)
}

func runUI(cmd *cobra.Command, args []string) error {
	logger := newLogger(true)
	sess, err := newSession(logger)
	if err != nil {
		return err
	}

	if !sess.Status().LoggedIn {
		return apperrors.ErrNotAuthenticated
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()

	return tui.Run(ctx, newPoller(sess, logger))
}
