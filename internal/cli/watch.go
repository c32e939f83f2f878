package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tessro/sheetplayer/internal/tail"
)

var (
	watchNoEmoji   bool
	watchTimestamp bool
	watchFormat    string
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"tail"},
	Short:   "Follow playback changes in real-time",
	Long: `Poll the API service and print an event whenever something changes.

Events:
  - Track changes, with key, tempo and meter
  - Pause/Resume
  - Playback stopped
  - Audio features arriving or falling back to an estimate
  - Errors, and the end of the session when the token cannot be refreshed

Template fields for --format: .Time .Type .TrackID .Title .Artist .Album
.Key .Tempo .Meter .Estimated .Error`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchNoEmoji, "no-emoji", false, "disable emoji output")
	watchCmd.Flags().BoolVarP(&watchTimestamp, "timestamp", "t", false, "show timestamps")
	watchCmd.Flags().StringVarP(&watchFormat, "format", "f", "", "custom format template")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if _, err := tail.ParseTemplate(watchFormat); err != nil {
		return fmt.Errorf("invalid --format template: %w", err)
	}

	logger := newLogger(false)
	sess, err := newSession(logger)
	if err != nil {
		return err
	}

	// Emoji only when writing to a terminal
	emoji := !watchNoEmoji && isatty.IsTerminal(os.Stdout.Fd())
	formatter := tail.NewFormatter(
		tail.WithEmoji(emoji),
		tail.WithTimestamp(watchTimestamp),
		tail.WithTemplate(watchFormat),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := newPoller(sess, logger)
	watcher := tail.NewWatcher(p.Updates())
	if err := p.Start(ctx); err != nil {
		return err
	}
	defer p.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- watcher.Run(ctx)
	}()

	var sessionErr error
	for event := range watcher.Events() {
		fmt.Println(formatter.Format(event))
		if event.Type == tail.EventLoggedOut {
			sessionErr = event.Err
		}
	}

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return sessionErr
}
