package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessro/sheetplayer/internal/core"
)

var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Show the current track and its musical descriptor",
	Long: `Runs a single poll cycle: refreshes the token if needed, reads what is
playing and looks up its key, tempo and meter.`,
	RunE: runNow,
}

func init() {
	rootCmd.AddCommand(nowCmd)
}

func runNow(cmd *cobra.Command, args []string) error {
	sess, err := newSession(newLogger(false))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	token, err := sess.EnsureToken(ctx)
	if err != nil {
		return err
	}

	snap, err := sess.CurrentlyPlaying(ctx, token)
	if err != nil {
		return err
	}

	state := &core.PlayerState{Snapshot: snap}
	if snap.HasTrack() {
		d, err := sess.AudioFeatures(ctx, token, snap.Track.ID)
		if err != nil && Verbose() {
			fmt.Fprintf(os.Stderr, "audio features unavailable: %v\n", err)
		}
		state.AudioFeatures = d
	}

	if JSONOutput() {
		return printJSON(state)
	}
	printState(os.Stdout, state)
	return nil
}

func printState(w io.Writer, state *core.PlayerState) {
	snap := state.Snapshot
	if !snap.HasTrack() {
		fmt.Fprintln(w, "Nothing playing.")
		return
	}

	track := snap.Track
	fmt.Fprintf(w, "%s %s\n", StatusIcon(snap.IsPlaying), track.Name)
	fmt.Fprintf(w, "  %s\n", track.ArtistNames())
	if track.Album.Name != "" {
		fmt.Fprintf(w, "  %s\n", track.Album.Name)
	}
	fmt.Fprintf(w, "  %s %s %s\n",
		FormatDuration(snap.ProgressMS),
		FormatProgress(snap.ProgressMS, track.DurationMS, 30),
		FormatDuration(track.DurationMS))
	fmt.Fprintln(w)

	d := state.AudioFeatures
	if d == nil {
		fmt.Fprintln(w, "Audio features unavailable.")
		return
	}

	t := NewTable(w)
	t.Row("Key", d.KeySignature())
	t.Row("Tempo", fmt.Sprintf("%.0f BPM", d.Tempo))
	t.Row("Meter", d.Meter())
	t.Row("Danceability", percent(d.Danceability))
	t.Row("Energy", percent(d.Energy))
	t.Row("Valence", percent(d.Valence))
	t.Row("Acousticness", percent(d.Acousticness))
	t.Row("Instrumental", percent(d.Instrumentalness))
	if d.IsEstimated {
		t.Row("Source", "estimated")
	}
	t.Flush()
}

func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}
