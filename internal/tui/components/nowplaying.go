package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/sheetplayer/internal/core"
	"github.com/tessro/sheetplayer/internal/tui/styles"
)

// NowPlaying displays the currently playing track
type NowPlaying struct{}

// NewNowPlaying creates a new NowPlaying component
func NewNowPlaying() *NowPlaying {
	return &NowPlaying{}
}

// Render renders the now playing panel
func (n *NowPlaying) Render(snap *core.PlaybackSnapshot, width, height int, focused bool) string {
	title := styles.PanelTitle("Now Playing", focused)

	var content string
	if !snap.HasTrack() {
		content = styles.Muted.Render("Nothing playing")
	} else {
		content = n.renderTrack(snap, width-4)
	}

	panel := styles.Panel(focused).
		Width(width).
		Height(height)

	return panel.Render(lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		content,
	))
}

func (n *NowPlaying) renderTrack(snap *core.PlaybackSnapshot, width int) string {
	track := snap.Track

	icon := styles.StatusIcon(snap.IsPlaying)
	titleStyle := styles.Title.Width(max(width-4, 1))
	title := titleStyle.Render(track.Name)

	artist := styles.Subtitle.Render(track.ArtistNames())
	album := styles.Dim.Render(track.Album.Name)

	// Leave room for the times on either side
	progressWidth := max(width-14, 10)
	progressBar := styles.ProgressBar(snap.ProgressPercent(), progressWidth)
	progress := fmt.Sprintf("%s %s %s",
		FormatDuration(snap.ProgressMS),
		progressBar,
		FormatDuration(track.DurationMS))

	return lipgloss.JoinVertical(lipgloss.Left,
		icon+" "+title,
		"  "+artist,
		"  "+album,
		"",
		progress,
	)
}

// FormatDuration formats milliseconds as m:ss.
func FormatDuration(ms int) string {
	d := (time.Duration(ms) * time.Millisecond).Round(time.Second)
	if d < 0 {
		d = 0
	}
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d", m, s)
}
