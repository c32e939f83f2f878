package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tessro/sheetplayer/internal/config"
	"github.com/tessro/sheetplayer/internal/core"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   int
		want string
	}{
		{0, "0:00"},
		{59_999, "0:59"},
		{3_725_000, "1:02:05"},
		{-1000, "0:00"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.ms); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestFormatProgress(t *testing.T) {
	if got := FormatProgress(50, 100, 10); got != "━━━━━─────" {
		t.Errorf("unexpected half bar: %q", got)
	}
	if got := FormatProgress(200, 100, 4); got != "━━━━" {
		t.Errorf("expected full bar, got %q", got)
	}
	if got := FormatProgress(0, 0, 3); got != "───" {
		t.Errorf("expected empty bar, got %q", got)
	}
}

func TestPrintState(t *testing.T) {
	var buf bytes.Buffer
	printState(&buf, &core.PlayerState{})
	if !strings.Contains(buf.String(), "Nothing playing") {
		t.Errorf("unexpected output: %q", buf.String())
	}

	buf.Reset()
	printState(&buf, &core.PlayerState{
		Snapshot: &core.PlaybackSnapshot{
			Track: &core.TrackRef{
				ID:         "t1",
				Name:       "Giant Steps",
				Artists:    []core.Artist{{Name: "John Coltrane"}},
				DurationMS: 286_000,
			},
			IsPlaying:  true,
			ProgressMS: 30_000,
		},
		AudioFeatures: &core.AudioDescriptor{
			ID: "t1", Key: 11, Mode: 1, Tempo: 286.4, TimeSignature: 4,
			Energy: 0.62, IsEstimated: true,
		},
	})

	out := buf.String()
	for _, want := range []string{"● Giant Steps", "John Coltrane", "0:30", "4:46", "B Major", "286 BPM", "4/4", "62%", "estimated"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestPrintStateWithoutFeatures(t *testing.T) {
	var buf bytes.Buffer
	printState(&buf, &core.PlayerState{
		Snapshot: &core.PlaybackSnapshot{Track: &core.TrackRef{ID: "t1", Name: "Naima"}},
	})
	if !strings.Contains(buf.String(), "Audio features unavailable") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestCallbackURI(t *testing.T) {
	old := cfg
	t.Cleanup(func() { cfg = old })

	cfg = config.Default()
	cfg.Spotify.RedirectURI = "http://127.0.0.1:8888/callback"
	cfg.Client.CallbackPort = 9999

	got, err := callbackURI()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "http://127.0.0.1:9999/callback" {
		t.Errorf("unexpected callback uri: %s", got)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"serve", "relay", "auth", "now", "watch", "ui", "config", "version"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("expected command %q to be registered", name)
		}
	}
}
