package tail

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Formatter formats events for output.
type Formatter struct {
	showEmoji     bool
	showTimestamp bool
	template      *template.Template
}

// FormatterOption configures a Formatter.
type FormatterOption func(*Formatter)

// WithEmoji enables emoji output.
func WithEmoji(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showEmoji = enabled
	}
}

// WithTimestamp enables timestamp output.
func WithTimestamp(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showTimestamp = enabled
	}
}

// WithTemplate sets a custom format template. An invalid template is
// reported as an error by ParseTemplate and ignored here.
func WithTemplate(tmpl string) FormatterOption {
	return func(f *Formatter) {
		if t, err := ParseTemplate(tmpl); err == nil {
			f.template = t
		}
	}
}

// ParseTemplate parses a --format template. An empty string yields nil.
func ParseTemplate(tmpl string) (*template.Template, error) {
	if tmpl == "" {
		return nil, nil
	}
	return template.New("format").Parse(tmpl)
}

// NewFormatter creates a new formatter with the given options.
func NewFormatter(opts ...FormatterOption) *Formatter {
	f := &Formatter{
		showEmoji:     true,
		showTimestamp: false,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format formats an event as a string.
func (f *Formatter) Format(e Event) string {
	if f.template != nil {
		return f.formatTemplate(e)
	}
	return f.formatLine(e)
}

func (f *Formatter) formatLine(e Event) string {
	var parts []string

	if f.showTimestamp {
		parts = append(parts, e.Timestamp.Format("15:04:05"))
	}

	if f.showEmoji {
		parts = append(parts, eventEmoji(e.Type))
	}

	parts = append(parts, f.eventDescription(e))

	return strings.Join(parts, " ")
}

func (f *Formatter) formatTemplate(e Event) string {
	data := templateData{
		Type:      eventTypeName(e.Type),
		Emoji:     eventEmoji(e.Type),
		Timestamp: e.Timestamp,
		Time:      e.Timestamp.Format("15:04:05"),
	}

	if e.Err != nil {
		data.Error = e.Err.Error()
	}

	if e.Current != nil && e.Current.Snapshot.HasTrack() {
		t := e.Current.Snapshot.Track
		data.TrackID = t.ID
		data.Title = t.Name
		data.Artist = t.ArtistNames()
		data.Album = t.Album.Name
	}

	if e.Current != nil && e.Current.AudioFeatures != nil {
		d := e.Current.AudioFeatures
		data.Key = d.KeySignature()
		data.Tempo = d.Tempo
		data.Meter = d.Meter()
		data.Estimated = d.IsEstimated
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		return f.formatLine(e)
	}
	return buf.String()
}

type templateData struct {
	Type      string
	Emoji     string
	Timestamp time.Time
	Time      string
	TrackID   string
	Title     string
	Artist    string
	Album     string
	Key       string
	Tempo     float64
	Meter     string
	Estimated bool
	Error     string
}

// eventDescription returns a human-readable description of the event.
func (f *Formatter) eventDescription(e Event) string {
	switch e.Type {
	case EventTrackChange:
		if e.Current != nil && e.Current.Snapshot.HasTrack() {
			t := e.Current.Snapshot.Track
			return fmt.Sprintf("Now playing: %s - %s", t.ArtistNames(), t.Name)
		}
		return "Track changed"

	case EventPause:
		return "Paused"

	case EventResume:
		return "Resumed"

	case EventStopped:
		return "Nothing playing"

	case EventFeatures:
		if e.Current != nil && e.Current.AudioFeatures != nil {
			d := e.Current.AudioFeatures
			desc := fmt.Sprintf("%s, %.0f BPM, %s", d.KeySignature(), d.Tempo, d.Meter())
			if d.IsEstimated {
				desc += " (estimated)"
			}
			return desc
		}
		return "Audio features"

	case EventError:
		if e.Err != nil {
			return "Error: " + e.Err.Error()
		}
		return "Error"

	case EventLoggedOut:
		return "Session ended. Run 'sheetplayer auth login' to sign in again"

	default:
		return "Unknown event"
	}
}

// eventEmoji returns an emoji for the event type.
func eventEmoji(t EventType) string {
	switch t {
	case EventTrackChange:
		return "🎵"
	case EventPause:
		return "⏸️"
	case EventResume:
		return "▶️"
	case EventStopped:
		return "⏹️"
	case EventFeatures:
		return "🎼"
	case EventError:
		return "⚠️"
	case EventLoggedOut:
		return "🔒"
	default:
		return "❓"
	}
}

// eventTypeName returns the name of the event type.
func eventTypeName(t EventType) string {
	switch t {
	case EventTrackChange:
		return "track_change"
	case EventPause:
		return "pause"
	case EventResume:
		return "resume"
	case EventStopped:
		return "stopped"
	case EventFeatures:
		return "features"
	case EventError:
		return "error"
	case EventLoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}
