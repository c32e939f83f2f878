// Package features derives audio descriptors for tracks, either from the
// provider or from a deterministic estimate keyed on the track id.
package features

import (
	"unicode/utf16"

	"github.com/tessro/sheetplayer/internal/core"
)

var timeSignatures = [5]int{3, 4, 5, 6, 7}

// Hash folds a track id into a 32-bit signed integer with h = h*31 + c over
// its UTF-16 code units, wrapping on overflow.
func Hash(id string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(id)) {
		h = h*31 + int32(c)
	}
	return h
}

func abs(x int32) int64 {
	v := int64(x)
	if v < 0 {
		return -v
	}
	return v
}

// Synthesize returns the estimated descriptor for id. The result depends on
// nothing but id.
func Synthesize(id string) core.AudioDescriptor {
	h := Hash(id)

	return core.AudioDescriptor{
		ID:               id,
		Key:              int(abs(h) % 12),
		Mode:             int(abs(h>>4) % 2),
		Tempo:            float64(60 + abs(h>>8)%140),
		TimeSignature:    timeSignatures[abs(h>>12)%5],
		Danceability:     0.30 + float64(abs(h>>16)%60)/100,
		Energy:           0.20 + float64(abs(h>>20)%70)/100,
		Valence:          0.10 + float64(abs(h>>24)%80)/100,
		Acousticness:     0.05 + float64(abs(h>>10)%70)/100,
		Instrumentalness: float64(abs(h>>14)%50) / 100,
		IsEstimated:      true,
	}
}
