package naming

import (
	"fmt"
	"regexp"
	"strings"
)

// BPM values outside this window are almost certainly bar numbers or
// version suffixes, not tempos.
const (
	BPMMin = 60
	BPMMax = 200
)

// InvalidFilenameChars are replaced by underscores when a track or group
// name is turned into a filename.
const InvalidFilenameChars = `<>:"/\|?*`

var (
	bpmPattern = regexp.MustCompile(`(?i)(\d{2,3})\s*(?:bpm)?`)
	keyPattern = regexp.MustCompile(`(?i)\b([A-G][#b]?)\s*(min|maj|minor|major|m)?\b`)
)

// ParseKeyAndBPM extracts a musical key and tempo from a free-text track or
// group name. Common patterns:
//
//	"Amin - 143bpm"   -> ("Amin", 143)
//	"Song Cmaj 120"   -> ("Cmaj", 120)
//	"Track 140bpm Fm" -> ("Fmin", 140)
//
// Either result may be empty/zero when the name carries no usable hint.
func ParseKeyAndBPM(name string) (key string, bpm int) {
	if m := bpmPattern.FindStringSubmatch(name); m != nil {
		var v int
		fmt.Sscanf(m[1], "%d", &v)
		if v >= BPMMin && v <= BPMMax {
			bpm = v
		}
	}

	if m := keyPattern.FindStringSubmatch(name); m != nil {
		note := strings.ToUpper(m[1][:1])
		if len(m[1]) > 1 {
			note += m[1][1:]
		}
		switch strings.ToLower(m[2]) {
		case "min", "minor", "m":
			key = note + "min"
		case "maj", "major":
			key = note + "maj"
		default:
			key = note
		}
	}

	return key, bpm
}

// SanitizeFilename replaces filesystem-unsafe characters with underscores
// and trims surrounding whitespace.
func SanitizeFilename(name string) string {
	result := name
	for _, c := range InvalidFilenameChars {
		result = strings.ReplaceAll(result, string(c), "_")
	}
	return strings.TrimSpace(result)
}

// SuggestFilename builds an export filename (without extension) from track
// metadata. The group name is the preferred source for key and tempo hints,
// the track name fills in whatever the group left open, and the live set
// tempo is the fallback BPM.
func SuggestFilename(trackName, groupName string, tempo float64) string {
	var key string
	var bpm int

	if groupName != "" {
		key, bpm = ParseKeyAndBPM(groupName)
	}
	if key == "" || bpm == 0 {
		trackKey, trackBPM := ParseKeyAndBPM(trackName)
		if key == "" {
			key = trackKey
		}
		if bpm == 0 {
			bpm = trackBPM
		}
	}
	if bpm == 0 && tempo > 0 {
		bpm = int(tempo)
	}

	parts := []string{SanitizeFilename(trackName)}
	if key != "" {
		parts = append(parts, key)
	}
	if bpm != 0 {
		parts = append(parts, fmt.Sprintf("%dbpm", bpm))
	}
	return strings.Join(parts, "_")
}
