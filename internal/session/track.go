// Package session models the track structure of the open Live set and
// answers the "what should be exported" questions.
package session

import "github.com/audiolibrelab/liveexport/internal/osc"

// View selects which clip collection a track is analyzed from.
type View string

const (
	ViewArrangement View = "arrangement"
	ViewSession     View = "session"
)

// Track is one track of the Live set together with its clips.
type Track struct {
	Index      int
	Name       string
	Muted      bool
	IsGroup    bool
	IsGrouped  bool
	GroupIndex int // -1 when not grouped
	Clips      []osc.Clip
}

// Enabled reports whether the track takes part in exports (not muted).
func (t Track) Enabled() bool {
	return !t.Muted
}

// HasAudio reports whether the track carries any clips.
func (t Track) HasAudio() bool {
	return len(t.Clips) > 0
}

// AudioStart returns the earliest clip start in beats. The second result is
// false when the track has no clips.
func (t Track) AudioStart() (float64, bool) {
	if len(t.Clips) == 0 {
		return 0, false
	}
	start := t.Clips[0].Start
	for _, c := range t.Clips[1:] {
		if c.Start < start {
			start = c.Start
		}
	}
	return start, true
}

// AudioEnd returns the latest clip end in beats.
func (t Track) AudioEnd() (float64, bool) {
	if len(t.Clips) == 0 {
		return 0, false
	}
	end := t.Clips[0].Start + t.Clips[0].Length
	for _, c := range t.Clips[1:] {
		if e := c.Start + c.Length; e > end {
			end = e
		}
	}
	return end, true
}

// Group is a group track plus the tracks nested under it.
type Group struct {
	Track    Track
	Children []Track
}

// AudioStart returns the earliest clip start across all children.
func (g Group) AudioStart() (float64, bool) {
	found := false
	var start float64
	for _, t := range g.Children {
		if s, ok := t.AudioStart(); ok && (!found || s < start) {
			start = s
			found = true
		}
	}
	return start, found
}

// AudioEnd returns the latest clip end across all children.
func (g Group) AudioEnd() (float64, bool) {
	found := false
	var end float64
	for _, t := range g.Children {
		if e, ok := t.AudioEnd(); ok && (!found || e > end) {
			end = e
			found = true
		}
	}
	return end, found
}

// EnabledTracksWithAudio returns the children that are unmuted and carry
// clips. These are the tracks a group export renders.
func (g Group) EnabledTracksWithAudio() []Track {
	var out []Track
	for _, t := range g.Children {
		if t.Enabled() && t.HasAudio() {
			out = append(out, t)
		}
	}
	return out
}
