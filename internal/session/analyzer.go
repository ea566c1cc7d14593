package session

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/audiolibrelab/liveexport/internal/osc"
)

// Querier is the slice of the OSC client the analyzer depends on.
type Querier interface {
	TrackCount() (int, error)
	TrackName(index int) (string, error)
	TrackMuted(index int) (bool, error)
	TrackIsGroup(index int) (bool, error)
	TrackIsGrouped(index int) (bool, error)
	TrackGroupIndex(index int) (int, error)
	ArrangementClips(index int) ([]osc.Clip, error)
	SessionClips(index int) ([]osc.Clip, error)
}

// Analyzer reads the track structure of the open Live set. Call Refresh
// before using the accessors; the snapshot is not kept in sync with Live.
type Analyzer struct {
	querier Querier
	view    View

	tracks []Track
	groups []Group
}

// NewAnalyzer creates an analyzer over the given query capability.
func NewAnalyzer(querier Querier, view View) *Analyzer {
	if view == "" {
		view = ViewArrangement
	}
	return &Analyzer{querier: querier, view: view}
}

// Refresh re-reads all tracks and rebuilds the group structure.
func (a *Analyzer) Refresh() error {
	count, err := a.querier.TrackCount()
	if err != nil {
		return fmt.Errorf("failed to read track count: %w", err)
	}
	slog.Debug("Refreshing session snapshot", "tracks", count, "view", a.view)

	tracks := make([]Track, 0, count)
	for i := 0; i < count; i++ {
		track, err := a.buildTrack(i)
		if err != nil {
			return fmt.Errorf("failed to read track %d: %w", i, err)
		}
		tracks = append(tracks, track)
	}

	var groups []Group
	for _, t := range tracks {
		if !t.IsGroup {
			continue
		}
		group := Group{Track: t}
		for _, child := range tracks {
			if child.GroupIndex == t.Index && child.Index != t.Index {
				group.Children = append(group.Children, child)
			}
		}
		groups = append(groups, group)
	}

	a.tracks = tracks
	a.groups = groups
	return nil
}

func (a *Analyzer) buildTrack(index int) (Track, error) {
	name, err := a.querier.TrackName(index)
	if err != nil {
		return Track{}, err
	}
	muted, err := a.querier.TrackMuted(index)
	if err != nil {
		return Track{}, err
	}
	isGroup, err := a.querier.TrackIsGroup(index)
	if err != nil {
		return Track{}, err
	}
	isGrouped, err := a.querier.TrackIsGrouped(index)
	if err != nil {
		return Track{}, err
	}
	groupIndex := -1
	if isGrouped {
		groupIndex, err = a.querier.TrackGroupIndex(index)
		if err != nil {
			return Track{}, err
		}
	}

	var clips []osc.Clip
	if a.view == ViewSession {
		clips, err = a.querier.SessionClips(index)
	} else {
		clips, err = a.querier.ArrangementClips(index)
	}
	if err != nil {
		return Track{}, err
	}

	return Track{
		Index:      index,
		Name:       name,
		Muted:      muted,
		IsGroup:    isGroup,
		IsGrouped:  isGrouped,
		GroupIndex: groupIndex,
		Clips:      clips,
	}, nil
}

// Tracks returns the last snapshot.
func (a *Analyzer) Tracks() []Track {
	return a.tracks
}

// Groups returns the group tracks of the last snapshot.
func (a *Analyzer) Groups() []Group {
	return a.groups
}

// FindTrack returns the first track whose name contains the search text
// (case-insensitive).
func (a *Analyzer) FindTrack(name string) (Track, bool) {
	needle := strings.ToLower(name)
	for _, t := range a.tracks {
		if strings.Contains(strings.ToLower(t.Name), needle) {
			return t, true
		}
	}
	return Track{}, false
}

// FindGroup returns the first group whose name contains the search text
// (case-insensitive).
func (a *Analyzer) FindGroup(name string) (Group, bool) {
	needle := strings.ToLower(name)
	for _, g := range a.groups {
		if strings.Contains(strings.ToLower(g.Track.Name), needle) {
			return g, true
		}
	}
	return Group{}, false
}

// FindTracks returns every track whose name contains the search text.
func (a *Analyzer) FindTracks(name string) []Track {
	needle := strings.ToLower(name)
	var out []Track
	for _, t := range a.tracks {
		if strings.Contains(strings.ToLower(t.Name), needle) {
			out = append(out, t)
		}
	}
	return out
}

// TrackByIndex returns the track at index from the last snapshot.
func (a *Analyzer) TrackByIndex(index int) (Track, bool) {
	if index < 0 || index >= len(a.tracks) {
		return Track{}, false
	}
	return a.tracks[index], true
}

// GroupOf returns the group containing the given track, if any.
func (a *Analyzer) GroupOf(t Track) (Group, bool) {
	if !t.IsGrouped || t.GroupIndex < 0 {
		return Group{}, false
	}
	for _, g := range a.groups {
		if g.Track.Index == t.GroupIndex {
			return g, true
		}
	}
	return Group{}, false
}
