package session

import (
	"fmt"
	"testing"

	"github.com/audiolibrelab/liveexport/internal/osc"
)

// fakeQuerier serves a canned set: a "Stems Amin 128" group at index 0 with
// three children, plus an ungrouped track at the end.
type fakeQuerier struct {
	tracks []fakeTrack
}

type fakeTrack struct {
	name       string
	muted      bool
	isGroup    bool
	groupIndex int // -1 when ungrouped
	clips      []osc.Clip
}

func stemsSet() *fakeQuerier {
	return &fakeQuerier{tracks: []fakeTrack{
		{name: "Stems Amin 128", isGroup: true, groupIndex: -1},
		{name: "bass", groupIndex: 0, clips: []osc.Clip{{Name: "bass", Start: 8, Length: 32, SlotIndex: -1}}},
		{name: "lead", groupIndex: 0, clips: []osc.Clip{{Name: "lead", Start: 16, Length: 48, SlotIndex: -1}}},
		{name: "scratch", muted: true, groupIndex: 0, clips: []osc.Clip{{Start: 0, Length: 8, SlotIndex: -1}}},
		{name: "empty", groupIndex: 0},
		{name: "master bus", groupIndex: -1},
	}}
}

func (q *fakeQuerier) TrackCount() (int, error) { return len(q.tracks), nil }

func (q *fakeQuerier) track(index int) (fakeTrack, error) {
	if index < 0 || index >= len(q.tracks) {
		return fakeTrack{}, fmt.Errorf("no track %d", index)
	}
	return q.tracks[index], nil
}

func (q *fakeQuerier) TrackName(index int) (string, error) {
	t, err := q.track(index)
	return t.name, err
}

func (q *fakeQuerier) TrackMuted(index int) (bool, error) {
	t, err := q.track(index)
	return t.muted, err
}

func (q *fakeQuerier) TrackIsGroup(index int) (bool, error) {
	t, err := q.track(index)
	return t.isGroup, err
}

func (q *fakeQuerier) TrackIsGrouped(index int) (bool, error) {
	t, err := q.track(index)
	return t.groupIndex >= 0, err
}

func (q *fakeQuerier) TrackGroupIndex(index int) (int, error) {
	t, err := q.track(index)
	return t.groupIndex, err
}

func (q *fakeQuerier) ArrangementClips(index int) ([]osc.Clip, error) {
	t, err := q.track(index)
	return t.clips, err
}

func (q *fakeQuerier) SessionClips(index int) ([]osc.Clip, error) {
	return nil, fmt.Errorf("session view not stubbed")
}

func refreshed(t *testing.T) *Analyzer {
	t.Helper()
	a := NewAnalyzer(stemsSet(), ViewArrangement)
	if err := a.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return a
}

func TestRefreshBuildsGroups(t *testing.T) {
	a := refreshed(t)

	if len(a.Tracks()) != 6 {
		t.Fatalf("got %d tracks, want 6", len(a.Tracks()))
	}
	groups := a.Groups()
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	g := groups[0]
	if g.Track.Name != "Stems Amin 128" {
		t.Errorf("group name = %q", g.Track.Name)
	}
	if len(g.Children) != 4 {
		t.Errorf("got %d children, want 4", len(g.Children))
	}
}

func TestEnabledTracksWithAudio(t *testing.T) {
	a := refreshed(t)
	g := a.Groups()[0]

	exportable := g.EnabledTracksWithAudio()
	if len(exportable) != 2 {
		t.Fatalf("got %d exportable tracks, want 2 (muted and empty excluded)", len(exportable))
	}
	for _, track := range exportable {
		if track.Muted || !track.HasAudio() {
			t.Errorf("track %q should not be exportable", track.Name)
		}
	}
}

func TestGroupAudioRange(t *testing.T) {
	a := refreshed(t)
	g := a.Groups()[0]

	start, ok := g.AudioStart()
	if !ok || start != 0 {
		t.Errorf("AudioStart = %v, %v; want 0 (muted tracks still bound the range)", start, ok)
	}
	end, ok := g.AudioEnd()
	if !ok || end != 64 {
		t.Errorf("AudioEnd = %v, %v; want 64 (lead: 16+48)", end, ok)
	}
}

func TestFindTrackIsCaseInsensitiveSubstring(t *testing.T) {
	a := refreshed(t)

	track, ok := a.FindTrack("BASS")
	if !ok || track.Name != "bass" {
		t.Errorf("FindTrack(BASS) = %v, %v", track.Name, ok)
	}
	if _, ok := a.FindTrack("vocals"); ok {
		t.Error("FindTrack matched a track that does not exist")
	}

	matches := a.FindTracks("as")
	// "bass" and "master bus" both contain "as".
	if len(matches) != 2 {
		t.Errorf("FindTracks(as) = %d matches, want 2", len(matches))
	}
}

func TestGroupOf(t *testing.T) {
	a := refreshed(t)

	bass, _ := a.TrackByIndex(1)
	g, ok := a.GroupOf(bass)
	if !ok || g.Track.Name != "Stems Amin 128" {
		t.Errorf("GroupOf(bass) = %q, %v", g.Track.Name, ok)
	}

	master, _ := a.TrackByIndex(5)
	if _, ok := a.GroupOf(master); ok {
		t.Error("GroupOf returned a group for an ungrouped track")
	}
}

func TestTrackByIndexBounds(t *testing.T) {
	a := refreshed(t)
	if _, ok := a.TrackByIndex(-1); ok {
		t.Error("TrackByIndex(-1) succeeded")
	}
	if _, ok := a.TrackByIndex(6); ok {
		t.Error("TrackByIndex past the end succeeded")
	}
}
