package osc

import "fmt"

// Clip is one arrangement or session clip as reported by Live. Start and
// Length are in beats. SlotIndex is -1 for arrangement clips.
type Clip struct {
	Name      string
	Start     float64
	Length    float64
	SlotIndex int
}

// TrackCount returns the number of tracks in the open Live set.
func (c *Client) TrackCount() (int, error) {
	reply, err := c.Query("/live/song/get/num_tracks")
	if err != nil {
		return 0, err
	}
	if len(reply) == 0 {
		return 0, fmt.Errorf("empty reply for track count")
	}
	n, ok := toInt(reply[0])
	if !ok {
		return 0, fmt.Errorf("unexpected track count payload: %v", reply[0])
	}
	return n, nil
}

// Tempo returns the current set tempo in BPM.
func (c *Client) Tempo() (float64, error) {
	reply, err := c.Query("/live/song/get/tempo")
	if err != nil {
		return 0, err
	}
	if len(reply) == 0 {
		return 0, fmt.Errorf("empty reply for tempo")
	}
	t, ok := toFloat(reply[0])
	if !ok {
		return 0, fmt.Errorf("unexpected tempo payload: %v", reply[0])
	}
	return t, nil
}

// Track property replies echo the queried index as the first argument; the
// actual value follows at position 1.

// TrackName returns the display name of the track at index.
func (c *Client) TrackName(index int) (string, error) {
	reply, err := c.Query("/live/track/get/name", int32(index))
	if err != nil {
		return "", err
	}
	if len(reply) < 2 {
		return "", fmt.Errorf("short reply for track %d name", index)
	}
	name, _ := toString(reply[1])
	return name, nil
}

// TrackMuted reports whether the track at index is muted.
func (c *Client) TrackMuted(index int) (bool, error) {
	return c.trackBool("/live/track/get/mute", index)
}

// TrackIsGroup reports whether the track at index is a group (foldable)
// track.
func (c *Client) TrackIsGroup(index int) (bool, error) {
	return c.trackBool("/live/track/get/is_foldable", index)
}

// TrackIsGrouped reports whether the track at index lives inside a group.
func (c *Client) TrackIsGrouped(index int) (bool, error) {
	return c.trackBool("/live/track/get/is_grouped", index)
}

func (c *Client) trackBool(address string, index int) (bool, error) {
	reply, err := c.Query(address, int32(index))
	if err != nil {
		return false, err
	}
	if len(reply) < 2 {
		return false, fmt.Errorf("short reply for %s on track %d", address, index)
	}
	b, _ := toBool(reply[1])
	return b, nil
}

// TrackGroupIndex returns the index of the group track containing the track
// at index, or -1 when the track is not grouped.
func (c *Client) TrackGroupIndex(index int) (int, error) {
	reply, err := c.Query("/live/track/get/group_track", int32(index))
	if err != nil {
		return -1, err
	}
	if len(reply) < 2 {
		return -1, fmt.Errorf("short reply for group index on track %d", index)
	}
	n, ok := toInt(reply[1])
	if !ok || n < 0 {
		return -1, nil
	}
	return n, nil
}

// ArrangementClips returns all arrangement clips on the track at index.
// AbletonOSC answers the name/start/length queries separately, each with the
// track index echoed at position 0 and clip values from position 1 on.
func (c *Client) ArrangementClips(index int) ([]Clip, error) {
	names, err := c.Query("/live/track/get/arrangement_clips/name", int32(index))
	if err != nil {
		return nil, err
	}
	starts, err := c.Query("/live/track/get/arrangement_clips/start_time", int32(index))
	if err != nil {
		return nil, err
	}
	lengths, err := c.Query("/live/track/get/arrangement_clips/length", int32(index))
	if err != nil {
		return nil, err
	}

	var clips []Clip
	for i := 1; i < len(names); i++ {
		clip := Clip{SlotIndex: -1}
		clip.Name, _ = toString(names[i])
		if i < len(starts) {
			clip.Start, _ = toFloat(starts[i])
		}
		if i < len(lengths) {
			clip.Length, _ = toFloat(lengths[i])
		}
		clips = append(clips, clip)
	}
	return clips, nil
}

// SessionClips returns the occupied session slots of the track at index.
// Session clips have no arrangement position, only a length.
func (c *Client) SessionClips(index int) ([]Clip, error) {
	reply, err := c.Query("/live/track/get/num_clip_slots", int32(index))
	if err != nil {
		return nil, err
	}
	if len(reply) < 2 {
		return nil, fmt.Errorf("short reply for clip slot count on track %d", index)
	}
	slots, _ := toInt(reply[1])

	// Clip-level replies echo both the track and slot index before the
	// value, so the payload sits at position 2.
	var clips []Clip
	for slot := 0; slot < slots; slot++ {
		has, err := c.Query("/live/clip_slot/get/has_clip", int32(index), int32(slot))
		if err != nil {
			return nil, err
		}
		if len(has) < 3 {
			continue
		}
		if occupied, _ := toBool(has[2]); !occupied {
			continue
		}

		clip := Clip{SlotIndex: slot}
		if name, err := c.Query("/live/clip/get/name", int32(index), int32(slot)); err == nil && len(name) >= 3 {
			clip.Name, _ = toString(name[2])
		}
		if length, err := c.Query("/live/clip/get/length", int32(index), int32(slot)); err == nil && len(length) >= 3 {
			clip.Length, _ = toFloat(length[2])
		}
		clips = append(clips, clip)
	}
	return clips, nil
}

// SelectTrack highlights the track at index in the Live UI. Fire-and-forget;
// Live sends no reply for view changes.
func (c *Client) SelectTrack(index int) error {
	return c.Send("/live/view/set/selected_track", int32(index))
}

// SetLoopRange sets the loop brace that Live uses as the export range.
func (c *Client) SetLoopRange(startBeats, lengthBeats float64) error {
	if err := c.Send("/live/song/set/loop_start", float32(startBeats)); err != nil {
		return err
	}
	return c.Send("/live/song/set/loop_length", float32(lengthBeats))
}
