// Package exporter ties the session facade and the GUI automation together
// into the user-facing export operations.
package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/audiolibrelab/liveexport/internal/automation"
	"github.com/audiolibrelab/liveexport/internal/naming"
	"github.com/audiolibrelab/liveexport/internal/session"
)

// Controller is the slice of the OSC client the exporter drives directly.
type Controller interface {
	TestConnection() bool
	Tempo() (float64, error)
	TrackCount() (int, error)
	TrackName(index int) (string, error)
	SelectTrack(index int) error
	SetLoopRange(startBeats, lengthBeats float64) error
}

// Machine runs one verified export attempt.
type Machine interface {
	Export(ctx context.Context, req automation.Request) automation.Outcome
}

// ConnectionStatus is the result of a connectivity check.
type ConnectionStatus struct {
	Connected  bool
	Tempo      float64
	TrackCount int
	Message    string
}

// ExportInfo is everything needed to export one track with a good name.
type ExportInfo struct {
	TrackName         string
	GroupName         string
	Key               string
	BPM               int
	SuggestedFilename string
}

// Result is the outcome of exporting one track.
type Result struct {
	TrackName  string
	Success    bool
	Filename   string
	Message    string
	FailedStep automation.Step
}

// Summary aggregates a batch run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Summarize counts successes and failures in a result list.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

// CheckConnection probes AbletonOSC and reports set basics on success.
func CheckConnection(ctl Controller) ConnectionStatus {
	if !ctl.TestConnection() {
		return ConnectionStatus{
			Connected: false,
			Message:   "Could not connect. Make sure Ableton Live is running with AbletonOSC enabled.",
		}
	}
	tempo, _ := ctl.Tempo()
	count, _ := ctl.TrackCount()
	return ConnectionStatus{
		Connected:  true,
		Tempo:      tempo,
		TrackCount: count,
		Message:    fmt.Sprintf("Connected to Ableton Live! Tempo: %.1f BPM, Tracks: %d", tempo, count),
	}
}

// Options tunes a batch run.
type Options struct {
	// OutputDir is navigated to inside the save dialog when non-empty.
	OutputDir string
	// Format is the expected rendered file extension.
	Format string
	// ExportDelay is the settle pause between two exports of a batch.
	ExportDelay time.Duration
	// SelectDelay is the pause after selecting a track via OSC, giving the
	// UI time to move focus before the export shortcut lands.
	SelectDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.Format == "" {
		o.Format = "wav"
	}
	if o.ExportDelay <= 0 {
		o.ExportDelay = 2 * time.Second
	}
	if o.SelectDelay <= 0 {
		o.SelectDelay = 300 * time.Millisecond
	}
	return o
}

// Exporter owns one export workflow: session lookups through the analyzer,
// track selection and loop ranges through the controller, dialog driving
// through the machine. Callers must not run overlapping exports; the target
// application has a single window focus.
type Exporter struct {
	analyzer *session.Analyzer
	ctl      Controller
	machine  Machine
	opts     Options

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an exporter.
func New(analyzer *session.Analyzer, ctl Controller, machine Machine, opts Options) *Exporter {
	return &Exporter{
		analyzer: analyzer,
		ctl:      ctl,
		machine:  machine,
		opts:     opts.withDefaults(),
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SelectTrack highlights a track by index.
func (e *Exporter) SelectTrack(index int) (string, error) {
	count, err := e.ctl.TrackCount()
	if err != nil {
		return "", err
	}
	if index < 0 || index >= count {
		return "", fmt.Errorf("invalid track index %d, valid range: 0-%d", index, count-1)
	}
	name, err := e.ctl.TrackName(index)
	if err != nil {
		return "", err
	}
	if err := e.ctl.SelectTrack(index); err != nil {
		return "", err
	}
	return fmt.Sprintf("Selected track %d: %s", index, name), nil
}

// SetRange sets the loop brace Live renders when exporting.
func (e *Exporter) SetRange(startBeats, lengthBeats float64) (string, error) {
	tempo, err := e.ctl.Tempo()
	if err != nil {
		return "", err
	}
	if err := e.ctl.SetLoopRange(startBeats, lengthBeats); err != nil {
		return "", err
	}
	seconds := lengthBeats / tempo * 60
	return fmt.Sprintf("Set export range: %.1f - %.1f beats (%.1f seconds at %.0f BPM)",
		startBeats, startBeats+lengthBeats, seconds, tempo), nil
}

// Prepare selects a track and sets the loop range to its audio content.
func (e *Exporter) Prepare(index int) (string, error) {
	if err := e.analyzer.Refresh(); err != nil {
		return "", err
	}
	track, ok := e.analyzer.TrackByIndex(index)
	if !ok {
		return "", fmt.Errorf("invalid track index %d, valid range: 0-%d", index, len(e.analyzer.Tracks())-1)
	}
	start, okStart := track.AudioStart()
	end, okEnd := track.AudioEnd()
	if !okStart || !okEnd {
		return "", fmt.Errorf("track %q has no arrangement clips to export", track.Name)
	}
	length := end - start

	if err := e.ctl.SetLoopRange(start, length); err != nil {
		return "", err
	}
	if err := e.ctl.SelectTrack(index); err != nil {
		return "", err
	}

	tempo, err := e.ctl.Tempo()
	if err != nil {
		return "", err
	}
	seconds := length / tempo * 60
	return fmt.Sprintf("Prepared %q for export: %.1f - %.1f beats (%.1f seconds)",
		track.Name, start, end, seconds), nil
}

// ExportInfo resolves the naming metadata for a track. The containing
// group's name is the preferred source for key and tempo hints.
func (e *Exporter) ExportInfo(index int) (ExportInfo, error) {
	if err := e.analyzer.Refresh(); err != nil {
		return ExportInfo{}, err
	}
	track, ok := e.analyzer.TrackByIndex(index)
	if !ok {
		return ExportInfo{}, fmt.Errorf("invalid track index %d", index)
	}
	return e.exportInfoFor(track), nil
}

func (e *Exporter) exportInfoFor(track session.Track) ExportInfo {
	var groupName string
	if group, ok := e.analyzer.GroupOf(track); ok {
		groupName = group.Track.Name
	}
	tempo, _ := e.ctl.Tempo()

	key, bpm := naming.ParseKeyAndBPM(groupName)
	if key == "" || bpm == 0 {
		trackKey, trackBPM := naming.ParseKeyAndBPM(track.Name)
		if key == "" {
			key = trackKey
		}
		if bpm == 0 {
			bpm = trackBPM
		}
	}
	if bpm == 0 {
		bpm = int(tempo)
	}

	return ExportInfo{
		TrackName:         track.Name,
		GroupName:         groupName,
		Key:               key,
		BPM:               bpm,
		SuggestedFilename: naming.SuggestFilename(track.Name, groupName, tempo),
	}
}

// ExportTrackIndex exports one track by index. An empty filename uses the
// suggested name derived from track and group metadata.
func (e *Exporter) ExportTrackIndex(ctx context.Context, index int, filename string, rng *automation.RenderRange) Result {
	if err := e.analyzer.Refresh(); err != nil {
		return Result{Success: false, Message: err.Error()}
	}
	track, ok := e.analyzer.TrackByIndex(index)
	if !ok {
		return Result{
			Success: false,
			Message: fmt.Sprintf("invalid track index %d, valid range: 0-%d", index, len(e.analyzer.Tracks())-1),
		}
	}

	// Match the loop brace to the track's own audio unless the caller asked
	// for an explicit range (which the machine enters into the dialog).
	if rng == nil {
		if start, ok := track.AudioStart(); ok {
			end, _ := track.AudioEnd()
			if err := e.ctl.SetLoopRange(start, end-start); err != nil {
				return Result{TrackName: track.Name, Success: false, Message: err.Error()}
			}
		}
	}

	return e.exportOne(ctx, track, filename, rng)
}

// ExportTrackByName exports the first track whose name matches.
func (e *Exporter) ExportTrackByName(ctx context.Context, name string, filename string, rng *automation.RenderRange) Result {
	if err := e.analyzer.Refresh(); err != nil {
		return Result{Success: false, Message: err.Error()}
	}
	track, ok := e.analyzer.FindTrack(name)
	if !ok {
		return Result{TrackName: name, Success: false, Message: fmt.Sprintf("track %q not found", name)}
	}
	return e.ExportTrackIndex(ctx, track.Index, filename, rng)
}

// ExportSelected exports whatever track is currently selected in Live.
func (e *Exporter) ExportSelected(ctx context.Context, filename string) Result {
	if filename == "" {
		tempo, _ := e.ctl.Tempo()
		filename = fmt.Sprintf("export_%dbpm_%d", int(tempo), time.Now().Unix())
	}
	out := e.machine.Export(ctx, automation.Request{
		Filename:  filename,
		OutputDir: e.opts.OutputDir,
		Extension: e.opts.Format,
	})
	return Result{
		TrackName:  "selected",
		Success:    out.Success,
		Filename:   out.Filename,
		Message:    out.Message,
		FailedStep: out.FailedStep,
	}
}

// ExportGroup exports every enabled child track with audio from the named
// group, serially, with a settle delay between exports. The context is
// honored between iterations only; an automation step is never interrupted
// mid-flight because that leaves the GUI in an indeterminate dialog state.
func (e *Exporter) ExportGroup(ctx context.Context, groupName string, rng *automation.RenderRange) ([]Result, error) {
	if err := e.analyzer.Refresh(); err != nil {
		return nil, err
	}
	group, ok := e.analyzer.FindGroup(groupName)
	if !ok {
		names := make([]string, 0, len(e.analyzer.Groups()))
		for _, g := range e.analyzer.Groups() {
			names = append(names, g.Track.Name)
		}
		return nil, fmt.Errorf("group %q not found, available groups: %v", groupName, names)
	}

	tracks := group.EnabledTracksWithAudio()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("no enabled tracks with audio in group %q", group.Track.Name)
	}

	// One shared loop range for the whole group keeps the stems aligned.
	if rng == nil {
		start, okStart := group.AudioStart()
		end, okEnd := group.AudioEnd()
		if !okStart || !okEnd {
			return nil, fmt.Errorf("could not determine audio range for group %q", group.Track.Name)
		}
		if err := e.ctl.SetLoopRange(start, end-start); err != nil {
			return nil, err
		}
	}

	slog.Info("Starting group export", "group", group.Track.Name, "tracks", len(tracks))

	results := make([]Result, 0, len(tracks))
	for i, track := range tracks {
		slog.Info("Exporting track", "position", fmt.Sprintf("%d/%d", i+1, len(tracks)), "track", track.Name)
		results = append(results, e.exportOne(ctx, track, "", rng))

		if i < len(tracks)-1 {
			if err := e.sleep(ctx, e.opts.ExportDelay); err != nil {
				slog.Warn("Group export cancelled", "completed", len(results), "remaining", len(tracks)-len(results))
				return results, err
			}
		}
	}
	return results, nil
}

func (e *Exporter) exportOne(ctx context.Context, track session.Track, filename string, rng *automation.RenderRange) Result {
	if filename == "" {
		filename = e.exportInfoFor(track).SuggestedFilename
	}

	if err := e.ctl.SelectTrack(track.Index); err != nil {
		return Result{TrackName: track.Name, Success: false, Message: err.Error()}
	}
	if err := e.sleep(ctx, e.opts.SelectDelay); err != nil {
		return Result{TrackName: track.Name, Success: false, Message: "cancelled"}
	}

	out := e.machine.Export(ctx, automation.Request{
		Filename:  filename,
		OutputDir: e.opts.OutputDir,
		Range:     rng,
		Extension: e.opts.Format,
	})
	return Result{
		TrackName:  track.Name,
		Success:    out.Success,
		Filename:   out.Filename,
		Message:    out.Message,
		FailedStep: out.FailedStep,
	}
}
