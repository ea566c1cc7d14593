package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/audiolibrelab/liveexport/internal/automation"
	"github.com/audiolibrelab/liveexport/internal/exporter"
	"github.com/audiolibrelab/liveexport/internal/session"
)

type emptyArgs struct{}

type connectionResult struct {
	Connected  bool    `json:"connected"`
	Tempo      float64 `json:"tempo,omitempty"`
	TrackCount int     `json:"track_count,omitempty"`
	Message    string  `json:"message"`
}

func (s *Server) handleCheckConnection(ctx context.Context, req *mcp.CallToolRequest, args emptyArgs) (*mcp.CallToolResult, connectionResult, error) {
	status := exporter.CheckConnection(s.client)
	return nil, connectionResult{
		Connected:  status.Connected,
		Tempo:      status.Tempo,
		TrackCount: status.TrackCount,
		Message:    status.Message,
	}, nil
}

type trackInfo struct {
	Index      int     `json:"index"`
	Name       string  `json:"name"`
	IsGroup    bool    `json:"is_group"`
	Muted      bool    `json:"muted"`
	Clips      int     `json:"clips"`
	AudioStart float64 `json:"audio_start_beats,omitempty"`
	AudioEnd   float64 `json:"audio_end_beats,omitempty"`
}

func toTrackInfo(t session.Track) trackInfo {
	info := trackInfo{
		Index:   t.Index,
		Name:    t.Name,
		IsGroup: t.IsGroup,
		Muted:   t.Muted,
		Clips:   len(t.Clips),
	}
	if start, ok := t.AudioStart(); ok {
		info.AudioStart = start
	}
	if end, ok := t.AudioEnd(); ok {
		info.AudioEnd = end
	}
	return info
}

type listTracksResult struct {
	Tracks []trackInfo `json:"tracks"`
}

func (s *Server) handleListTracks(ctx context.Context, req *mcp.CallToolRequest, args emptyArgs) (*mcp.CallToolResult, listTracksResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireConnection(); err != nil {
		return nil, listTracksResult{}, err
	}
	if err := s.analyzer.Refresh(); err != nil {
		return nil, listTracksResult{}, err
	}

	out := listTracksResult{Tracks: make([]trackInfo, 0, len(s.analyzer.Tracks()))}
	for _, t := range s.analyzer.Tracks() {
		out.Tracks = append(out.Tracks, toTrackInfo(t))
	}
	return nil, out, nil
}

type groupInfo struct {
	Index      int         `json:"index"`
	Name       string      `json:"name"`
	Children   []trackInfo `json:"children"`
	Exportable int         `json:"exportable"`
}

type listGroupsResult struct {
	Groups []groupInfo `json:"groups"`
}

func (s *Server) handleListGroups(ctx context.Context, req *mcp.CallToolRequest, args emptyArgs) (*mcp.CallToolResult, listGroupsResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireConnection(); err != nil {
		return nil, listGroupsResult{}, err
	}
	if err := s.analyzer.Refresh(); err != nil {
		return nil, listGroupsResult{}, err
	}

	out := listGroupsResult{}
	for _, g := range s.analyzer.Groups() {
		info := groupInfo{
			Index:      g.Track.Index,
			Name:       g.Track.Name,
			Exportable: len(g.EnabledTracksWithAudio()),
		}
		for _, child := range g.Children {
			info.Children = append(info.Children, toTrackInfo(child))
		}
		out.Groups = append(out.Groups, info)
	}
	return nil, out, nil
}

type findTracksArgs struct {
	Name string `json:"name" jsonschema:"text to search for in track names"`
}

func (s *Server) handleFindTracks(ctx context.Context, req *mcp.CallToolRequest, args findTracksArgs) (*mcp.CallToolResult, listTracksResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireConnection(); err != nil {
		return nil, listTracksResult{}, err
	}
	if err := s.analyzer.Refresh(); err != nil {
		return nil, listTracksResult{}, err
	}

	out := listTracksResult{Tracks: []trackInfo{}}
	for _, t := range s.analyzer.FindTracks(args.Name) {
		out.Tracks = append(out.Tracks, toTrackInfo(t))
	}
	return nil, out, nil
}

type trackIndexArgs struct {
	Index int `json:"index" jsonschema:"zero-based track index"`
}

type trackInfoResult struct {
	TrackName         string `json:"track_name"`
	GroupName         string `json:"group_name,omitempty"`
	Key               string `json:"key,omitempty"`
	BPM               int    `json:"bpm"`
	SuggestedFilename string `json:"suggested_filename"`
}

func (s *Server) handleTrackInfo(ctx context.Context, req *mcp.CallToolRequest, args trackIndexArgs) (*mcp.CallToolResult, trackInfoResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireConnection(); err != nil {
		return nil, trackInfoResult{}, err
	}
	info, err := s.exp.ExportInfo(args.Index)
	if err != nil {
		return nil, trackInfoResult{}, err
	}
	return nil, trackInfoResult{
		TrackName:         info.TrackName,
		GroupName:         info.GroupName,
		Key:               info.Key,
		BPM:               info.BPM,
		SuggestedFilename: info.SuggestedFilename,
	}, nil
}

type messageResult struct {
	Message string `json:"message"`
}

func (s *Server) handleSelectTrack(ctx context.Context, req *mcp.CallToolRequest, args trackIndexArgs) (*mcp.CallToolResult, messageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireConnection(); err != nil {
		return nil, messageResult{}, err
	}
	msg, err := s.exp.SelectTrack(args.Index)
	if err != nil {
		return nil, messageResult{}, err
	}
	return nil, messageResult{Message: msg}, nil
}

type setRangeArgs struct {
	StartBeats  float64 `json:"start_beats" jsonschema:"loop start in beats"`
	LengthBeats float64 `json:"length_beats" jsonschema:"loop length in beats"`
}

func (s *Server) handleSetRange(ctx context.Context, req *mcp.CallToolRequest, args setRangeArgs) (*mcp.CallToolResult, messageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if args.LengthBeats <= 0 {
		return nil, messageResult{}, fmt.Errorf("length_beats must be positive, got %v", args.LengthBeats)
	}
	if err := s.requireConnection(); err != nil {
		return nil, messageResult{}, err
	}
	msg, err := s.exp.SetRange(args.StartBeats, args.LengthBeats)
	if err != nil {
		return nil, messageResult{}, err
	}
	return nil, messageResult{Message: msg}, nil
}

func (s *Server) handlePrepare(ctx context.Context, req *mcp.CallToolRequest, args trackIndexArgs) (*mcp.CallToolResult, messageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireConnection(); err != nil {
		return nil, messageResult{}, err
	}
	msg, err := s.exp.Prepare(args.Index)
	if err != nil {
		return nil, messageResult{}, err
	}
	return nil, messageResult{Message: msg}, nil
}

type exportTrackArgs struct {
	Index      *int    `json:"index,omitempty" jsonschema:"zero-based track index to export"`
	Name       string  `json:"name,omitempty" jsonschema:"export the first track whose name matches instead of an index"`
	Filename   string  `json:"filename,omitempty" jsonschema:"filename without extension, derived from track metadata when empty"`
	StartBars  float64 `json:"start_bars,omitempty" jsonschema:"explicit dialog render range start in bars"`
	LengthBars float64 `json:"length_bars,omitempty" jsonschema:"explicit dialog render range length in bars, required with start_bars"`
}

type exportResult struct {
	TrackName  string `json:"track_name"`
	Success    bool   `json:"success"`
	Filename   string `json:"filename,omitempty"`
	Message    string `json:"message"`
	FailedStep string `json:"failed_step,omitempty"`
}

func toExportResult(r exporter.Result) exportResult {
	return exportResult{
		TrackName:  r.TrackName,
		Success:    r.Success,
		Filename:   r.Filename,
		Message:    r.Message,
		FailedStep: string(r.FailedStep),
	}
}

func (s *Server) handleExportTrack(ctx context.Context, req *mcp.CallToolRequest, args exportTrackArgs) (*mcp.CallToolResult, exportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if args.Index == nil && args.Name == "" {
		return nil, exportResult{}, fmt.Errorf("either index or name is required")
	}
	if err := s.requireAutomation(); err != nil {
		return nil, exportResult{}, err
	}
	if err := s.requireConnection(); err != nil {
		return nil, exportResult{}, err
	}

	var rng *automation.RenderRange
	if args.LengthBars > 0 {
		rng = &automation.RenderRange{Start: args.StartBars, Length: args.LengthBars}
	}

	var result exporter.Result
	if args.Index != nil {
		result = s.exp.ExportTrackIndex(ctx, *args.Index, args.Filename, rng)
	} else {
		result = s.exp.ExportTrackByName(ctx, args.Name, args.Filename, rng)
	}
	return nil, toExportResult(result), nil
}

type exportGroupArgs struct {
	Group      string  `json:"group" jsonschema:"name of the group track to export"`
	StartBars  float64 `json:"start_bars,omitempty" jsonschema:"explicit dialog render range start in bars"`
	LengthBars float64 `json:"length_bars,omitempty" jsonschema:"explicit dialog render range length in bars, required with start_bars"`
}

type exportGroupResult struct {
	Results   []exportResult `json:"results"`
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
}

func (s *Server) handleExportGroup(ctx context.Context, req *mcp.CallToolRequest, args exportGroupArgs) (*mcp.CallToolResult, exportGroupResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if args.Group == "" {
		return nil, exportGroupResult{}, fmt.Errorf("group is required")
	}
	if err := s.requireAutomation(); err != nil {
		return nil, exportGroupResult{}, err
	}
	if err := s.requireConnection(); err != nil {
		return nil, exportGroupResult{}, err
	}

	var rng *automation.RenderRange
	if args.LengthBars > 0 {
		rng = &automation.RenderRange{Start: args.StartBars, Length: args.LengthBars}
	}

	results, err := s.exp.ExportGroup(ctx, args.Group, rng)
	if err != nil && len(results) == 0 {
		return nil, exportGroupResult{}, err
	}

	out := exportGroupResult{Results: make([]exportResult, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, toExportResult(r))
	}
	summary := exporter.Summarize(results)
	out.Total = summary.Total
	out.Succeeded = summary.Succeeded
	out.Failed = summary.Failed
	return nil, out, nil
}
