// Package mcpserver exposes the session queries and export operations as
// MCP tools over stdio.
package mcpserver

import (
	"context"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/audiolibrelab/liveexport/internal/automation"
	"github.com/audiolibrelab/liveexport/internal/config"
	"github.com/audiolibrelab/liveexport/internal/exporter"
	"github.com/audiolibrelab/liveexport/internal/osc"
	"github.com/audiolibrelab/liveexport/internal/session"
)

const (
	ServerName    = "liveexport"
	ServerVersion = "0.1.0"
)

// Server is the MCP front end over one OSC client and one export stack.
// Tool calls that touch the GUI are serialized: Live has a single window
// focus and concurrent automation would interleave keystrokes.
type Server struct {
	mcpServer *mcp.Server
	cfg       *config.Config
	client    *osc.Client
	analyzer  *session.Analyzer
	exp       *exporter.Exporter
	runner    automation.Runner

	mu sync.Mutex
}

// New dials Live and builds the server. The OSC connection is required up
// front; individual tools still re-check connectivity per call.
func New(cfg *config.Config) (*Server, error) {
	client, err := osc.Dial(osc.Options{
		Host:         cfg.OSC.Host,
		SendPort:     cfg.OSC.SendPort,
		ReceivePort:  cfg.OSC.ReceivePort,
		QueryTimeout: cfg.OSC.QueryTimeout,
	})
	if err != nil {
		return nil, err
	}

	runner := automation.NewRunner(cfg.Automation.ScriptTimeout)
	driver := automation.NewAutomator(runner, cfg.Automation.AppName, cfg.Automation.ProcessName)
	machine := automation.NewMachine(driver, automation.Options{
		ProcessName:       cfg.Automation.ProcessName,
		ActivationRetries: cfg.Automation.ActivationRetries,
		SettleDelay:       cfg.Automation.SettleDelay,
		DialogDelay:       cfg.Automation.DialogDelay,
		PollInterval:      cfg.Automation.PollInterval,
		CompletionTimeout: cfg.Automation.CompletionTimeout,
	})
	analyzer := session.NewAnalyzer(client, session.ViewArrangement)

	s := &Server{
		cfg:      cfg,
		client:   client,
		analyzer: analyzer,
		runner:   runner,
		exp: exporter.New(analyzer, client, machine, exporter.Options{
			OutputDir:   cfg.Output.Directory,
			Format:      cfg.Output.Format,
			ExportDelay: cfg.Automation.ExportDelay,
		}),
	}

	s.mcpServer = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// Run serves MCP on stdio, blocking until the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// Close releases the OSC socket.
func (s *Server) Close() error {
	return s.client.Close()
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "check_connection",
		Description: "Check whether Ableton Live is reachable over OSC, returning the current tempo and track count.",
	}, s.handleCheckConnection)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_tracks",
		Description: "List every track of the open set with mute state, clip count and audio range in beats.",
	}, s.handleListTracks)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_groups",
		Description: "List the group tracks with their children and how many of them a group export would render.",
	}, s.handleListGroups)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "find_tracks",
		Description: "Find tracks whose name contains the given text (case-insensitive).",
	}, s.handleFindTracks)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_track_info",
		Description: "Get the export naming metadata for a track: containing group, parsed key and BPM, suggested filename.",
	}, s.handleTrackInfo)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "select_track",
		Description: "Select a track in Live by index.",
	}, s.handleSelectTrack)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "set_export_range",
		Description: "Set Live's loop range (in beats), which bounds what an export renders.",
	}, s.handleSetRange)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "prepare_track_for_export",
		Description: "Select a track and match the loop range to its arrangement clips.",
	}, s.handlePrepare)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "export_track",
		Description: "Export one track through Live's export dialog via GUI automation. Requires macOS accessibility permission. Blocks until the render finishes or fails.",
	}, s.handleExportTrack)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "export_group",
		Description: "Export every unmuted child with audio of the named group, one after another, sharing a single loop range. Blocks until all renders finish.",
	}, s.handleExportGroup)
}

func (s *Server) requireConnection() error {
	if !s.client.TestConnection() {
		return fmt.Errorf("could not reach Ableton Live on %s:%d, make sure Live is running with AbletonOSC enabled",
			s.cfg.OSC.Host, s.cfg.OSC.SendPort)
	}
	return nil
}

func (s *Server) requireAutomation() error {
	if err := s.runner.Available(); err != nil {
		return fmt.Errorf("GUI automation needs macOS with osascript: %w", err)
	}
	return nil
}
