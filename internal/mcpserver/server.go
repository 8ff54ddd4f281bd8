package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"procwatch/internal/collector"
	"procwatch/internal/database/relational"
	"procwatch/internal/engine"
	"procwatch/internal/output"
)

// ViewSource is the live table. *publisher.Publisher implements it.
type ViewSource interface {
	CurrentView() engine.View
	Dispatch(ev engine.Event) (engine.View, error)
	Host() collector.HostInfo
}

// HistoryStore answers questions about recorded ticks. *relational.Repo
// implements it.
type HistoryStore interface {
	QueryProcessHistory(ctx context.Context, pid int32, limit int) ([]relational.ProcessHistoryPoint, error)
	QueryTopProcesses(ctx context.Context, metric string, since time.Time, limit int) ([]relational.ProcessAggregate, error)
	QueryTicks(ctx context.Context, limit int) ([]relational.TickSummary, error)
}

// ErrHistoryDisabled is returned by the history tools when no store is wired.
var ErrHistoryDisabled = errors.New("history recording is disabled; start procwatch with -record")

// Server exposes the process table as MCP tools.
type Server struct {
	mcpServer *mcp.Server
	view      ViewSource
	history   HistoryStore
	flagger   output.RowFlagger
	logger    *slog.Logger
}

// Config holds configuration for the MCP server.
type Config struct {
	ServerName    string `yaml:"server_name"`
	ServerVersion string `yaml:"server_version"`
}

func DefaultConfig() Config {
	return Config{ServerName: "procwatch", ServerVersion: "1.0.0"}
}

// NewServer creates a new MCP server instance. history, flg and logger may
// be nil.
func NewServer(cfg Config, view ViewSource, history HistoryStore, flg output.RowFlagger, logger *slog.Logger) (*Server, error) {
	if view == nil {
		return nil, errors.New("view source is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.ServerName == "" {
		cfg.ServerName = DefaultConfig().ServerName
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{Name: cfg.ServerName, Version: cfg.ServerVersion}, nil),
		view:      view,
		history:   history,
		flagger:   flg,
		logger:    logger,
	}
	s.registerTools()
	return s, nil
}

// EmptyArgs is the input of tools without parameters.
type EmptyArgs struct{}

type SetFilterArgs struct {
	Text string `json:"text" jsonschema:"case-insensitive substring matched against process names; empty clears the filter"`
}

type ColumnArgs struct {
	Column string `json:"column" jsonschema:"column key: name, pid, cpu, memory, disk or network"`
}

type SetPageArgs struct {
	Page     int `json:"page" jsonschema:"page number starting at 1; out-of-range values are clamped"`
	PageSize int `json:"page_size,omitempty" jsonschema:"optional new rows per page"`
}

type SelectionArgs struct {
	PID int32 `json:"pid" jsonschema:"process id to select or deselect"`
}

type ProcessHistoryArgs struct {
	PID   int32 `json:"pid" jsonschema:"process id"`
	Limit int   `json:"limit,omitempty" jsonschema:"number of ticks to return (default 10, max 100)"`
}

type ProcessHistoryResult struct {
	Points []relational.ProcessHistoryPoint `json:"points" jsonschema:"recorded ticks, newest first"`
}

type TopProcessesArgs struct {
	Metric        string `json:"metric,omitempty" jsonschema:"cpu, memory, disk or network (default cpu)"`
	WindowMinutes int    `json:"window_minutes,omitempty" jsonschema:"look-back window in minutes (default 15)"`
	Limit         int    `json:"limit,omitempty" jsonschema:"number of process names to return (default 10, max 100)"`
}

type TopProcessesResult struct {
	Processes []relational.ProcessAggregate `json:"processes" jsonschema:"process names ranked by the metric average"`
}

type HostInfoResult struct {
	Host  collector.HostInfo `json:"host"`
	Known bool               `json:"known" jsonschema:"false until the first successful host lookup"`
}

type RecentTicksArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"number of ticks to return (default 10, max 100)"`
}

type RecentTicksResult struct {
	Ticks []relational.TickSummary `json:"ticks" jsonschema:"recorded ticks with process and flagged counts, newest first"`
}

// registerTools registers all available MCP tools.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_process_view",
		Description: "Get the current page of the live process table: rows with CPU %, memory, disk MB/s and network Mbps, plus sort, filter, selection and page state.",
	}, s.handleGetView)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "set_filter",
		Description: "Filter the process table by a case-insensitive substring of the process name. Returns to the first page.",
	}, s.handleSetFilter)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "toggle_sort",
		Description: "Sort by a column. Sorting by the active column again flips the direction; a new column starts ascending.",
	}, s.handleToggleSort)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "set_page",
		Description: "Go to a page of the process table, optionally changing the page size.",
	}, s.handleSetPage)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "toggle_selection",
		Description: "Select or deselect a process by PID. Selection survives sorting, filtering and paging.",
	}, s.handleToggleSelection)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "clear_selection",
		Description: "Deselect every process.",
	}, s.handleClearSelection)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "toggle_column",
		Description: "Hide or show a column. Hidden columns do not affect sorting or filtering.",
	}, s.handleToggleColumn)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_host_info",
		Description: "Describe the watched machine: hostname, OS, platform, kernel, architecture, CPU model, core counts and total memory.",
	}, s.handleGetHostInfo)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_recent_ticks",
		Description: "List the most recent recorded sampling ticks with their process and flagged counts, newest first.",
	}, s.handleGetRecentTicks)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_process_history",
		Description: "Get recorded samples for one PID from the history database, newest first.",
	}, s.handleGetProcessHistory)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_top_processes",
		Description: "Rank process names by their average CPU, memory, disk or network usage over a recent window of recorded history.",
	}, s.handleGetTopProcesses)
}

func (s *Server) handleGetView(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyArgs) (*mcp.CallToolResult, ViewResult, error) {
	return nil, s.toResult(s.view.CurrentView()), nil
}

func (s *Server) handleSetFilter(ctx context.Context, _ *mcp.CallToolRequest, args SetFilterArgs) (*mcp.CallToolResult, ViewResult, error) {
	return s.dispatch(engine.SetFilter{Text: args.Text})
}

func (s *Server) handleToggleSort(ctx context.Context, _ *mcp.CallToolRequest, args ColumnArgs) (*mcp.CallToolResult, ViewResult, error) {
	key, err := engine.ParseColumn(args.Column)
	if err != nil {
		return nil, ViewResult{}, err
	}
	return s.dispatch(engine.ToggleSort{Column: key})
}

// handleSetPage applies the page and the optional page size as one event so
// a rejected request leaves the table untouched.
func (s *Server) handleSetPage(ctx context.Context, _ *mcp.CallToolRequest, args SetPageArgs) (*mcp.CallToolResult, ViewResult, error) {
	return s.dispatch(engine.SetPage{Page: args.Page - 1, Size: args.PageSize})
}

func (s *Server) handleToggleSelection(ctx context.Context, _ *mcp.CallToolRequest, args SelectionArgs) (*mcp.CallToolResult, ViewResult, error) {
	return s.dispatch(engine.ToggleSelection{PID: args.PID})
}

func (s *Server) handleClearSelection(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyArgs) (*mcp.CallToolResult, ViewResult, error) {
	return s.dispatch(engine.ClearSelection{})
}

func (s *Server) handleToggleColumn(ctx context.Context, _ *mcp.CallToolRequest, args ColumnArgs) (*mcp.CallToolResult, ViewResult, error) {
	key, err := engine.ParseColumn(args.Column)
	if err != nil {
		return nil, ViewResult{}, err
	}
	return s.dispatch(engine.ToggleColumn{Column: key})
}

func (s *Server) handleGetHostInfo(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyArgs) (*mcp.CallToolResult, HostInfoResult, error) {
	host := s.view.Host()
	return nil, HostInfoResult{Host: host, Known: host.Known()}, nil
}

func (s *Server) handleGetRecentTicks(ctx context.Context, _ *mcp.CallToolRequest, args RecentTicksArgs) (*mcp.CallToolResult, RecentTicksResult, error) {
	if s.history == nil {
		return nil, RecentTicksResult{}, ErrHistoryDisabled
	}
	ticks, err := s.history.QueryTicks(ctx, args.Limit)
	if err != nil {
		return nil, RecentTicksResult{}, fmt.Errorf("failed to query ticks: %w", err)
	}
	return nil, RecentTicksResult{Ticks: ticks}, nil
}

// handleGetProcessHistory queries DuckDB.
func (s *Server) handleGetProcessHistory(ctx context.Context, _ *mcp.CallToolRequest, args ProcessHistoryArgs) (*mcp.CallToolResult, ProcessHistoryResult, error) {
	if s.history == nil {
		return nil, ProcessHistoryResult{}, ErrHistoryDisabled
	}
	points, err := s.history.QueryProcessHistory(ctx, args.PID, args.Limit)
	if err != nil {
		return nil, ProcessHistoryResult{}, fmt.Errorf("failed to query history: %w", err)
	}
	return nil, ProcessHistoryResult{Points: points}, nil
}

func (s *Server) handleGetTopProcesses(ctx context.Context, _ *mcp.CallToolRequest, args TopProcessesArgs) (*mcp.CallToolResult, TopProcessesResult, error) {
	if s.history == nil {
		return nil, TopProcessesResult{}, ErrHistoryDisabled
	}
	metric := args.Metric
	if metric == "" {
		metric = "cpu"
	}
	window := args.WindowMinutes
	if window <= 0 {
		window = 15
	}
	since := time.Now().Add(-time.Duration(window) * time.Minute)

	procs, err := s.history.QueryTopProcesses(ctx, metric, since, args.Limit)
	if err != nil {
		return nil, TopProcessesResult{}, fmt.Errorf("failed to query top processes: %w", err)
	}
	return nil, TopProcessesResult{Processes: procs}, nil
}

func (s *Server) dispatch(ev engine.Event) (*mcp.CallToolResult, ViewResult, error) {
	v, err := s.view.Dispatch(ev)
	if err != nil {
		return nil, ViewResult{}, err
	}
	return nil, s.toResult(v), nil
}

// Start serves MCP over stdio until ctx is done or the client disconnects.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio")
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// Run serves MCP over an arbitrary transport.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	return s.mcpServer.Run(ctx, t)
}
