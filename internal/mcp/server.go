// Package mcp exposes the tool facade over the Model Context Protocol
// on stdio and streamable HTTP transports.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/helpdex/helpdex/application/service"
	"github.com/helpdex/helpdex/domain/memory"
	"github.com/helpdex/helpdex/domain/search"
	"github.com/helpdex/helpdex/internal/config"
)

// Result list bounds.
const (
	maxK           = 50
	defaultK       = 10
	defaultPage    = 50
	previewChars   = 300
	maxListPerPage = 200
)

// SearchService provides the read-side operations for MCP tools.
type SearchService interface {
	Semantic(ctx context.Context, query string, k int, filters search.Filters) ([]search.Result, bool, error)
	Keyword(ctx context.Context, query string, k int, filters search.Filters) ([]search.Result, error)
	Topic(ctx context.Context, path string, filters search.Filters) (search.Result, error)
	FunctionInfo(ctx context.Context, ident string, k int, filters search.Filters) ([]search.Result, error)
	Titles(ctx context.Context, prefix string, limit int, offset uint64) ([]search.Result, uint64, error)
	Counts(ctx context.Context) (topics, memoryPoints uint64, err error)
	Inventory(ctx context.Context) (versions, languages []string, err error)
}

// MemoryService provides the write-side operations for MCP tools.
type MemoryService interface {
	Enabled() bool
	Record(ctx context.Context, event memory.Event) error
	SaveSnippet(ctx context.Context, snip memory.Snippet) (bool, error)
}

// IngestService exposes ingest state and triggering to MCP tools.
type IngestService interface {
	Running() bool
	Status() service.StatusRecord
	Run(ctx context.Context, opts service.RunOptions) (service.RunSummary, error)
}

// Server wraps the MCP server with the helpdex tool set.
type Server struct {
	mcpServer  *server.MCPServer
	search     SearchService
	memory     MemoryService
	ingest     IngestService
	embedder   search.Embedder
	limiter    *rateLimiter
	maxInput   int
	production bool
	logger     *slog.Logger
}

// NewServer creates an MCP server with the given dependencies. The
// memory and ingest services may be nil; their tools then report a
// configuration error instead of crashing.
func NewServer(
	searchService SearchService,
	memoryService MemoryService,
	ingestService IngestService,
	embedder search.Embedder,
	cfg config.ToolConfig,
	production bool,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		search:     searchService,
		memory:     memoryService,
		ingest:     ingestService,
		embedder:   embedder,
		limiter:    newRateLimiter(cfg.RateLimitRPM()),
		maxInput:   cfg.MaxInputBytes(),
		production: production,
		logger:     logger,
	}

	mcpServer := server.NewMCPServer(
		"helpdex",
		"0.1.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)
	s.mcpServer = mcpServer
	return s
}

// registerTools registers all helpdex tools with the MCP server.
func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.NewTool("semantic_search",
		mcp.WithDescription("Search 1C:Enterprise help topics by meaning. Accepts natural-language questions in Russian or English and returns ranked topic summaries."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural-language search query")),
		mcp.WithNumber("k", mcp.Description("Number of results, between 1 and 50 (default 10)")),
		mcp.WithString("version", mcp.Description("Filter by platform version tag")),
		mcp.WithString("language", mcp.Description("Filter by help language, e.g. ru or en")),
	), s.handleSemanticSearch)

	mcpServer.AddTool(mcp.NewTool("keyword_search",
		mcp.WithDescription("Search help topics and saved snippets by substring. Title matches rank above body matches."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Substring to look for, case-insensitive")),
		mcp.WithNumber("k", mcp.Description("Number of results, between 1 and 50 (default 10)")),
		mcp.WithString("path_prefix", mcp.Description("Restrict to topics whose path starts with this prefix")),
	), s.handleKeywordSearch)

	mcpServer.AddTool(mcp.NewTool("get_topic",
		mcp.WithDescription("Fetch the full Markdown text of one help topic by its path."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Topic path as returned by search tools")),
		mcp.WithString("version", mcp.Description("Disambiguate by version tag")),
		mcp.WithString("language", mcp.Description("Disambiguate by language")),
	), s.handleGetTopic)

	mcpServer.AddTool(mcp.NewTool("get_function_info",
		mcp.WithDescription("Look up an API identifier (function, method, property). Returns best matches with a choose_index disambiguator when several topics fit."),
		mcp.WithString("identifier", mcp.Required(), mcp.Description("API identifier, e.g. СтрНайти or StrFind")),
		mcp.WithNumber("k", mcp.Description("Number of candidates, between 1 and 50 (default 5)")),
		mcp.WithNumber("choose_index", mcp.Description("Pick one candidate from a previous call and return its full text")),
	), s.handleGetFunctionInfo)

	mcpServer.AddTool(mcp.NewTool("list_titles",
		mcp.WithDescription("List indexed topic titles and paths, optionally under a path prefix, with pagination."),
		mcp.WithString("path_prefix", mcp.Description("Only list topics under this path prefix")),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50, max 200)")),
		mcp.WithString("offset", mcp.Description("Scroll offset from a previous call's next_offset (empty starts over)")),
	), s.handleListTitles)

	mcpServer.AddTool(mcp.NewTool("index_status",
		mcp.WithDescription("Report index point counts, known versions and languages, the active embedding backend, and live ingest progress."),
	), s.handleIndexStatus)

	mcpServer.AddTool(mcp.NewTool("save_snippet",
		mcp.WithDescription("Save a community code snippet or reference note into the shared memory. Accepted even while the embedding backend is down; the write is then deferred."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Short snippet title")),
		mcp.WithString("code", mcp.Description("BSL code body")),
		mcp.WithString("description", mcp.Description("What the snippet does and when to use it")),
		mcp.WithString("domain", mcp.Description("Memory domain: snippets, community_help, or standards (classified automatically when omitted)")),
	), s.handleSaveSnippet)

	mcpServer.AddTool(mcp.NewTool("trigger_reindex",
		mcp.WithDescription("Start an ingest run over the configured source roots. Fails with a conflict while a run is active."),
	), s.handleTriggerReindex)
}

// guard applies the shared size cap and rate limit checks. It returns
// a non-nil result when the call must be rejected.
func (s *Server) guard(tool string, inputs ...string) *mcp.CallToolResult {
	for _, input := range inputs {
		if len(input) > s.maxInput {
			return errorResult(KindInvalidInput,
				fmt.Sprintf("input exceeds %d byte limit", s.maxInput))
		}
	}
	if !s.limiter.allow(tool) {
		return errorResult(KindRateLimited, "rate limit exceeded, retry later")
	}
	return nil
}

func (s *Server) handleSemanticSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || query == "" {
		return errorResult(KindInvalidInput, "query is required"), nil
	}
	if reject := s.guard("semantic_search", query); reject != nil {
		return reject, nil
	}
	k := request.GetInt("k", defaultK)
	if k < 1 || k > maxK {
		return errorResult(KindInvalidInput, fmt.Sprintf("k must be between 1 and %d", maxK)), nil
	}

	filters := s.topicFilters(request)
	results, degraded, err := s.search.Semantic(ctx, query, k, filters)
	if err != nil {
		return s.internalError("semantic_search", "search failed", err), nil
	}

	s.recordEvent(ctx, memory.NewEvent(memory.KindExchange, search.DomainSessions, map[string]string{
		"query": query,
	}))

	return jsonResult(map[string]any{
		"degraded": degraded,
		"results":  summarize(results),
	})
}

func (s *Server) handleKeywordSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || query == "" {
		return errorResult(KindInvalidInput, "query is required"), nil
	}
	if reject := s.guard("keyword_search", query); reject != nil {
		return reject, nil
	}
	k := request.GetInt("k", defaultK)
	if k < 1 || k > maxK {
		return errorResult(KindInvalidInput, fmt.Sprintf("k must be between 1 and %d", maxK)), nil
	}

	var opts []search.FiltersOption
	if prefix := request.GetString("path_prefix", ""); prefix != "" {
		opts = append(opts, search.WithPathPrefix(prefix))
	}
	results, err := s.search.Keyword(ctx, query, k, search.NewFilters(opts...))
	if err != nil {
		return s.internalError("keyword_search", "search failed", err), nil
	}
	return jsonResult(map[string]any{"results": summarize(results)})
}

func (s *Server) handleGetTopic(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil || path == "" {
		return errorResult(KindInvalidInput, "path is required"), nil
	}
	if reject := s.guard("get_topic", path); reject != nil {
		return reject, nil
	}
	if strings.Contains(path, "..") || strings.HasPrefix(path, "/") {
		return errorResult(KindInvalidInput, "path must be a relative topic path"), nil
	}

	result, err := s.search.Topic(ctx, path, s.topicFilters(request))
	if err != nil {
		if service.IsNotFound(err) {
			return errorResult(KindNotFound, "topic not found: "+path), nil
		}
		return s.internalError("get_topic", "topic lookup failed", err), nil
	}

	payload := result.Payload()
	s.recordEvent(ctx, memory.NewEvent(memory.KindTopicView, search.DomainSessions, map[string]string{
		"title": payload.Title(),
		"tags":  payload.Path(),
	}))

	return jsonResult(map[string]any{
		"path":     payload.Path(),
		"title":    payload.Title(),
		"version":  payload.Version(),
		"language": payload.Language(),
		"text":     payload.Text(),
	})
}

func (s *Server) handleGetFunctionInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ident, err := request.RequireString("identifier")
	if err != nil || ident == "" {
		return errorResult(KindInvalidInput, "identifier is required"), nil
	}
	if reject := s.guard("get_function_info", ident); reject != nil {
		return reject, nil
	}
	k := request.GetInt("k", 5)
	if k < 1 || k > maxK {
		return errorResult(KindInvalidInput, fmt.Sprintf("k must be between 1 and %d", maxK)), nil
	}

	matches, err := s.search.FunctionInfo(ctx, ident, k, search.NewFilters(search.WithDomain(search.DomainHelp)))
	if err != nil {
		if service.IsNotFound(err) {
			return errorResult(KindNotFound, "no topic found for identifier: "+ident), nil
		}
		return s.internalError("get_function_info", "lookup failed", err), nil
	}

	chooseIndex := request.GetInt("choose_index", -1)
	if chooseIndex >= 0 {
		if chooseIndex >= len(matches) {
			return errorResult(KindInvalidInput,
				fmt.Sprintf("choose_index %d out of range, %d candidates", chooseIndex, len(matches))), nil
		}
		payload := matches[chooseIndex].Payload()
		return jsonResult(map[string]any{
			"path":     payload.Path(),
			"title":    payload.Title(),
			"version":  payload.Version(),
			"language": payload.Language(),
			"text":     payload.Text(),
		})
	}

	return jsonResult(map[string]any{
		"identifier": ident,
		"candidates": summarize(matches),
		"hint":       "call again with choose_index to fetch one candidate in full",
	})
}

func (s *Server) handleListTitles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prefix := request.GetString("path_prefix", "")
	if reject := s.guard("list_titles", prefix); reject != nil {
		return reject, nil
	}
	limit := request.GetInt("limit", defaultPage)
	if limit < 1 || limit > maxListPerPage {
		return errorResult(KindInvalidInput,
			fmt.Sprintf("limit must be between 1 and %d", maxListPerPage)), nil
	}
	// Offsets are point ids from the full uint64 range; JSON numbers
	// lose precision above 2^53, so they travel as decimal strings.
	var offset uint64
	if arg := request.GetString("offset", ""); arg != "" {
		parsed, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return errorResult(KindInvalidInput, "offset must be an unsigned decimal string"), nil
		}
		offset = parsed
	}

	results, next, err := s.search.Titles(ctx, prefix, limit, offset)
	if err != nil {
		return s.internalError("list_titles", "listing failed", err), nil
	}

	type entry struct {
		Path  string `json:"path"`
		Title string `json:"title"`
	}
	entries := make([]entry, len(results))
	for i, r := range results {
		entries[i] = entry{Path: r.Payload().Path(), Title: r.Payload().Title()}
	}
	return jsonResult(map[string]any{
		"titles":      entries,
		"next_offset": strconv.FormatUint(next, 10),
	})
}

func (s *Server) handleIndexStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if reject := s.guard("index_status"); reject != nil {
		return reject, nil
	}

	topics, memoryPoints, err := s.search.Counts(ctx)
	if err != nil {
		return s.internalError("index_status", "count failed", err), nil
	}
	versions, languages, err := s.search.Inventory(ctx)
	if err != nil {
		s.logger.Warn("inventory scan failed", "error", err)
	}

	status := map[string]any{
		"topics":        topics,
		"memory_points": memoryPoints,
		"versions":      versions,
		"languages":     languages,
		"backend":       s.embedder.Name(),
		"degraded":      s.embedder.Degraded(),
	}
	if s.ingest != nil {
		record := s.ingest.Status()
		status["ingest"] = record
		status["ingest_running"] = s.ingest.Running()
	}
	return jsonResult(status)
}

func (s *Server) handleSaveSnippet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil || title == "" {
		return errorResult(KindInvalidInput, "title is required"), nil
	}
	code := request.GetString("code", "")
	description := request.GetString("description", "")
	if reject := s.guard("save_snippet", title, code, description); reject != nil {
		return reject, nil
	}
	if s.memory == nil || !s.memory.Enabled() {
		return errorResult(KindInvalidInput, "memory is not configured"), nil
	}

	domain := request.GetString("domain", "")
	switch domain {
	case "", search.DomainSnippets, search.DomainCommunity, search.DomainStandards:
	default:
		return errorResult(KindInvalidInput, "unknown domain: "+domain), nil
	}

	snip := memory.NewSnippet(title, description, code, domain, "")
	if domain == "" {
		domain = search.DomainCommunity
		if snip.Class() == memory.ClassSnippet {
			domain = search.DomainSnippets
		}
		snip = memory.NewSnippet(title, description, code, domain, snip.Class())
	}

	deferred, err := s.memory.SaveSnippet(ctx, snip)
	if err != nil {
		return s.internalError("save_snippet", "save failed", err), nil
	}
	return jsonResult(map[string]any{
		"saved":    true,
		"deferred": deferred,
		"key":      snip.Key(),
		"domain":   snip.Domain(),
		"class":    snip.Class(),
	})
}

func (s *Server) handleTriggerReindex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if reject := s.guard("trigger_reindex"); reject != nil {
		return reject, nil
	}
	if s.ingest == nil {
		return errorResult(KindInvalidInput, "ingest is not configured"), nil
	}
	if s.ingest.Running() {
		return errorResult(KindConflict, "an ingest run is already active"), nil
	}

	// The run outlives the tool call; it reports through the status
	// record, not through this response.
	go func() {
		summary, err := s.ingest.Run(context.Background(), service.RunOptions{})
		if err != nil {
			s.logger.Warn("triggered ingest failed", "error", err)
			return
		}
		s.logger.Info("triggered ingest complete",
			"indexed", summary.Indexed, "failed", summary.Failed)
	}()
	return jsonResult(map[string]any{"started": true})
}

// topicFilters builds help-domain filters from the optional version
// and language arguments.
func (s *Server) topicFilters(request mcp.CallToolRequest) search.Filters {
	opts := []search.FiltersOption{search.WithDomain(search.DomainHelp)}
	if v := request.GetString("version", ""); v != "" {
		opts = append(opts, search.WithVersion(v))
	}
	if l := request.GetString("language", ""); l != "" {
		opts = append(opts, search.WithLanguage(l))
	}
	return search.NewFilters(opts...)
}

// recordEvent writes a session event, tolerating a disabled memory.
func (s *Server) recordEvent(ctx context.Context, event memory.Event) {
	if s.memory == nil || !s.memory.Enabled() {
		return
	}
	if err := s.memory.Record(ctx, event); err != nil {
		s.logger.Warn("memory record failed", "error", err)
	}
}

// topicSummary is the list-item shape shared by the search tools.
type topicSummary struct {
	Path     string  `json:"path"`
	Title    string  `json:"title"`
	Version  string  `json:"version,omitempty"`
	Language string  `json:"language,omitempty"`
	Domain   string  `json:"domain,omitempty"`
	Score    float32 `json:"score"`
	Preview  string  `json:"preview"`
}

func summarize(results []search.Result) []topicSummary {
	out := make([]topicSummary, len(results))
	for i, r := range results {
		payload := r.Payload()
		preview := payload.Text()
		if len(preview) > previewChars {
			cut := previewChars
			for cut > 0 && !utf8.RuneStart(preview[cut]) {
				cut--
			}
			preview = preview[:cut]
		}
		out[i] = topicSummary{
			Path:     payload.Path(),
			Title:    payload.Title(),
			Version:  payload.Version(),
			Language: payload.Language(),
			Domain:   payload.Domain(),
			Score:    r.Score(),
			Preview:  preview,
		}
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return errorResult(KindInternal, "failed to encode result"), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// StreamableHandler returns an http.Handler serving the streamable
// HTTP transport at the given endpoint path.
func (s *Server) StreamableHandler(endpointPath string) http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer,
		server.WithEndpointPath(endpointPath))
}
