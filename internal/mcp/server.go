// Package mcp exposes the search index to AI clients over the Model Context
// Protocol: semantic and keyword search, sync, and index status as tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/murmurnotes/murmur/internal/index"
	"github.com/murmurnotes/murmur/internal/store"
	"github.com/murmurnotes/murmur/pkg/version"
)

// SearchInput is the input schema for the search_notes tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query text"`
	Mode  string `json:"mode,omitempty" jsonschema:"search mode: semantic (default) or keyword"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
}

// SearchOutput is the output schema for the search_notes tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"ranked search results, best first"`
}

// SearchResultOutput is one hit.
type SearchResultOutput struct {
	RecordingID string  `json:"recording_id" jsonschema:"identifier of the matching recording"`
	Title       string  `json:"title,omitempty" jsonschema:"recording title, keyword mode only"`
	Field       string  `json:"field,omitempty" jsonschema:"which field matched, semantic mode only"`
	Snippet     string  `json:"snippet,omitempty" jsonschema:"matching text excerpt"`
	Score       float64 `json:"score" jsonschema:"relevance score, higher is better"`
}

// SyncInput is the input schema for the sync_index tool.
type SyncInput struct {
	Force bool `json:"force,omitempty" jsonschema:"wipe the index and reindex everything from scratch"`
}

// SyncOutput is the output schema for the sync_index tool.
type SyncOutput struct {
	Status       string `json:"status" jsonschema:"sync state after the call"`
	TotalToIndex int    `json:"total_to_index" jsonschema:"corpus size seen by the sync"`
	IndexedCount int    `json:"indexed_count" jsonschema:"recordings actually re-indexed"`
}

// StatusInput is the (empty) input schema for the index_status tool.
type StatusInput struct{}

// StatusOutput is the output schema for the index_status tool.
type StatusOutput struct {
	Status          string  `json:"status" jsonschema:"idle, syncing, indexing or error"`
	ErrorMessage    string  `json:"error_message,omitempty" jsonschema:"failure detail when status is error"`
	Progress        float64 `json:"progress" jsonschema:"sync progress between 0 and 1"`
	TotalChunks     int     `json:"total_chunks" jsonschema:"chunks in the vector index"`
	TotalRecordings int     `json:"total_recordings" jsonschema:"recordings in the vector index"`
	KeywordDocs     int     `json:"keyword_docs" jsonschema:"recordings in the keyword index"`
}

// Server bridges MCP clients with the index service.
type Server struct {
	mcp    *mcp.Server
	svc    *index.Service
	logger *slog.Logger
}

// NewServer creates the MCP server and registers its tools.
func NewServer(svc *index.Service) (*Server, error) {
	if svc == nil {
		return nil, errors.New("index service is required")
	}

	s := &Server{
		svc:    svc,
		logger: slog.Default(),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "murmur",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_notes",
		Description: "Search the user's voice notes. Semantic mode finds notes by meaning; keyword mode finds exact terms. Results are ranked, best first.",
	}, s.handleSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "sync_index",
		Description: "Reconcile the search index with the notes on disk. Only changed notes are re-embedded; pass force to rebuild everything.",
	}, s.handleSync)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Report the sync state machine and index sizes. Use to check whether the index is ready before searching.",
	}, s.handleStatus)

	s.logger.Debug("mcp tools registered", slog.Int("count", 3))
}

func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult, SearchOutput, error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, errors.New("query parameter is required")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = store.DefaultSearchLimit
	}

	switch input.Mode {
	case "", "semantic":
		hits, err := s.svc.SemanticSearch(ctx, input.Query, store.SearchOptions{Limit: limit})
		if err != nil {
			return nil, SearchOutput{}, fmt.Errorf("semantic search failed: %w", err)
		}
		out := SearchOutput{Results: make([]SearchResultOutput, 0, len(hits))}
		for _, h := range hits {
			out.Results = append(out.Results, SearchResultOutput{
				RecordingID: h.RecordingID,
				Field:       string(h.Field),
				Snippet:     h.Text,
				Score:       float64(h.Score),
			})
		}
		return nil, out, nil

	case "keyword":
		hits, err := s.svc.KeywordSearch(ctx, input.Query, limit)
		if err != nil {
			return nil, SearchOutput{}, fmt.Errorf("keyword search failed: %w", err)
		}
		out := SearchOutput{Results: make([]SearchResultOutput, 0, len(hits))}
		for _, h := range hits {
			out.Results = append(out.Results, SearchResultOutput{
				RecordingID: h.RecordingID,
				Title:       h.Title,
				Snippet:     h.Fragment,
				Score:       h.Score,
			})
		}
		return nil, out, nil

	default:
		return nil, SearchOutput{}, fmt.Errorf("unknown mode %q (supported: semantic, keyword)", input.Mode)
	}
}

func (s *Server) handleSync(ctx context.Context, req *mcp.CallToolRequest, input SyncInput) (
	*mcp.CallToolResult, SyncOutput, error,
) {
	var err error
	if input.Force {
		err = s.svc.ForceFullReindex(ctx)
	} else {
		err = s.svc.SyncIndexes(ctx)
	}
	if err != nil {
		return nil, SyncOutput{}, fmt.Errorf("sync failed: %w", err)
	}

	snap := s.svc.Status()
	return nil, SyncOutput{
		Status:       string(snap.Status),
		TotalToIndex: snap.TotalToIndex,
		IndexedCount: snap.IndexedCount,
	}, nil
}

func (s *Server) handleStatus(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
	*mcp.CallToolResult, StatusOutput, error,
) {
	stats, err := s.svc.GetStats(ctx)
	if err != nil {
		return nil, StatusOutput{}, fmt.Errorf("failed to read index stats: %w", err)
	}
	return nil, StatusOutput{
		Status:          string(stats.Snapshot.Status),
		ErrorMessage:    stats.Snapshot.ErrorMessage,
		Progress:        stats.Snapshot.Progress(),
		TotalChunks:     stats.Vector.TotalChunks,
		TotalRecordings: stats.Vector.TotalRecordings,
		KeywordDocs:     stats.Keyword.DocCount,
	}, nil
}

// Serve runs the server over stdio until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting mcp server", slog.String("transport", "stdio"))

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp server stopped")
	return nil
}
