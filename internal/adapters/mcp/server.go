// Package mcpadapter exposes the manuscript read model as MCP tools so an
// assistant can inspect reviewer workflows without write access.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
	"github.com/kirillkom/reviewer-invitations/internal/core/ports"
)

const serverName = "reviewer-invitations"

type Tools struct {
	queries ports.ManuscriptQueryService
}

func NewTools(queries ports.ManuscriptQueryService) *Tools {
	return &Tools{queries: queries}
}

// NewServer registers every read-only tool on a fresh MCP server.
func NewServer(queries ports.ManuscriptQueryService, version string) *server.MCPServer {
	s := server.NewMCPServer(serverName, version, server.WithToolCapabilities(false))
	NewTools(queries).Register(s)
	return s
}

func (t *Tools) Register(s *server.MCPServer) {
	identifier := mcp.WithString("manuscript",
		mcp.Required(),
		mcp.Description("Manuscript id, custom id, system id or submission id"),
	)

	s.AddTool(mcp.NewTool("get_manuscript",
		mcp.WithDescription("Fetch one manuscript with its status label"),
		identifier,
	), t.getManuscript)

	s.AddTool(mcp.NewTool("list_reviewers",
		mcp.WithDescription("List matched reviewers with workflow status and profile metrics"),
		identifier,
		mcp.WithString("sort_by",
			mcp.Description("Ordering key"),
			mcp.Enum(string(domain.SortByMatchScore), string(domain.SortByAvailability), string(domain.SortByResponseRate), string(domain.SortByQualityScore)),
		),
		mcp.WithNumber("min_match_score", mcp.Description("Lowest match score to include"), mcp.Min(0), mcp.Max(100)),
		mcp.WithString("availability", mcp.Description("Comma-separated availability filter")),
		mcp.WithNumber("max_current_load", mcp.Description("Highest current review load to include"), mcp.Min(0)),
		mcp.WithString("search", mcp.Description("Substring of name, email, affiliation or expertise")),
	), t.listReviewers)

	s.AddTool(mcp.NewTool("list_invitations",
		mcp.WithDescription("List invitations with their display status and badge"),
		identifier,
	), t.listInvitations)

	s.AddTool(mcp.NewTool("list_queue",
		mcp.WithDescription("List queued reviewers in position order"),
		identifier,
	), t.listQueue)

	s.AddTool(mcp.NewTool("invitation_stats",
		mcp.WithDescription("Aggregate invitation counts by effective status"),
		identifier,
	), t.invitationStats)
}

func (t *Tools) getManuscript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("manuscript")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ms, err := t.queries.GetManuscript(ctx, id)
	if err != nil {
		return toolError("get manuscript", err), nil
	}
	return jsonResult(struct {
		*domain.Manuscript
		StatusLabel string `json:"status_label"`
	}{ms, domain.StatusLabel(string(ms.Status))})
}

func (t *Tools) listReviewers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("manuscript")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	q := domain.ReviewerQuery{
		ManuscriptID: id,
		SortBy:       domain.ReviewerSortKey(req.GetString("sort_by", "")),
		Search:       req.GetString("search", ""),
	}
	args := req.GetArguments()
	if _, ok := args["min_match_score"]; ok {
		v := req.GetInt("min_match_score", 0)
		q.MinMatchScore = &v
	}
	if _, ok := args["max_current_load"]; ok {
		v := req.GetInt("max_current_load", 0)
		q.MaxCurrentLoad = &v
	}
	for _, a := range strings.Split(req.GetString("availability", ""), ",") {
		if a = strings.TrimSpace(a); a != "" {
			q.Availability = append(q.Availability, domain.Availability(a))
		}
	}

	reviewers, err := t.queries.ListReviewers(ctx, q)
	if err != nil {
		return toolError("list reviewers", err), nil
	}
	return jsonResult(reviewers)
}

func (t *Tools) listInvitations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("manuscript")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	invitations, err := t.queries.ListInvitations(ctx, id)
	if err != nil {
		return toolError("list invitations", err), nil
	}
	return jsonResult(invitations)
}

func (t *Tools) listQueue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("manuscript")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entries, err := t.queries.ListQueue(ctx, id)
	if err != nil {
		return toolError("list queue", err), nil
	}
	return jsonResult(entries)
}

func (t *Tools) invitationStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("manuscript")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	stats, err := t.queries.InvitationStats(ctx, id)
	if err != nil {
		return toolError("invitation stats", err), nil
	}
	return jsonResult(stats)
}

// toolError reports domain failures to the client as tool errors. Anything
// that is not a caller mistake is reduced to a generic message.
func toolError(op string, err error) *mcp.CallToolResult {
	switch {
	case domain.IsKind(err, domain.ErrNotFound), domain.IsKind(err, domain.ErrInvalidInput):
		return mcp.NewToolResultError(err.Error())
	default:
		return mcp.NewToolResultError(op + " failed")
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
