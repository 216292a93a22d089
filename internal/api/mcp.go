package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/deskd/internal/matching"
)

// NewMCPServer exposes the helpdesk to MCP clients: agent ranking,
// expertise lookup and ticket summarization as tools, recent ticket
// activity as a resource.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"deskd",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("deskd — helpdesk ticketing with AI-assisted agent assignment."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("recommend_agents",
			mcp.WithDescription("Rank support agents by relevance to a question, based on their solved-ticket history."),
			mcp.WithString("question", mcp.Description("The problem to find the best agents for"), mcp.Required()),
			mcp.WithNumber("top_n", mcp.Description("Maximum number of agents to return (default 5)")),
		),
		mcpRecommendAgents(deps),
	)

	s.AddTool(
		mcp.NewTool("agent_expertise",
			mcp.WithDescription("List support agents with their expertise domain and solved-query history."),
		),
		mcpAgentExpertise(deps),
	)

	s.AddTool(
		mcp.NewTool("ticket_summary",
			mcp.WithDescription("Summarize a ticket, including attachment text when present."),
			mcp.WithString("ticket_id", mcp.Description("Ticket to summarize"), mcp.Required()),
		),
		mcpTicketSummary(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"deskd://tickets/recent",
			"Recent Tickets",
			mcp.WithResourceDescription("Last 10 tickets across all states (titles only)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecentTickets(deps),
	)

	return s
}

func mcpRecommendAgents(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}
		topN := req.GetInt("top_n", 0)

		analysis, err := deps.Recommender.Recommend(ctx, question, topN)
		recordRanking(deps, err)
		if err != nil {
			return mcpError(fmt.Sprintf("ranking failed: %v", err)), nil
		}

		b, err := json.Marshal(analysis.Recommendations)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal recommendations: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAgentExpertise(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		corpus, directory, err := deps.Recommender.Corpus(ctx)
		if err != nil {
			if errors.Is(err, matching.ErrNoAgents) {
				return mcpText("[]"), nil
			}
			return mcpError(fmt.Sprintf("failed to build corpus: %v", err)), nil
		}

		type entry struct {
			UserID          string   `json:"user_id"`
			Name            string   `json:"name"`
			ExpertiseDomain string   `json:"expertise_domain"`
			SolvedQueries   []string `json:"solved_queries"`
		}
		entries := make([]entry, len(corpus))
		for i, c := range corpus {
			entries[i] = entry{
				UserID:          c.UserID,
				Name:            directory[c.UserID].Name,
				ExpertiseDomain: c.ExpertiseDomain,
				SolvedQueries:   c.SolvedQueries,
			}
		}

		b, err := json.Marshal(entries)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal entries: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpTicketSummary(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("ticket_id")
		if err != nil {
			return mcpError("ticket_id is required"), nil
		}

		ticket, err := deps.Store.GetTicket(id)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load ticket: %v", err)), nil
		}

		text := ticket.Title + "\n\n" + ticket.Description
		if ticket.Attachment != "" && deps.Blobs != nil {
			attached, err := deps.Blobs.Text(ticket.Attachment)
			if err != nil {
				return mcpError(fmt.Sprintf("failed to read attachment: %v", err)), nil
			}
			text += "\n\n" + attached
		}

		summary, err := deps.Oracle.Summarize(ctx, text)
		if deps.Metrics != nil {
			deps.Metrics.RecordOracle("summarize", oracleOutcome(err))
		}
		if err != nil {
			return mcpError(fmt.Sprintf("summarization failed: %v", err)), nil
		}
		return mcpText(summary), nil
	}
}

func mcpResourceRecentTickets(deps Deps) server.ResourceHandlerFunc {
	return func(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		tickets, err := deps.Store.RecentTickets(10)
		if err != nil {
			return nil, fmt.Errorf("failed to load recent tickets: %w", err)
		}

		type ticketSummary struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			Status    string `json:"status"`
			Priority  int    `json:"priority"`
			CreatedAt string `json:"created_at"`
		}
		summaries := make([]ticketSummary, len(tickets))
		for i, t := range tickets {
			title := t.Title
			if utf8.RuneCountInString(title) > 200 {
				runes := []rune(title)
				title = string(runes[:200]) + "..."
			}
			summaries[i] = ticketSummary{
				ID:        t.ID,
				Title:     title,
				Status:    t.Status,
				Priority:  t.Priority,
				CreatedAt: t.CreatedAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tickets: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
