package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/abhisek/querywise/internal/cognitive"
	"github.com/abhisek/querywise/internal/pipeline"
	"github.com/abhisek/querywise/internal/store"
)

// NewMCPServer creates an MCP server exposing the pipeline as tools.
func NewMCPServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"querywise",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("querywise answers database questions with SQL and explains it at the asker's level."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Answer a natural-language question about the database. Returns the statement, rows, assessment and any explanation."),
			mcp.WithString("user_id", mcp.Description("Who is asking"), mcp.Required()),
			mcp.WithString("question", mcp.Description("The question in plain language"), mcp.Required()),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("get_profile",
			mcp.WithDescription("Return a user's learning profile."),
			mcp.WithString("user_id", mcp.Description("User to look up"), mcp.Required()),
		),
		mcpGetProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("set_level",
			mcp.WithDescription("Set a user's self-reported SQL expertise (1-5)."),
			mcp.WithString("user_id", mcp.Description("User to update"), mcp.Required()),
			mcp.WithNumber("expertise_level", mcp.Description("Expertise from 1 (novice) to 5 (expert)"), mcp.Required()),
		),
		mcpSetLevel(deps),
	)

	s.AddTool(
		mcp.NewTool("evaluate_feedback",
			mcp.WithDescription("Score an explanation decision against the user's feedback."),
			mcp.WithBoolean("explanation_needed", mcp.Description("Whether the user needed an explanation"), mcp.Required()),
			mcp.WithBoolean("explanation_provided", mcp.Description("Whether one was given"), mcp.Required()),
			mcp.WithNumber("helpfulness_rating", mcp.Description("0-5")),
			mcp.WithNumber("satisfaction_rating", mcp.Description("0-5")),
			mcp.WithNumber("cognitive_load_rating", mcp.Description("0-5")),
		),
		mcpEvaluateFeedback(),
	)

	if deps.History != nil {
		s.AddTool(
			mcp.NewTool("history",
				mcp.WithDescription("List recent interactions, newest first."),
				mcp.WithString("user_id", mcp.Description("Restrict to one user")),
				mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
			),
			mcpHistory(deps),
		)
	}

	s.AddResource(
		mcp.NewResource(
			"querywise://profiles",
			"Profiles",
			mcp.WithResourceDescription("All stored user profiles as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfiles(deps),
	)

	return s
}

func mcpAsk(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		out, err := deps.Pipeline.Run(ctx, pipeline.Request{UserID: userID, Question: question})
		if errors.Is(err, pipeline.ErrParseFailure) {
			return mcpError("I couldn't understand that request. Try rephrasing it."), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("ask failed: %v", err)), nil
		}
		return mcpJSON(out)
	}
}

func mcpGetProfile(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		p, err := deps.Profiles.Get(ctx, userID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get profile: %v", err)), nil
		}
		return mcpJSON(p)
	}
}

func mcpSetLevel(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		level, err := req.RequireInt("expertise_level")
		if err != nil {
			return mcpError("expertise_level is required"), nil
		}
		p, err := deps.Profiles.Seed(ctx, userID, level)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpJSON(p)
	}
}

func mcpEvaluateFeedback() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		needed, err := req.RequireBool("explanation_needed")
		if err != nil {
			return mcpError("explanation_needed is required"), nil
		}
		provided, err := req.RequireBool("explanation_provided")
		if err != nil {
			return mcpError("explanation_provided is required"), nil
		}
		eval := cognitive.EvaluateFeedback(cognitive.Feedback{
			ExplanationNeeded:   needed,
			ExplanationProvided: provided,
			Helpfulness:         req.GetInt("helpfulness_rating", 0),
			Satisfaction:        req.GetInt("satisfaction_rating", 0),
			LoadRating:          req.GetInt("cognitive_load_rating", 0),
		})
		return mcpJSON(eval)
	}
}

func mcpHistory(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 100 {
			limit = 100
		}
		events, err := deps.History.QueryInteractions(ctx, store.QueryOpts{
			UserID: req.GetString("user_id", ""),
			Limit:  limit,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("history failed: %v", err)), nil
		}
		if len(events) == 0 {
			return mcpText("[]"), nil
		}
		return mcpJSON(events)
	}
}

func mcpResourceProfiles(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		profiles, err := deps.Profiles.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list profiles: %w", err)
		}
		b, err := json.Marshal(profiles)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profiles: %w", err)
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

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
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
