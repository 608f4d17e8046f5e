package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers the silabo tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerExtractTool(srv)
	s.registerListSessionsTool(srv)
	s.registerSessionTitlesTool(srv)
	s.registerReadContentTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// addTool adapts a typed handler to the SDK callback: decode arguments,
// call, marshal the response as text content. Handler errors become tool
// errors, never protocol errors.
func addTool[Req any](srv *mcp.Server, tool *mcp.Tool, handler func(context.Context, *Req) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p Req
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
				var res mcp.CallToolResult
				res.SetError(fmt.Errorf("invalid arguments: %w", err))
				return &res, nil
			}
		}
		resp, err := handler(ctx, &p)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}
		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// --- extract ---

func (s *Service) registerExtractTool(srv *mcp.Server) {
	type req struct {
		Path string `json:"path"`
		Kind string `json:"kind"`
	}

	tool := &mcp.Tool{
		Name:        "silabo_extract",
		Description: "Extract detected titles from a document file (xlsx, docx) and open a session.",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "File path to extract"},
			"kind": map[string]any{"type": "string", "description": "Document kind: spreadsheet or word (default: from extension)"},
		}, []string{"path"}),
	}

	addTool(srv, tool, func(ctx context.Context, p *req) (any, error) {
		data, err := os.ReadFile(p.Path)
		if err != nil {
			return nil, err
		}
		kindStr := p.Kind
		if kindStr == "" {
			kindStr = filepath.Ext(p.Path)
			if len(kindStr) > 0 {
				kindStr = kindStr[1:]
			}
		}
		sess, titles, _, err := s.runExtraction(ctx, filepath.Base(p.Path), kindStr, data)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"session_id":   sess.ID,
			"total_rows":   sess.TotalRows,
			"strategy":     sess.Strategy,
			"total_titles": len(titles),
			"titles":       titles,
		}, nil
	})
}

// --- sessions ---

func (s *Service) registerListSessionsTool(srv *mcp.Server) {
	type req struct{}

	tool := &mcp.Tool{
		Name:        "silabo_list_sessions",
		Description: "List all extraction sessions.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	addTool(srv, tool, func(ctx context.Context, _ *req) (any, error) {
		return s.sessions.ListSessions(ctx)
	})
}

func (s *Service) registerSessionTitlesTool(srv *mcp.Server) {
	type req struct {
		SessionID string `json:"session_id"`
	}

	tool := &mcp.Tool{
		Name:        "silabo_session_titles",
		Description: "List the detected titles of an extraction session.",
		InputSchema: inputSchema(map[string]any{
			"session_id": map[string]any{"type": "string", "description": "Session ID"},
		}, []string{"session_id"}),
	}

	addTool(srv, tool, func(ctx context.Context, p *req) (any, error) {
		if _, err := s.sessions.GetSession(ctx, p.SessionID); err != nil {
			return nil, err
		}
		return s.sessions.SessionTitles(ctx, p.SessionID)
	})
}

// --- content ---

func (s *Service) registerReadContentTool(srv *mcp.Server) {
	type req struct {
		InstanceID string `json:"instance_id"`
	}

	tool := &mcp.Tool{
		Name:        "silabo_read_content",
		Description: "Read the filled content of a template instance, keyed by section name.",
		InputSchema: inputSchema(map[string]any{
			"instance_id": map[string]any{"type": "string", "description": "Instance ID"},
		}, []string{"instance_id"}),
	}

	addTool(srv, tool, func(ctx context.Context, p *req) (any, error) {
		ins, err := s.templates.GetInstance(ctx, p.InstanceID)
		if err != nil {
			return nil, err
		}
		tpl, err := s.templates.GetTemplate(ctx, ins.TemplateID)
		if err != nil {
			return nil, err
		}
		return s.contents.ReadContent(ctx, tpl, ins.ID)
	})
}
