package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/eduforma/silabo/content"
	"github.com/eduforma/silabo/dbopen"
	"github.com/eduforma/silabo/lookup"
	"github.com/eduforma/silabo/session"
	"github.com/eduforma/silabo/template"
)

var testMCPImpl = &mcp.Implementation{Name: "silabo-test", Version: "0.1.0"}

func mcpSession(t *testing.T) *mcp.ClientSession {
	t.Helper()
	db := dbopen.OpenMemory(t,
		dbopen.WithSchema(session.Schema),
		dbopen.WithSchema(template.Schema),
		dbopen.WithSchema(content.Schema),
		dbopen.WithSchema(lookup.Schema))
	svc := New(db, Config{})

	srv := mcp.NewServer(testMCPImpl, nil)
	svc.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	sess, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { sess.Close() })
	return sess
}

func mcpCallTool(t *testing.T, sess *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := sess.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if result.IsError {
		t.Fatalf("CallTool(%s) tool error: %v", name, result.Content)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text
}

func TestMCP_ExtractAndListSessions(t *testing.T) {
	sess := mcpSession(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "programa.docx")
	os.WriteFile(path, buildDocx(t, "PERIODO ACADÉMICO", "asignatura"), 0o644)

	text := mcpCallTool(t, sess, "silabo_extract", map[string]any{"path": path})
	var resp struct {
		SessionID   string `json:"session_id"`
		TotalTitles int    `json:"total_titles"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.SessionID == "" || resp.TotalTitles != 2 {
		t.Errorf("extract = %+v", resp)
	}

	text = mcpCallTool(t, sess, "silabo_list_sessions", map[string]any{})
	var sessions []session.Session
	if err := json.Unmarshal([]byte(text), &sessions); err != nil {
		t.Fatalf("unmarshal sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Filename != "programa.docx" {
		t.Errorf("sessions = %+v", sessions)
	}

	text = mcpCallTool(t, sess, "silabo_session_titles", map[string]any{"session_id": resp.SessionID})
	var titles []session.DetectedTitle
	if err := json.Unmarshal([]byte(text), &titles); err != nil {
		t.Fatalf("unmarshal titles: %v", err)
	}
	if len(titles) != 2 {
		t.Errorf("titles = %+v", titles)
	}
}

func TestMCP_ReadContentUnknownInstance(t *testing.T) {
	sess := mcpSession(t)

	result, err := sess.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "silabo_read_content",
		Arguments: map[string]any{"instance_id": "ins_missing"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for unknown instance")
	}
}
