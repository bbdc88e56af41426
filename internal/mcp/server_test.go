package mcp_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/estatetools/propstack-mcp/internal/crm"
	mcpserver "github.com/estatetools/propstack-mcp/internal/mcp"
	"github.com/estatetools/propstack-mcp/internal/testutil"
	"github.com/estatetools/propstack-mcp/pkg/client"
)

func newTestServer(t *testing.T, mock *testutil.MockCRM) *mcpserver.Server {
	t.Helper()

	c, err := client.New(client.Config{
		APIKey:  "test-key",
		BaseURL: mock.URL(),
		Timeout: 5 * time.Second,
		Retry: client.RetryConfig{
			MaxRetries:  1,
			BaseBackoff: time.Millisecond,
		},
	})
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}

	service := crm.NewService(c, crm.DefaultOptions())
	return mcpserver.NewServer(service, "test")
}

func connectInMemory(t *testing.T, ctx context.Context, srv *mcpserver.Server) *sdkmcp.ClientSession {
	t.Helper()
	t1, t2 := sdkmcp.NewInMemoryTransports()
	serverSession, err := srv.MCPServer.Connect(ctx, t1, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}
	t.Cleanup(func() { serverSession.Close() })

	mcpClient := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := mcpClient.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	return session
}

func callTool(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any) map[string]any {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if res.IsError {
		for _, c := range res.Content {
			if tc, ok := c.(*sdkmcp.TextContent); ok {
				t.Fatalf("CallTool(%s) returned error: %s", name, tc.Text)
			}
		}
		t.Fatalf("CallTool(%s) returned error", name)
	}
	result := make(map[string]any)
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			if err := json.Unmarshal([]byte(tc.Text), &result); err != nil {
				t.Fatalf("unmarshal tool result: %v (text: %s)", err, tc.Text)
			}
			return result
		}
	}
	t.Fatalf("no text content in tool result")
	return nil
}

func toolErrorText(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any) string {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if !res.IsError {
		t.Fatalf("CallTool(%s) succeeded, expected a tool error", name)
	}
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatalf("no text content in tool error")
	return ""
}

func TestServer_ToolDiscovery(t *testing.T) {
	mock := testutil.NewMockCRM()
	defer mock.Close()

	srv := newTestServer(t, mock)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}

	want := map[string]bool{
		"search_contacts":      false,
		"get_contact":          false,
		"create_contact":       false,
		"update_contact":       false,
		"search_properties":    false,
		"get_property":         false,
		"create_property":      false,
		"update_property":      false,
		"list_deals":           false,
		"get_deal":             false,
		"update_deal":          false,
		"list_deal_stages":     false,
		"list_tasks":           false,
		"create_task":          false,
		"list_search_profiles": false,
		"match_property":       false,
		"pipeline_report":      false,
		"contact_dossier":      false,
	}
	for _, tool := range tools.Tools {
		if _, ok := want[tool.Name]; ok {
			want[tool.Name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("tool %q not found in ListTools", name)
		}
	}
}

func TestServer_GetContact(t *testing.T) {
	mock := testutil.NewMockCRM()
	defer mock.Close()
	mock.SetResponse("/v1/contacts/42", testutil.NewJSONResponse(
		`{"id":42,"first_name":"Anna","last_name":"Meier"}`))

	srv := newTestServer(t, mock)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)
	defer session.Close()

	result := callTool(t, ctx, session, "get_contact", map[string]any{"id": 42})

	if result["id"] != float64(42) || result["last_name"] != "Meier" {
		t.Errorf("Result = %v", result)
	}
}

func TestServer_SearchProperties(t *testing.T) {
	mock := testutil.NewMockCRM()
	defer mock.Close()
	mock.SetPaginated("/v1/units", []any{
		map[string]any{"id": 1, "marketing_type": "BUY", "city": "Berlin"},
		map[string]any{"id": 2, "marketing_type": "BUY", "city": "Potsdam"},
	})

	srv := newTestServer(t, mock)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)
	defer session.Close()

	result := callTool(t, ctx, session, "search_properties", map[string]any{
		"marketing_type": "BUY",
		"cities":         []string{"Berlin", "Potsdam"},
	})

	items, ok := result["items"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("items = %v", result["items"])
	}
	if result["truncated"] != false {
		t.Errorf("truncated = %v", result["truncated"])
	}
	if !strings.Contains(mock.LastQuery, "cities%5B%5D=Berlin") {
		t.Errorf("Query = %q, array filter not forwarded", mock.LastQuery)
	}
}

func TestServer_MatchProperty(t *testing.T) {
	mock := testutil.NewMockCRM()
	defer mock.Close()
	mock.SetResponse("/v1/units/1", testutil.NewJSONResponse(
		`{"id":1,"marketing_type":"BUY","city":"Berlin","price":350000}`))
	mock.SetPaginated("/v1/search_profiles", []any{
		map[string]any{
			"id": 10, "client_id": 100,
			"marketing_type": "BUY",
			"cities":         []string{"Berlin"},
		},
	})

	srv := newTestServer(t, mock)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)
	defer session.Close()

	result := callTool(t, ctx, session, "match_property", map[string]any{"id": 1})

	ranking, ok := result["ranking"].(map[string]any)
	if !ok {
		t.Fatalf("ranking = %v", result["ranking"])
	}
	matches, ok := ranking["matches"].([]any)
	if !ok || len(matches) != 1 {
		t.Fatalf("matches = %v", ranking["matches"])
	}
	best := matches[0].(map[string]any)
	if best["criteria_id"] != float64(10) || best["score"] != float64(6) {
		t.Errorf("Best match = %v", best)
	}
}

func TestServer_ToolErrorCarriesClassification(t *testing.T) {
	mock := testutil.NewMockCRM()
	defer mock.Close()

	srv := newTestServer(t, mock)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)
	defer session.Close()

	text := toolErrorText(t, ctx, session, "get_contact", map[string]any{"id": 9999})

	for _, want := range []string{"get_contact", "not_found", "9999"} {
		if !strings.Contains(text, want) {
			t.Errorf("Error text = %q, missing %q", text, want)
		}
	}
}

func TestServer_ValidationErrorListsFields(t *testing.T) {
	mock := testutil.NewMockCRM()
	defer mock.Close()
	mock.SetResponse("/v1/contacts", testutil.NewValidationResponse(
		map[string][]string{"email": {"is invalid"}}))

	srv := newTestServer(t, mock)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)
	defer session.Close()

	text := toolErrorText(t, ctx, session, "create_contact", map[string]any{"email": "broken"})

	for _, want := range []string{"validation", "email", "is invalid"} {
		if !strings.Contains(text, want) {
			t.Errorf("Error text = %q, missing %q", text, want)
		}
	}
}
