package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/codex/internal/collection"
	"github.com/starford/codex/internal/models"
	"github.com/starford/codex/internal/recordservice"
	"github.com/starford/codex/internal/storage"
	"github.com/starford/codex/internal/testutil"
)

type staticDecls string

func (d staticDecls) Contents() string { return string(d) }

type recordingBuilder struct {
	built []string
}

func (b *recordingBuilder) BuildFile(_ context.Context, p string) (*models.Record, error) {
	b.built = append(b.built, p)
	return &models.Record{}, nil
}

func testServer(t *testing.T) (*Server, *storage.FS, *recordingBuilder) {
	t.Helper()

	_, store := testutil.TestProject(t, map[string]string{
		"posts/a.md": testutil.PostA,
		"posts/b.md": testutil.PostB,
	})
	host := testutil.TestHost(t, store, collection.Options{}, testutil.PostsConfig())
	db := testutil.TestDB(t)
	c, _ := host.Collection("posts")
	records, err := c.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range records {
		if err := db.Upsert(r); err != nil {
			t.Fatal(err)
		}
	}

	svc := recordservice.NewService(host, db, staticDecls(`declare module "#posts" {}`))
	b := &recordingBuilder{}
	return New(svc, store, b), store, b
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_collections":
		result, err = srv.listCollections(ctx, req)
	case "list_records":
		result, err = srv.listRecords(ctx, req)
	case "get_record":
		result, err = srv.getRecord(ctx, req)
	case "search_records":
		result, err = srv.searchRecords(ctx, req)
	case "get_collection_contract":
		result, err = srv.getContract(ctx, req)
	case "create_record":
		result, err = srv.createRecord(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestListCollections(t *testing.T) {
	srv, _, _ := testServer(t)

	r := callTool(t, srv, "list_collections", map[string]interface{}{})
	var cols []recordservice.CollectionInfo
	if err := json.Unmarshal([]byte(resultText(r)), &cols); err != nil {
		t.Fatalf("decode: %v (%s)", err, resultText(r))
	}
	if len(cols) != 1 || cols[0].Module != "#posts" {
		t.Errorf("collections = %+v", cols)
	}
}

func TestListRecords(t *testing.T) {
	srv, _, _ := testServer(t)

	r := callTool(t, srv, "list_records", map[string]interface{}{"collection": "posts"})
	var records []map[string]any
	if err := json.Unmarshal([]byte(resultText(r)), &records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 2 || records[0]["id"] != "b" || records[1]["id"] != "a" {
		t.Errorf("records = %v, want [b a]", records)
	}
}

func TestGetRecord(t *testing.T) {
	srv, _, _ := testServer(t)

	r := callTool(t, srv, "get_record", map[string]interface{}{"collection": "posts", "id": "a"})
	if r.IsError {
		t.Fatalf("get_record: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `"title": "First post"`) {
		t.Errorf("record = %s", resultText(r))
	}
}

func TestGetRecordMissing(t *testing.T) {
	srv, _, _ := testServer(t)

	r := callTool(t, srv, "get_record", map[string]interface{}{"collection": "posts", "id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing record")
	}
	r = callTool(t, srv, "get_record", map[string]interface{}{"collection": "ghost", "id": "a"})
	if !r.IsError {
		t.Error("expected error for missing collection")
	}
}

func TestSearchRecords(t *testing.T) {
	srv, _, _ := testServer(t)

	r := callTool(t, srv, "search_records", map[string]interface{}{"query": "Hello"})
	if r.IsError {
		t.Fatalf("search: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `"collection": "posts"`) {
		t.Errorf("search = %s", resultText(r))
	}

	r = callTool(t, srv, "search_records", map[string]interface{}{"query": "Hello", "collection": "pages"})
	if !r.IsError {
		t.Errorf("unknown collection should be a tool error: %s", resultText(r))
	}
}

func TestGetContract(t *testing.T) {
	srv, _, _ := testServer(t)

	r := callTool(t, srv, "get_collection_contract", map[string]interface{}{"collection": "posts"})
	text := resultText(r)
	for _, want := range []string{"`#posts`", "| `title` | `string` | yes |", "| `tags` | `string[]` | no |", "by `date`, descending"} {
		if !strings.Contains(text, want) {
			t.Errorf("contract missing %q:\n%s", want, text)
		}
	}
}

func TestCreateRecord(t *testing.T) {
	srv, store, b := testServer(t)

	r := callTool(t, srv, "create_record", map[string]interface{}{
		"collection": "posts",
		"id":         "c",
		"content":    "---\ntitle: Third\ndate: 2024-09-01\nauthor: josh\n---\nHi\n",
	})
	if text := resultText(r); text != "created: posts/c" {
		t.Fatalf("create result = %q", text)
	}
	if _, err := store.Read("posts/c.md"); err != nil {
		t.Errorf("document not written: %v", err)
	}
	if len(b.built) != 1 || b.built[0] != "posts/c.md" {
		t.Errorf("built = %v", b.built)
	}
}

func TestCreateRecordInvalidIsRemoved(t *testing.T) {
	srv, store, b := testServer(t)

	r := callTool(t, srv, "create_record", map[string]interface{}{
		"collection": "posts",
		"id":         "bad",
		"content":    "---\ntitle: Bad\n---\nno date\n",
	})
	if !r.IsError {
		t.Fatal("expected validation error")
	}
	if _, err := store.Read("posts/bad.md"); err == nil {
		t.Error("invalid document should be removed")
	}
	if len(b.built) != 0 {
		t.Errorf("built = %v, want none", b.built)
	}
}

func TestCreateRecordRejects(t *testing.T) {
	srv, _, _ := testServer(t)

	for _, id := range []string{"a", "../escape", "sub/dir"} {
		r := callTool(t, srv, "create_record", map[string]interface{}{
			"collection": "posts",
			"id":         id,
			"content":    testutil.PostA,
		})
		if !r.IsError {
			t.Errorf("create %q should fail", id)
		}
	}
}

func TestReadDeclarationsResource(t *testing.T) {
	srv, _, _ := testServer(t)

	contents, err := srv.readDeclarationsResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.Text != `declare module "#posts" {}` {
		t.Errorf("declarations = %+v", contents)
	}
}
