package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/haasonsaas/buildli/api/rpc"
	"github.com/haasonsaas/buildli/internal/indexer"
	"github.com/haasonsaas/buildli/internal/provider"
	"github.com/haasonsaas/buildli/internal/query"
	"github.com/haasonsaas/buildli/internal/vectorstore"
	"github.com/haasonsaas/buildli/pkg/core/health"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// echoLLM answers with a fixed string, streamed in two frames.
type echoLLM struct {
	provider.Provider
	answer string
}

func (f *echoLLM) Name() string { return "echo" }

func (f *echoLLM) Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	return &provider.ChatResponse{
		Message: provider.Message{Role: "assistant", Content: f.answer},
		Done:    true,
	}, nil
}

func (f *echoLLM) ChatStream(ctx context.Context, req *provider.ChatRequest) (<-chan *provider.ChatResponse, <-chan error) {
	respCh := make(chan *provider.ChatResponse, 2)
	errCh := make(chan error, 1)
	half := len(f.answer) / 2
	respCh <- &provider.ChatResponse{Message: provider.Message{Content: f.answer[:half]}}
	respCh <- &provider.ChatResponse{Message: provider.Message{Content: f.answer[half:]}, Done: true}
	close(respCh)
	close(errCh)
	return respCh, errCh
}

const seededChunk = "func LoadConfig() error { return nil }"

func newTestServer(t *testing.T, token string) *Server {
	t.Helper()

	embedder := provider.NewLocalProvider()
	store := vectorstore.NewMemoryStore()

	resp, err := embedder.Embed(context.Background(),
		&provider.EmbeddingRequest{Input: []string{seededChunk}})
	if err != nil {
		t.Fatal(err)
	}
	err = store.Insert(context.Background(), &vectorstore.Document{
		ID:        "c1",
		Content:   seededChunk,
		Embedding: resp.Embeddings[0],
		Metadata: map[string]string{
			vectorstore.MetaFilePath:  "config.go",
			vectorstore.MetaLineStart: "1",
			vectorstore.MetaLineEnd:   "5",
			vectorstore.MetaLanguage:  "go",
		},
		Collection: "buildli",
	})
	if err != nil {
		t.Fatal(err)
	}

	engine := query.New(query.Options{
		Embedder: embedder,
		LLM:      &echoLLM{answer: "it loads the config"},
		Store:    store,
	})
	ix := indexer.New(indexer.Options{
		Embedder:   embedder,
		Store:      store,
		Collection: "buildli",
	})

	reg := health.NewRegistry("buildli", "test")
	reg.Register(health.AlwaysHealthy("store"))

	return New(Options{
		Token:   token,
		Engine:  engine,
		Indexer: ix,
		Health:  reg,
	})
}

func TestHealthEndpoint(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, "").routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var report health.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Status != health.StatusHealthy {
		t.Errorf("Status = %v, want healthy", report.Status)
	}
}

func TestQueryEndpoint(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, "").routes())
	defer srv.Close()

	body, _ := json.Marshal(map[string]interface{}{
		"question": seededChunk,
		"top_k":    1,
	})
	resp, err := http.Post(srv.URL+"/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /v1/query: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d: %s", resp.StatusCode, raw)
	}

	var got queryHTTPResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Answer != "it loads the config" {
		t.Errorf("Answer = %q", got.Answer)
	}
	if len(got.References) != 1 || got.References[0].FilePath != "config.go" {
		t.Errorf("References = %+v", got.References)
	}
}

func TestQueryEndpoint_BadRequest(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, "").routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/query", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTokenMiddleware(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, "secret").routes())
	defer srv.Close()

	// Missing token is rejected.
	resp, err := http.Get(srv.URL + "/v1/index/status")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status without token = %d, want 401", resp.StatusCode)
	}

	// Health stays open.
	resp, err = http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}

	// Correct token passes.
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/index/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status with token = %d, want 200", resp.StatusCode)
	}
}

func TestIndexStatusEndpoint(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, "").routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/index/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var got rpc.IndexStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// One seeded chunk lives in the store even before any indexing run.
	if got.TotalChunks != 1 {
		t.Errorf("TotalChunks = %d, want 1", got.TotalChunks)
	}
}

func TestQueryWebSocket(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, "").routes())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/query/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]interface{}{"question": seededChunk, "top_k": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var answer strings.Builder
	var done bool
	for !done {
		var frame wsFrame
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read: %v", err)
		}
		switch frame.Type {
		case "chunk":
			answer.WriteString(frame.Content)
		case "done":
			done = true
			if len(frame.References) != 1 {
				t.Errorf("done frame references = %+v, want 1", frame.References)
			}
		case "error":
			t.Fatalf("error frame: %s", frame.Error)
		}
	}
	if answer.String() != "it loads the config" {
		t.Errorf("streamed answer = %q", answer.String())
	}
}

func TestGRPCService_EndToEnd(t *testing.T) {
	ts := newTestServer(t, "")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	grpcSrv := grpc.NewServer()
	rpc.RegisterBuildliServiceServer(grpcSrv, &buildliService{
		engine:  ts.opts.Engine,
		indexer: ts.opts.Indexer,
	})
	go grpcSrv.Serve(ln)
	defer grpcSrv.Stop()

	conn, err := grpc.NewClient(ln.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	client := rpc.NewBuildliServiceClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.Query(ctx, &rpc.QueryRequest{Question: seededChunk, TopK: 1})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	var answer strings.Builder
	var refs []*rpc.CodeReference
	for {
		frame, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		answer.WriteString(frame.Chunk)
		if len(frame.References) > 0 {
			refs = frame.References
		}
	}
	if answer.String() != "it loads the config" {
		t.Errorf("answer = %q", answer.String())
	}
	if len(refs) != 1 || refs[0].FilePath != "config.go" {
		t.Errorf("refs = %+v", refs)
	}

	status, err := client.IndexStatus(ctx, &rpc.IndexStatusRequest{})
	if err != nil {
		t.Fatalf("IndexStatus: %v", err)
	}
	if status.TotalChunks != 1 {
		t.Errorf("TotalChunks = %d, want 1", status.TotalChunks)
	}
}
