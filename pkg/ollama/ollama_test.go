package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmbedClient(t *testing.T) {
	var got embedReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		out := embedResp{}
		for i := range got.Input {
			out.Embeddings = append(out.Embeddings, []float32{float32(i), 1})
		}
		json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	c := NewEmbedClient(srv.URL+"/", "nomic-embed-text", 512)
	vecs, err := c.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 3 || vecs[2][0] != 2 {
		t.Fatalf("unexpected vectors %v", vecs)
	}
	if got.Model != "nomic-embed-text" || !got.Truncate {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.Options["num_ctx"] != float64(512) {
		t.Fatalf("num_ctx not sent: %v", got.Options)
	}
}

func TestEmbedClient_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(embedResp{Embeddings: [][]float32{{1}}})
	}))
	defer srv.Close()

	if _, err := NewEmbedClient(srv.URL, "m", 0).Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected count mismatch error")
	}
}

func TestEmbedClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewEmbedClient(srv.URL, "missing", 0).Embed(context.Background(), []string{"a"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestEmbedClient_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	if _, err := NewEmbedClient(srv.URL, "m", 0).Embed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestChatClient(t *testing.T) {
	var got chatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(chatResp{Model: got.Model, Message: Message{Role: "assistant", Content: "MVCC."}, Done: true})
	}))
	defer srv.Close()

	c := NewChatClient(srv.URL, "llama3.1:8b")
	reply, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, ChatOptions{Temperature: 0.7, NumPredict: 200})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply != "MVCC." {
		t.Fatalf("unexpected reply %q", reply)
	}
	if got.Stream {
		t.Fatal("stream must be disabled")
	}
	if got.Options["num_predict"] != float64(200) || got.Options["temperature"] != 0.7 {
		t.Fatalf("unexpected options %v", got.Options)
	}
}

func TestChatClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := NewChatClient(url, "m").Chat(context.Background(), nil, ChatOptions{}); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestDefaultURL(t *testing.T) {
	if NewEmbedClient("", "m", 0).baseURL != DefaultURL || NewChatClient("", "m").baseURL != DefaultURL {
		t.Fatal("empty base URL should use DefaultURL")
	}
}
