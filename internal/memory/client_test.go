package memory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/daddyholnes/podplay-claude-sub001/internal/metrics"
	"github.com/daddyholnes/podplay-claude-sub001/pkg/config"
)

func TestAddExchange(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(config.MemoryConfig{Endpoint: srv.URL, APIKey: "secret"}, nil)
	if err := c.AddExchange(context.Background(), "user-1", "hi", "hello"); err != nil {
		t.Fatal(err)
	}

	if gotPath != "/memories" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if gotAuth != "Token secret" {
		t.Errorf("unexpected auth header: %s", gotAuth)
	}
	if gotBody["user_id"] != "user-1" {
		t.Errorf("unexpected user id: %v", gotBody["user_id"])
	}
	msgs, ok := gotBody["messages"].([]interface{})
	if !ok || len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %v", gotBody["messages"])
	}
}

func TestAddExchange_RemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(config.MemoryConfig{Endpoint: srv.URL}, nil)
	if err := c.AddExchange(context.Background(), "u", "a", "b"); err == nil {
		t.Fatal("expected error on remote failure")
	}
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/memories/search" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["limit"] != float64(3) {
			t.Errorf("expected limit 3, got %v", body["limit"])
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"id": "m1", "memory": "likes Go", "score": 0.91},
				{"id": "m2", "memory": "works on podplay", "score": 0.77},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(config.MemoryConfig{Endpoint: srv.URL, SearchLimit: 3}, nil)
	memories, err := c.Search(context.Background(), "user-1", "what do I like")
	if err != nil {
		t.Fatal(err)
	}
	if len(memories) != 2 {
		t.Fatalf("expected 2 memories, got %d", len(memories))
	}
	if memories[0].Text != "likes Go" {
		t.Errorf("unexpected memory text: %s", memories[0].Text)
	}
	if memories[0].Score != 0.91 {
		t.Errorf("unexpected score: %f", memories[0].Score)
	}
}

func TestSearch_DefaultLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["limit"] != float64(5) {
			t.Errorf("expected default limit 5, got %v", body["limit"])
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"results": []interface{}{}})
	}))
	defer srv.Close()

	c := NewClient(config.MemoryConfig{Endpoint: srv.URL}, nil)
	if _, err := c.Search(context.Background(), "u", "q"); err != nil {
		t.Fatal(err)
	}
}

func TestRecentContext_NilWithoutCache(t *testing.T) {
	c := NewClient(config.MemoryConfig{Endpoint: "http://localhost:0"}, nil)
	if got := c.RecentContext(context.Background(), "u"); got != nil {
		t.Errorf("expected nil without cache, got %v", got)
	}
}

// fakeContextCache is an in-process contextCache.
type fakeContextCache struct {
	exchanges []Exchange
}

func (f *fakeContextCache) Append(ctx context.Context, userID string, ex Exchange) error {
	f.exchanges = append(f.exchanges, ex)
	return nil
}

func (f *fakeContextCache) Recent(ctx context.Context, userID string) ([]Exchange, error) {
	return f.exchanges, nil
}

func TestRecentContext_CountsCacheHits(t *testing.T) {
	m := metrics.NewMetrics()
	before := testutil.ToFloat64(m.MemoryCacheHits)

	c := NewClient(config.MemoryConfig{Endpoint: "http://localhost:0"}, nil)
	c.cache = &fakeContextCache{exchanges: []Exchange{{User: "hi", Assistant: "hello"}}}
	c.SetMetrics(m)

	got := c.RecentContext(context.Background(), "u")
	if len(got) != 1 {
		t.Fatalf("expected 1 cached exchange, got %d", len(got))
	}
	if delta := testutil.ToFloat64(m.MemoryCacheHits) - before; delta != 1 {
		t.Errorf("expected 1 cache hit recorded, got %v", delta)
	}

	// An empty cache read is not a hit.
	c.cache = &fakeContextCache{}
	c.RecentContext(context.Background(), "u")
	if delta := testutil.ToFloat64(m.MemoryCacheHits) - before; delta != 1 {
		t.Errorf("empty read must not count as a hit, got %v", delta)
	}
}
