package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func writeEnvelopeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
}

func TestCreateProjectInstallsToken(t *testing.T) {
	var sawAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/projects":
			writeEnvelope(w, http.StatusCreated, map[string]any{
				"project": map[string]string{"id": "p1", "name": "alpha"},
				"token":   "tok-123",
			})
		case r.URL.Path == "/api/v1/projects/current":
			sawAuth = r.Header.Get("Authorization")
			writeEnvelope(w, http.StatusOK, map[string]string{"id": "p1", "name": "alpha"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	p, err := c.CreateProject(context.Background(), "alpha", "")
	require.NoError(t, err)
	require.Equal(t, "p1", p.ID)
	require.Equal(t, "tok-123", c.Token())

	_, err = c.CurrentProject(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer tok-123", sawAuth)
}

func TestServerErrorSurfacesCodeAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelopeError(w, http.StatusForbidden, "forbidden", "invalid session token")
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.SetToken("stale")
	_, err := c.Graph(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "forbidden", apiErr.Code)
	require.Equal(t, http.StatusForbidden, apiErr.Status)
	require.Contains(t, apiErr.Error(), "invalid session token")
}

func TestPlainTextErrorKeepsStatus(t *testing.T) {
	// The rate limiter and recovery middleware answer with http.Error,
	// not the JSON envelope.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Graph(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	require.Equal(t, "unknown", apiErr.Code)
}

func TestImportDefaultsEmptyArrays(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeEnvelope(w, http.StatusOK, map[string]int{"nodeCount": 0, "edgeCount": 0})
	}))
	defer srv.Close()

	c := New(srv.URL)
	res, err := c.Import(context.Background(), &GraphData{})
	require.NoError(t, err)
	require.Zero(t, res.NodeCount)

	// The wire contract requires both arrays present, nil or not.
	require.NotNil(t, gotBody["nodes"])
	require.NotNil(t, gotBody["edges"])
}

func TestDeleteNodeDecodesCounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/nodes/n1"))
		writeEnvelope(w, http.StatusOK, map[string]int64{"nodesDeleted": 1, "edgesDeleted": 2})
	}))
	defer srv.Close()

	c := New(srv.URL)
	res, err := c.DeleteNode(context.Background(), "n1")
	require.NoError(t, err)
	require.Equal(t, int64(1), res.NodesDeleted)
	require.Equal(t, int64(2), res.EdgesDeleted)
}

func TestSyncerAdvancesToServerWatermark(t *testing.T) {
	var mu sync.Mutex
	var sinceSeen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		since := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		mu.Lock()
		sinceSeen = append(sinceSeen, since)
		mu.Unlock()
		if since == "0" {
			writeEnvelope(w, http.StatusOK, map[string]any{
				"timestamp": 500,
				"nodes":     []map[string]any{{"id": "n1", "label": "fresh", "updated_at": 480}},
				"edges":     []map[string]any{{"id": "e1", "source": "n1", "target": "n1"}},
			})
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]any{
			"timestamp": 500, "nodes": []any{}, "edges": []any{},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	mirror := NewMirror()
	s := NewSyncer(c, mirror, 0, nil)

	require.NoError(t, s.SyncOnce(context.Background()))
	nodes, edges := mirror.Len()
	require.Equal(t, 1, nodes)
	require.Equal(t, 1, edges)
	// The cursor advances to the response watermark, not the max row
	// timestamp, so in-flight writes are never skipped.
	require.Equal(t, int64(500), s.Watermark())

	require.NoError(t, s.SyncOnce(context.Background()))
	require.Equal(t, int64(500), s.Watermark())
	nodes, _ = mirror.Len()
	require.Equal(t, 1, nodes)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"0", "500"}, sinceSeen)
}

func TestSyncerWatermarkReadableWhileRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]any{
			"timestamp": 7, "nodes": []any{}, "edges": []any{},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	s := NewSyncer(c, NewMirror(), 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	// Poll the cursor from the caller's goroutine while Run advances it.
	deadline := time.Now().Add(3 * time.Second)
	for s.Watermark() != 7 {
		if time.Now().After(deadline) {
			t.Fatal("watermark never advanced")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done
}

func TestSyncerReportsPollFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelopeError(w, http.StatusForbidden, "forbidden", "invalid session token")
	}))
	defer srv.Close()

	c := New(srv.URL)
	s := NewSyncer(c, NewMirror(), 0, nil)
	s.SetWatermark(42)

	err := s.SyncOnce(context.Background())
	require.Error(t, err)
	require.Equal(t, int64(42), s.Watermark(), "a failed poll never moves the cursor")
}
