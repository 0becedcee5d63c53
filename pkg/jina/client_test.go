package jina

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/internal/resilience"
)

var testRetry = resilience.RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: time.Millisecond,
	MaxBackoff:     5 * time.Millisecond,
	Multiplier:     2,
}

// scripted answers with statuses[i] on the i-th call and body once the
// statuses run out.
func scripted(t *testing.T, body any, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		if n <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			_, _ = w.Write([]byte(`{"error":"upstream"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestRead_Success(t *testing.T) {
	t.Parallel()

	want := ReadResponse{
		Code: 200,
		Data: ReadData{
			Title:   "Bright Smile Dental",
			URL:     "https://brightsmile.example",
			Content: "# Bright Smile Dental\n\nCall (555) 010-2000.",
			Usage:   ReadUsage{Tokens: 812},
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "markdown", r.Header.Get("X-Return-Format"))
		assert.Empty(t, r.Header.Get("X-Engine"))
		assert.Equal(t, "/https://brightsmile.example", r.URL.Path)
		_ = json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRetry(testRetry))
	got, err := client.Read(context.Background(), "https://brightsmile.example")

	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestRead_StatusHandling(t *testing.T) {
	t.Parallel()

	ok := ReadResponse{Code: 200, Data: ReadData{Title: "Harbor Yoga", Content: "classes"}}
	tests := []struct {
		name      string
		statuses  []int
		wantErr   string
		wantCalls int32
	}{
		{"recovers after two 429s", []int{429, 429}, "", 3},
		{"recovers after a 500", []int{500}, "", 2},
		{"gives up after max attempts", []int{503, 503, 503}, "503", 3},
		{"404 is not retried", []int{404}, "404", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv, calls := scripted(t, ok, tt.statuses...)
			client := NewClient("test-key", WithBaseURL(srv.URL), WithRetry(testRetry))

			got, err := client.Read(context.Background(), "https://harboryoga.example")

			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Harbor Yoga", got.Data.Title)
		})
	}
}

func TestRead_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRetry(testRetry))
	_, err := client.Read(context.Background(), "https://brightsmile.example")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestRead_CanceledContext(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRetry(testRetry))
	_, err := client.Read(ctx, "https://brightsmile.example")

	require.Error(t, err)
	assert.Zero(t, calls.Load())
}

func TestRead_Options(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "browser", r.Header.Get("X-Engine"))
		assert.Equal(t, "20", r.Header.Get("X-Timeout"))
		assert.Equal(t, "true", r.Header.Get("X-With-Links-Summary"))
		_, _ = w.Write([]byte(`{"code":200,"data":{"title":"Harbor Yoga","content":"hi","links":{"Contact":"https://harboryoga.example/contact"}}}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRetry(testRetry))
	got, err := client.Read(context.Background(), "https://harboryoga.example",
		WithBrowserEngine(),
		WithPageTimeout(20*time.Second),
		WithLinksSummary(),
	)

	require.NoError(t, err)
	assert.Equal(t, "https://harboryoga.example/contact", got.Data.Links["Contact"])
}

func TestNewClient_Options(t *testing.T) {
	t.Parallel()

	hc := NewClient("my-key").(*httpClient)
	assert.Equal(t, "my-key", hc.apiKey)
	assert.Equal(t, "https://r.jina.ai", hc.baseURL)
	assert.Equal(t, "https://s.jina.ai", hc.searchBaseURL)
	require.NotNil(t, hc.http)
	assert.Equal(t, 30*time.Second, hc.http.Timeout)

	custom := &http.Client{Timeout: time.Second}
	hc = NewClient("k", WithHTTPClient(custom), WithSearchBaseURL("https://search.internal")).(*httpClient)
	assert.Same(t, custom, hc.http)
	assert.Equal(t, "https://search.internal", hc.searchBaseURL)
}

func TestSearch_Success(t *testing.T) {
	t.Parallel()

	want := SearchResponse{
		Code: 200,
		Data: []SearchResult{{
			Title:       "Harbor Yoga | Contact",
			URL:         "https://harboryoga.example/contact",
			Description: "Yoga studio in Portland",
		}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("X-Return-Format"))
		assert.Contains(t, r.URL.RawQuery, "site=harboryoga.example")
		_ = json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithSearchBaseURL(srv.URL), WithRetry(testRetry))
	got, err := client.Search(context.Background(), "yoga studio contact", WithSiteFilter("harboryoga.example"))

	require.NoError(t, err)
	require.Len(t, got.Data, 1)
	assert.Equal(t, want.Data[0].URL, got.Data[0].URL)
}

func TestSearch_Errors(t *testing.T) {
	t.Parallel()

	t.Run("retries then succeeds", func(t *testing.T) {
		t.Parallel()
		srv, calls := scripted(t, SearchResponse{Code: 200, Data: []SearchResult{{Title: "x"}}}, 500)
		client := NewClient("test-key", WithSearchBaseURL(srv.URL), WithRetry(testRetry))

		got, err := client.Search(context.Background(), "dentist")

		require.NoError(t, err)
		assert.Len(t, got.Data, 1)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("422 means no results", func(t *testing.T) {
		t.Parallel()
		srv, calls := scripted(t, nil, http.StatusUnprocessableEntity)
		client := NewClient("test-key", WithSearchBaseURL(srv.URL), WithRetry(testRetry))

		got, err := client.Search(context.Background(), "dentist in nowhere")

		require.NoError(t, err)
		assert.Empty(t, got.Data)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[`))
		}))
		t.Cleanup(srv.Close)
		client := NewClient("test-key", WithSearchBaseURL(srv.URL), WithRetry(testRetry))

		_, err := client.Search(context.Background(), "dentist")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "unmarshal")
	})
}
