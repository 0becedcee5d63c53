package scrape

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/resilience"
	"github.com/sells-group/leadgen/pkg/jina"
)

type mockJinaClient struct {
	mock.Mock
}

func (m *mockJinaClient) Read(ctx context.Context, targetURL string, opts ...jina.ReadOption) (*jina.ReadResponse, error) {
	args := m.Called(ctx, targetURL, len(opts))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jina.ReadResponse), args.Error(1)
}

func (m *mockJinaClient) Search(ctx context.Context, query string, opts ...jina.SearchOption) (*jina.SearchResponse, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jina.SearchResponse), args.Error(1)
}

var jinaContent = "# Sunrise Academy\n\nWe offer primary and secondary education in Pune. " +
	"Reach the [admissions office](https://sunrise.edu/contact) or [email us](mailto:info@sunrise.edu)."

func TestJinaScraper_Scrape_Success(t *testing.T) {
	t.Parallel()
	client := &mockJinaClient{}
	client.On("Read", mock.Anything, "https://sunrise.edu", 1).Return(&jina.ReadResponse{
		Code: 200,
		Data: jina.ReadData{
			URL:     "https://sunrise.edu/",
			Title:   "Sunrise Academy",
			Content: jinaContent,
			Links:   map[string]string{"Team": "https://sunrise.edu/team", "admissions office": "https://sunrise.edu/contact"},
		},
	}, nil)

	s := NewJinaScraper(client, nil)
	result, err := s.Scrape(context.Background(), Request{URL: "https://sunrise.edu"})
	require.NoError(t, err)

	assert.Equal(t, "jina", result.Source)
	assert.Equal(t, "https://sunrise.edu/", result.Page.URL)
	assert.Equal(t, "Sunrise Academy", result.Page.Title)
	assert.Equal(t, []model.Link{
		{Href: "https://sunrise.edu/contact", Text: "admissions office"},
		{Href: "mailto:info@sunrise.edu", Text: "email us"},
		{Href: "https://sunrise.edu/team", Text: "Team"},
	}, result.Page.Links)
	client.AssertExpectations(t)
}

func TestJinaScraper_Patient(t *testing.T) {
	t.Parallel()
	client := &mockJinaClient{}
	client.On("Read", mock.Anything, "https://spa.io", 3).Return(&jina.ReadResponse{
		Code: 200,
		Data: jina.ReadData{Content: jinaContent},
	}, nil)

	s := NewJinaScraper(client, nil).Patient(30 * time.Second)
	result, err := s.Scrape(context.Background(), Request{URL: "https://spa.io"})
	require.NoError(t, err)

	assert.Equal(t, "jina_browser", result.Source)
	assert.Equal(t, "https://spa.io", result.Page.URL)
	client.AssertExpectations(t)
}

func TestJinaScraper_Scrape_ClientError(t *testing.T) {
	t.Parallel()
	client := &mockJinaClient{}
	client.On("Read", mock.Anything, "https://fail.com", 1).Return(nil, errors.New("connection refused"))

	_, err := NewJinaScraper(client, nil).Scrape(context.Background(), Request{URL: "https://fail.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestJinaScraper_Scrape_ChallengePage(t *testing.T) {
	t.Parallel()
	client := &mockJinaClient{}
	client.On("Read", mock.Anything, "https://cf.com", 1).Return(&jina.ReadResponse{
		Code: 200,
		Data: jina.ReadData{Content: "Just a moment... Checking your browser before accessing cf.com. This takes a few seconds."},
	}, nil)

	_, err := NewJinaScraper(client, nil).Scrape(context.Background(), Request{URL: "https://cf.com"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBlocked))
}

func TestJinaScraper_BreakerOpens(t *testing.T) {
	t.Parallel()
	client := &mockJinaClient{}
	client.On("Read", mock.Anything, mock.Anything, 1).Return(nil, errors.New("upstream down"))

	breaker := resilience.NewCircuitBreaker("jina", resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
	})
	s := NewJinaScraper(client, breaker)

	assert.True(t, s.Supports("https://a.com"))
	for i := 0; i < 2; i++ {
		_, err := s.Scrape(context.Background(), Request{URL: "https://a.com"})
		require.Error(t, err)
	}
	assert.False(t, s.Supports("https://a.com"))

	_, err := s.Scrape(context.Background(), Request{URL: "https://a.com"})
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	client.AssertNumberOfCalls(t, "Read", 2)
}

func TestNeedsFallback(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("Real content about the school. ", 10)
	tests := []struct {
		name string
		resp *jina.ReadResponse
		want bool
	}{
		{"nil", nil, true},
		{"bad code", &jina.ReadResponse{Code: 500, Data: jina.ReadData{Content: long}}, true},
		{"too short", &jina.ReadResponse{Code: 200, Data: jina.ReadData{Content: "hi"}}, true},
		{"access denied", &jina.ReadResponse{Code: 200, Data: jina.ReadData{Content: "Access Denied. You don't have permission to access this server."}}, true},
		{"challenge words in long page", &jina.ReadResponse{Code: 200, Data: jina.ReadData{Content: long + "access denied" + strings.Repeat(" more", 200)}}, false},
		{"ok", &jina.ReadResponse{Code: 200, Data: jina.ReadData{Content: long}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, needsFallback(tt.resp))
		})
	}
}
