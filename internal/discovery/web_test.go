package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/pkg/jina"
)

type mockJinaClient struct {
	mock.Mock
}

func (m *mockJinaClient) Read(ctx context.Context, targetURL string, _ ...jina.ReadOption) (*jina.ReadResponse, error) {
	args := m.Called(ctx, targetURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jina.ReadResponse), args.Error(1)
}

func (m *mockJinaClient) Search(ctx context.Context, query string, _ ...jina.SearchOption) (*jina.SearchResponse, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jina.SearchResponse), args.Error(1)
}

func TestWebSearchSource_Discover(t *testing.T) {
	client := &mockJinaClient{}
	queries := Queries(testRequest)
	client.On("Search", mock.Anything, queries[0]).Return(&jina.SearchResponse{Data: []jina.SearchResult{
		{Title: "Global Pathways | Study Abroad Experts", URL: "https://pathways.in/?ref=s"},
		{Title: "Empty", URL: ""},
	}}, nil)
	client.On("Search", mock.Anything, queries[1]).Return(nil, errors.New("422"))
	client.On("Search", mock.Anything, mock.Anything).Return(&jina.SearchResponse{}, nil)

	got, err := NewWebSearchSource(client).Discover(context.Background(), testRequest)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Global Pathways", got[0].DisplayName)
	assert.Equal(t, "https://pathways.in", got[0].SeedURL)
}

func TestWebSearchSource_AllFail(t *testing.T) {
	client := &mockJinaClient{}
	client.On("Search", mock.Anything, mock.Anything).Return(nil, errors.New("down"))

	_, err := NewWebSearchSource(client).Discover(context.Background(), testRequest)
	assert.Error(t, err)
}

func TestTitleName(t *testing.T) {
	assert.Equal(t, "Apex Clinic", titleName("Apex Clinic - Best Orthopaedics in Chennai"))
	assert.Equal(t, "Sunrise Academy", titleName("Sunrise Academy"))
	assert.Equal(t, "Home", titleName("Home | Medi Link: Care"))
}
