package notion

import (
	"context"
	"errors"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient implements Client returning canned paginated responses.
type mockClient struct {
	responses []*notionapi.DatabaseQueryResponse
	err       error
	calls     int
}

func (m *mockClient) QueryDatabase(_ context.Context, _ string, _ *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	resp := m.responses[m.calls]
	m.calls++
	return resp, nil
}

func TestQueryAll_SinglePage(t *testing.T) {
	mc := &mockClient{
		responses: []*notionapi.DatabaseQueryResponse{
			{Results: []notionapi.Page{{ID: "p1"}, {ID: "p2"}}, HasMore: false},
		},
	}

	pages, err := QueryAll(context.Background(), mc, "db-1", nil)

	require.NoError(t, err)
	assert.Len(t, pages, 2)
	assert.Equal(t, 1, mc.calls)
}

func TestQueryAll_Paginated(t *testing.T) {
	mc := &mockClient{
		responses: []*notionapi.DatabaseQueryResponse{
			{Results: []notionapi.Page{{ID: "p1"}}, HasMore: true, NextCursor: "cursor-1"},
			{Results: []notionapi.Page{{ID: "p2"}}, HasMore: false},
		},
	}

	pages, err := QueryAll(context.Background(), mc, "db-1", nil)

	require.NoError(t, err)
	assert.Len(t, pages, 2)
	assert.Equal(t, 2, mc.calls)
}

func TestQueryAll_Error(t *testing.T) {
	mc := &mockClient{err: errors.New("unauthorized")}

	pages, err := QueryAll(context.Background(), mc, "db-1", nil)

	assert.Error(t, err)
	assert.Nil(t, pages)
	assert.Contains(t, err.Error(), "unauthorized")
}
