package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSearchParamsDefaults(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	params := parseSearchParams(r)

	require.Equal(t, "", params.Username)
	require.Equal(t, defaultLimit, params.Limit)
	require.Equal(t, 0, params.Offset)
}

func TestParseSearchParamsOverride(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?username=alice&limit=5&offset=10", nil)
	params := parseSearchParams(r)

	require.Equal(t, "alice", params.Username)
	require.Equal(t, 5, params.Limit)
	require.Equal(t, 10, params.Offset)
}

func TestStatusClass(t *testing.T) {
	require.Equal(t, "2xx", statusClass(http.StatusOK))
	require.Equal(t, "4xx", statusClass(http.StatusNotFound))
	require.Equal(t, "5xx", statusClass(http.StatusInternalServerError))
}
