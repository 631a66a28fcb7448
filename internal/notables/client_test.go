package notables

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sittingbulll/tokenwatch/internal/circuitbreaker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, srvURL string) *Client {
	t.Helper()
	return NewClient(Config{
		APIURL:  srvURL,
		Cookies: map[string]string{"session": "abc123"},
		RPS:     1000,
		Burst:   1000,
	}, testLogger())
}

type pageInput struct {
	JSON struct {
		Limit        int    `json:"limit"`
		FollowerType string `json:"followerType"`
		Username     string `json:"username"`
		SortBy       string `json:"sortBy"`
		SortOrder    string `json:"sortOrder"`
		Cursor       int    `json:"cursor"`
	} `json:"json"`
}

func decodeInput(t *testing.T, r *http.Request) pageInput {
	t.Helper()
	var in pageInput
	require.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("input")), &in))
	return in
}

func followersPayload(overall int, followers ...[2]any) string {
	items := make([]map[string]any, 0, len(followers))
	for _, f := range followers {
		items = append(items, map[string]any{
			"twitterProfile": map[string]any{
				"username":       f[0],
				"displayName":    f[0],
				"followersCount": f[1],
			},
		})
	}
	payload := map[string]any{
		"result": map[string]any{
			"data": map[string]any{
				"json": map[string]any{
					"data": map[string]any{
						"items":        items,
						"overallCount": overall,
					},
				},
			},
		},
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

func TestClient_TopFollowers(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		in := decodeInput(t, r)
		assert.Equal(t, "fooCreator", in.JSON.Username)
		assert.Equal(t, 5, in.JSON.Limit)
		assert.Equal(t, 0, in.JSON.Cursor)
		assert.Equal(t, "followersCount", in.JSON.SortBy)
		assert.Equal(t, "desc", in.JSON.SortOrder)
		assert.Equal(t, "all", in.JSON.FollowerType)

		cookie, err := r.Cookie("session")
		require.NoError(t, err)
		assert.Equal(t, "abc123", cookie.Value)

		io.WriteString(w, followersPayload(12,
			[2]any{"whale1", 1500000},
			[2]any{"whale2", 659700},
		))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	res, err := c.TopFollowers(context.Background(), "fooCreator", 5)
	require.NoError(t, err)
	assert.Equal(t, 12, res.Total)
	require.Len(t, res.Top, 2)
	assert.Equal(t, "whale1", res.Top[0].Username)
	assert.Equal(t, int64(1500000), res.Top[0].FollowersCount)

	// Second lookup is memoized.
	res2, err := c.TopFollowers(context.Background(), "fooCreator", 5)
	require.NoError(t, err)
	assert.Equal(t, res, res2)
	assert.Equal(t, int64(1), requests.Load())
}

func TestClient_TopFollowersTruncatesToN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, followersPayload(9,
			[2]any{"a", 3}, [2]any{"b", 2}, [2]any{"c", 1},
		))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	res, err := c.TopFollowers(context.Background(), "x", 2)
	require.NoError(t, err)
	assert.Equal(t, 9, res.Total)
	require.Len(t, res.Top, 2)
}

func TestClient_AuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.TopFollowers(context.Background(), "x", 5)
	assert.ErrorIs(t, err, ErrAuth)
}

func TestClient_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.TopFollowers(context.Background(), "x", 5)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestClient_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	for i := 0; i < 5; i++ {
		_, err := c.TopFollowers(context.Background(), "x", 5)
		require.Error(t, err)
		require.NotErrorIs(t, err, circuitbreaker.ErrOpen)
	}

	_, err := c.TopFollowers(context.Background(), "x", 5)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
}

func TestClient_ExportAllWalksUntilShortPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		in := decodeInput(t, r)
		assert.Equal(t, exportPageSize, in.JSON.Limit)

		count := exportPageSize
		if in.JSON.Cursor >= exportPageSize {
			count = 20
		}
		followers := make([][2]any, count)
		for i := 0; i < count; i++ {
			followers[i] = [2]any{fmt.Sprintf("user%d", in.JSON.Cursor+i), 100}
		}
		io.WriteString(w, followersPayload(70, followers...))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	all, err := c.ExportAll(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, all, 70)
	assert.Equal(t, "user0", all[0].Username)
	assert.Equal(t, "user69", all[69].Username)
}

func TestLoadCookies(t *testing.T) {
	dir := t.TempDir()

	listPath := filepath.Join(dir, "list.json")
	require.NoError(t, os.WriteFile(listPath,
		[]byte(`[{"name":"session","value":"s1"},{"name":"csrf","value":"c1"},{"domain":"ignored"}]`), 0o600))
	cookies, err := LoadCookies(listPath)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"session": "s1", "csrf": "c1"}, cookies)

	mapPath := filepath.Join(dir, "map.json")
	require.NoError(t, os.WriteFile(mapPath, []byte(`{"session":"s2"}`), 0o600))
	cookies, err = LoadCookies(mapPath)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"session": "s2"}, cookies)

	_, err = LoadCookies(filepath.Join(dir, "absent.json"))
	assert.Error(t, err)
}
