package playlist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func quietLog() *logrus.Entry {
	log, _ := test.NewNullLogger()
	return logrus.NewEntry(log)
}

func item(id, title string) map[string]any {
	return map[string]any{"snippet": map[string]any{"title": title, "resourceId": map[string]any{"kind": "youtube#video", "videoId": id}}}
}

func TestListFollowsPages(t *testing.T) {
	var tokens []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/youtube/v3/playlistItems", r.URL.Path)
		assert.Equal(t, "PL123", r.URL.Query().Get("playlistId"))
		assert.Equal(t, "50", r.URL.Query().Get("maxResults"))

		token := r.URL.Query().Get("pageToken")
		tokens = append(tokens, token)
		body := map[string]any{}
		switch token {
		case "":
			body["items"] = []any{item("a", "Intro"), item("b", "Part 2"), item("", "no id")}
			body["nextPageToken"] = "page2"
		case "page2":
			body["items"] = []any{item("c", "Finale"), item("d", "")}
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	l, err := NewLister(context.Background(), "key", quietLog(),
		option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	items, err := l.List(context.Background(), "PL123")
	require.NoError(t, err)
	assert.Equal(t, []string{"", "page2"}, tokens)
	require.Len(t, items, 3)
	assert.Equal(t, "Part 2", items["b"].Title)
	assert.Equal(t, "https://www.youtube.com/watch?v=c", items["c"].SourceURL)
}

func TestListError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"playlist not found"}}`))
	}))
	defer srv.Close()

	l, err := NewLister(context.Background(), "key", quietLog(),
		option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = l.List(context.Background(), "PLmissing")
	assert.ErrorContains(t, err, "playlist not found")
}

func TestNewListerRequiresKey(t *testing.T) {
	_, err := NewLister(context.Background(), "", quietLog())
	assert.Error(t, err)
}
