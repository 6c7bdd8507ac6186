// Package playlist lists the videos of a YouTube playlist.
package playlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"playlist-cards-go/internal/types"
)

const pageSize = 50

// Lister reads playlist items through the YouTube Data API v3.
type Lister struct {
	service *youtube.Service
	log     *logrus.Entry
}

// NewLister builds a lister authenticated with an API key. Extra client
// options are appended after the key.
func NewLister(ctx context.Context, apiKey string, log *logrus.Entry, opts ...option.ClientOption) (*Lister, error) {
	if apiKey == "" {
		return nil, errors.New("youtube api key required")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &Lister{service: svc, log: log.WithField("component", "playlist")}, nil
}

// List returns every video in the playlist keyed by video id, following page
// tokens until the last page.
func (l *Lister) List(ctx context.Context, playlistID string) (map[string]types.WorkItem, error) {
	if playlistID == "" {
		return nil, errors.New("playlist id required")
	}

	items := make(map[string]types.WorkItem)
	pageToken := ""
	pages := 0
	for {
		call := l.service.PlaylistItems.List([]string{"snippet"}).
			PlaylistId(playlistID).
			MaxResults(pageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list playlist %s: %w", playlistID, err)
		}
		pages++

		for _, it := range resp.Items {
			if it.Snippet == nil || it.Snippet.ResourceId == nil {
				continue
			}
			id, title := it.Snippet.ResourceId.VideoId, it.Snippet.Title
			if id == "" || title == "" {
				continue
			}
			items[id] = types.WorkItem{ID: id, Title: title, SourceURL: types.WatchURL(id)}
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	l.log.WithFields(logrus.Fields{"playlist": playlistID, "videos": len(items), "pages": pages}).Info("fetched playlist")
	return items, nil
}
