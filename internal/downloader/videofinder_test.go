package downloader

import (
	"context"
	"testing"
	"time"

	"ariadm/internal/database"
	"ariadm/pkg/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSupervisor_AddVideoFinder(t *testing.T) {
	f := newFixture(t)

	submitted := make(chan string, 2)
	f.engine.EXPECT().AddURI(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ []string, opts map[string]any) (string, error) {
			gid, _ := opts["gid"].(string)
			submitted <- gid
			return gid, nil
		}).Times(2)

	pair, err := f.sup.AddVideoFinder(
		&models.LinkRequest{Link: "https://example.com/video.mp4"},
		&models.LinkRequest{Link: "https://example.com/audio.m4a"},
		"",
	)
	require.NoError(t, err)
	require.NotEqual(t, pair.Link.VideoGID, pair.Link.AudioGID)
	require.Equal(t, pair.Video.GID, pair.Link.VideoGID)
	require.Equal(t, pair.Audio.GID, pair.Link.AudioGID)
	require.Equal(t, models.SingleDownloads, pair.Audio.Category)

	got := map[string]bool{}
	for range 2 {
		select {
		case gid := <-submitted:
			got[gid] = true
		case <-time.After(time.Second):
			t.Fatal("pair was not submitted")
		}
	}
	require.True(t, got[pair.Link.VideoGID])
	require.True(t, got[pair.Link.AudioGID])

	link, err := f.sup.VideoFinder(pair.Link.AudioGID)
	require.NoError(t, err)
	require.Equal(t, pair.Link.VideoGID, link.VideoGID)

	gids, err := f.sup.VideoFinderGIDs()
	require.NoError(t, err)
	require.Equal(t, []string{pair.Link.VideoGID, pair.Link.AudioGID}, gids)
}

func TestSupervisor_AddVideoFinder_Invalid(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		video    *models.LinkRequest
		audio    *models.LinkRequest
		category string
		wantErr  error
	}{
		{"missing audio", &models.LinkRequest{Link: "https://x/v"}, nil, "", ErrInvalidRequest},
		{"missing video link", &models.LinkRequest{}, &models.LinkRequest{Link: "https://x/a"}, "", ErrInvalidRequest},
		{"bad audio limit", &models.LinkRequest{Link: "https://x/v"},
			&models.LinkRequest{Link: "https://x/a", LimitValue: models.Ptr("9X")}, "", ErrInvalidRequest},
		{"unknown category", &models.LinkRequest{Link: "https://x/v"}, &models.LinkRequest{Link: "https://x/a"},
			"Nope", database.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.sup.AddVideoFinder(tt.video, tt.audio, tt.category)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	// nothing was stored for the rejected pairs
	downloads, err := f.db.ListDownloads("")
	require.NoError(t, err)
	require.Empty(t, downloads)

	gids, err := f.sup.VideoFinderGIDs()
	require.NoError(t, err)
	require.Empty(t, gids)

	_, err = f.sup.VideoFinder("ffff000000000000")
	require.ErrorIs(t, err, database.ErrNotFound)
}
