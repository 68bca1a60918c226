package downloader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ariadm/internal/aria2"
	"ariadm/pkg/models"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestConvertStatus(t *testing.T) {
	tests := []struct {
		name string
		in   aria2.Status
		want models.StatusInfo
	}{
		{
			name: "active with progress",
			in: aria2.Status{
				GID: "g1", Status: "active", TotalLength: "1000", CompletedLength: "250",
				DownloadSpeed: "100", Connections: "4",
				Files: []aria2.File{{Path: "/tmp/ariadm/movie.mkv", URIs: []aria2.URI{{URI: "https://example.com/movie.mkv"}}}},
			},
			want: models.StatusInfo{
				GID:              "g1",
				FileName:         models.Ptr("movie.mkv"),
				Status:           models.Ptr(models.StatusDownloading),
				Size:             models.Ptr("1000 B"),
				DownloadedSize:   models.Ptr("250 B"),
				Percent:          models.Ptr("25%"),
				Connections:      models.Ptr("4"),
				Rate:             models.Ptr("100 B/s"),
				EstimateTimeLeft: models.Ptr("7s"),
				Link:             models.Ptr("https://example.com/movie.mkv"),
			},
		},
		{
			name: "stalled has no estimate",
			in:   aria2.Status{GID: "g2", Status: "waiting", TotalLength: "1000", CompletedLength: "0", DownloadSpeed: "0"},
			want: models.StatusInfo{
				GID:            "g2",
				Status:         models.Ptr(models.StatusWaiting),
				Size:           models.Ptr("1000 B"),
				DownloadedSize: models.Ptr("0 B"),
				Percent:        models.Ptr("0%"),
				Rate:           models.Ptr("0"),
			},
		},
		{
			name: "unknown length",
			in:   aria2.Status{GID: "g3", Status: "active", TotalLength: "0", CompletedLength: "0", DownloadSpeed: "50"},
			want: models.StatusInfo{
				GID:              "g3",
				Status:           models.Ptr(models.StatusDownloading),
				Rate:             models.Ptr("50 B/s"),
				EstimateTimeLeft: models.Ptr("0s"),
			},
		},
		{
			name: "removed maps to stopped",
			in:   aria2.Status{GID: "g4", Status: "removed"},
			want: models.StatusInfo{GID: "g4", Status: models.Ptr(models.StatusStopped), Rate: models.Ptr("0")},
		},
		{
			name: "complete has zero estimate",
			in:   aria2.Status{GID: "g5", Status: "complete", TotalLength: "2048", CompletedLength: "2048", DownloadSpeed: "0"},
			want: models.StatusInfo{
				GID:              "g5",
				Status:           models.Ptr(models.StatusComplete),
				Size:             models.Ptr("2.0 KiB"),
				DownloadedSize:   models.Ptr("2.0 KiB"),
				Percent:          models.Ptr("100%"),
				Rate:             models.Ptr("0"),
				EstimateTimeLeft: models.Ptr("0s"),
			},
		},
		{
			name: "escaped file name",
			in: aria2.Status{
				GID: "g6", Status: "paused",
				Files: []aria2.File{{Path: "/tmp/ariadm/my%20file.zip"}},
			},
			want: models.StatusInfo{
				GID:      "g6",
				FileName: models.Ptr("my file.zip"),
				Status:   models.Ptr(models.StatusPaused),
				Rate:     models.Ptr("0"),
			},
		},
		{
			name: "no status",
			in:   aria2.Status{GID: "g7"},
			want: models.StatusInfo{GID: "g7", Rate: models.Ptr("0")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, &tt.want, convertStatus(&tt.in))
		})
	}
}

func completeStatus(gid, path string) *aria2.Status {
	return &aria2.Status{
		GID:             gid,
		Status:          "complete",
		TotalLength:     "4",
		CompletedLength: "4",
		DownloadSpeed:   "0",
		Files:           []aria2.File{{Path: path}},
	}
}

func TestSupervisor_QueryStatus_CompleteMovesFile(t *testing.T) {
	f := newFixture(t)
	gid := "cccc000000000001"
	f.create(t, gid, models.StatusDownloading, models.SingleDownloads, nil)
	f.session.AddGID(gid, models.StatusDownloading)
	require.NoError(t, afero.WriteFile(f.fs, "/tmp/ariadm/movie.mkv", []byte("data"), 0o644))

	f.engine.EXPECT().TellStatus(gomock.Any(), gid).Return(completeStatus(gid, "/tmp/ariadm/movie.mkv"), nil)

	info, err := f.sup.QueryStatus(context.Background(), gid)
	require.NoError(t, err)
	require.Equal(t, models.StatusComplete, *info.Status)
	require.Equal(t, "0s", *info.EstimateTimeLeft)

	exists, err := afero.Exists(f.fs, "/downloads/Videos/movie.mkv")
	require.NoError(t, err)
	require.True(t, exists)

	request, err := f.db.SearchLinkRequest(gid)
	require.NoError(t, err)
	require.Equal(t, "/downloads/Videos/movie.mkv", models.Value(request.DownloadPath))

	download, err := f.db.SearchDownload(gid)
	require.NoError(t, err)
	require.Equal(t, models.StatusComplete, download.Status)
	require.Equal(t, "movie.mkv", models.Value(download.FileName))

	_, ok := f.session.Lookup(gid)
	require.False(t, ok)
}

func TestSupervisor_QueryStatus_CompleteRenamesOnCollision(t *testing.T) {
	f := newFixture(t)
	gid := "cccc000000000002"
	f.create(t, gid, models.StatusDownloading, models.SingleDownloads, nil)
	require.NoError(t, afero.WriteFile(f.fs, "/downloads/Videos/movie.mkv", []byte("old"), 0o644))
	require.NoError(t, afero.WriteFile(f.fs, "/tmp/ariadm/movie.mkv", []byte("data"), 0o644))

	f.engine.EXPECT().TellStatus(gomock.Any(), gid).Return(completeStatus(gid, "/tmp/ariadm/movie.mkv"), nil)

	info, err := f.sup.QueryStatus(context.Background(), gid)
	require.NoError(t, err)
	require.Equal(t, "movie_1.mkv", *info.FileName)

	request, err := f.db.SearchLinkRequest(gid)
	require.NoError(t, err)
	require.Equal(t, "/downloads/Videos/movie_1.mkv", models.Value(request.DownloadPath))

	old, err := afero.ReadFile(f.fs, "/downloads/Videos/movie.mkv")
	require.NoError(t, err)
	require.Equal(t, "old", string(old))
}

func TestSupervisor_QueryStatus_ConcurrentCompletionPlacesOnce(t *testing.T) {
	f := newFixture(t)
	gid := "cccc000000000005"
	f.create(t, gid, models.StatusDownloading, models.SingleDownloads, nil)
	f.session.AddGID(gid, models.StatusDownloading)
	require.NoError(t, afero.WriteFile(f.fs, "/tmp/ariadm/movie.mkv", []byte("data"), 0o644))

	entered := make(chan struct{})
	release := make(chan struct{})
	f.engine.EXPECT().TellStatus(gomock.Any(), gid).DoAndReturn(
		func(context.Context, string) (*aria2.Status, error) {
			close(entered)
			<-release
			return completeStatus(gid, "/tmp/ariadm/movie.mkv"), nil
		}).Times(1)

	var wg sync.WaitGroup
	infos := make([]*models.StatusInfo, 2)
	errs := make([]error, 2)
	query := func(i int) {
		defer wg.Done()
		infos[i], errs[i] = f.sup.QueryStatus(context.Background(), gid)
	}

	wg.Add(2)
	go query(0)
	<-entered
	go query(1)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range infos {
		require.NoError(t, errs[i])
		require.Equal(t, models.StatusComplete, *infos[i].Status)
	}

	exists, err := afero.Exists(f.fs, "/downloads/Videos/movie.mkv")
	require.NoError(t, err)
	require.True(t, exists)

	request, err := f.db.SearchLinkRequest(gid)
	require.NoError(t, err)
	require.Equal(t, "/downloads/Videos/movie.mkv", models.Value(request.DownloadPath))
}

func TestSupervisor_QueryStatus_MoveFailureKeepsPath(t *testing.T) {
	f := newFixture(t)
	gid := "cccc000000000006"
	f.create(t, gid, models.StatusDownloading, models.SingleDownloads, nil)

	// the engine reports a file that is not on disk
	f.engine.EXPECT().TellStatus(gomock.Any(), gid).Return(completeStatus(gid, "/tmp/ariadm/gone.mkv"), nil)

	info, err := f.sup.QueryStatus(context.Background(), gid)
	require.NoError(t, err)
	require.Equal(t, models.StatusComplete, *info.Status)

	request, err := f.db.SearchLinkRequest(gid)
	require.NoError(t, err)
	require.Nil(t, request.DownloadPath)
}

func TestSupervisor_QueryStatus_InsufficientSpace(t *testing.T) {
	f := newFixture(t)
	f.setFree(1)
	gid := "cccc000000000003"
	f.create(t, gid, models.StatusDownloading, models.SingleDownloads, nil)
	require.NoError(t, afero.WriteFile(f.fs, "/tmp/ariadm/movie.mkv", []byte("data"), 0o644))

	f.engine.EXPECT().TellStatus(gomock.Any(), gid).Return(completeStatus(gid, "/tmp/ariadm/movie.mkv"), nil)
	f.notifier.EXPECT().Notify("Insufficient disk space!", "Please change download folder")

	info, err := f.sup.QueryStatus(context.Background(), gid)
	require.NoError(t, err)
	require.Equal(t, models.StatusComplete, *info.Status)

	exists, err := afero.Exists(f.fs, "/tmp/ariadm/movie.mkv")
	require.NoError(t, err)
	require.True(t, exists, "file stays in the temp directory")

	request, err := f.db.SearchLinkRequest(gid)
	require.NoError(t, err)
	require.Nil(t, request.DownloadPath)
}

func TestSupervisor_QueryStatus_VideoFinderStaysInPlace(t *testing.T) {
	f := newFixture(t)
	videoGID, audioGID := "cccc00000000000a", "cccc00000000000b"
	f.create(t, videoGID, models.StatusDownloading, models.SingleDownloads, nil)
	f.create(t, audioGID, models.StatusDownloading, models.SingleDownloads, nil)
	require.NoError(t, f.db.InsertVideoFinder(&models.VideoFinderLink{VideoGID: videoGID, AudioGID: audioGID}))
	require.NoError(t, afero.WriteFile(f.fs, "/tmp/ariadm/audio.m4a", []byte("data"), 0o644))

	f.engine.EXPECT().TellStatus(gomock.Any(), audioGID).Return(completeStatus(audioGID, "/tmp/ariadm/audio.m4a"), nil)

	_, err := f.sup.QueryStatus(context.Background(), audioGID)
	require.NoError(t, err)

	exists, err := afero.Exists(f.fs, "/tmp/ariadm/audio.m4a")
	require.NoError(t, err)
	require.True(t, exists)

	pair, err := f.db.SearchVideoFinder(audioGID)
	require.NoError(t, err)
	require.True(t, pair.AudioCompleted)
	require.False(t, pair.VideoCompleted)

	request, err := f.db.SearchLinkRequest(audioGID)
	require.NoError(t, err)
	require.Equal(t, "/tmp/ariadm/audio.m4a", models.Value(request.DownloadPath))
}

func TestSupervisor_QueryStatus_EngineError(t *testing.T) {
	f := newFixture(t)
	gid := "cccc000000000004"
	f.create(t, gid, models.StatusDownloading, models.SingleDownloads, nil)
	f.session.AddGID(gid, models.StatusDownloading)

	f.engine.EXPECT().TellStatus(gomock.Any(), gid).Return(&aria2.Status{
		GID: gid, Status: "error", ErrorCode: "3", ErrorMessage: "Resource not found",
	}, nil)
	f.engine.EXPECT().RemoveDownloadResult(gomock.Any(), gid).Return(nil)

	info, err := f.sup.QueryStatus(context.Background(), gid)
	require.NoError(t, err)
	require.Equal(t, "Resource not found", models.Value(info.Error))
	require.Equal(t, models.StatusError, f.status(t, gid))

	_, ok := f.session.Lookup(gid)
	require.False(t, ok)
}

func TestSupervisor_QueryStatus_AnsweredFromCatalog(t *testing.T) {
	statuses := []models.DownloadStatus{
		models.StatusScheduled,
		models.StatusComplete,
		models.StatusStopped,
		models.StatusError,
	}

	for _, status := range statuses {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			gid := "cccc000000000005"
			f.create(t, gid, status, models.SingleDownloads, nil)

			info, err := f.sup.QueryStatus(context.Background(), gid)
			require.NoError(t, err)
			require.Equal(t, status, *info.Status)
			require.Equal(t, "https://example.com/"+gid, models.Value(info.Link))
		})
	}
}

func TestSupervisor_QueryStatus_Unavailable(t *testing.T) {
	f := newFixture(t)
	gid := "cccc000000000006"
	f.create(t, gid, models.StatusDownloading, models.SingleDownloads, nil)

	f.engine.EXPECT().TellStatus(gomock.Any(), gid).Return(nil, aria2.ErrEngineUnavailable)

	_, err := f.sup.QueryStatus(context.Background(), gid)
	require.ErrorIs(t, err, aria2.ErrEngineUnavailable)
	require.Equal(t, models.StatusDownloading, f.status(t, gid))
}

func TestSupervisor_QueryAllActive(t *testing.T) {
	f := newFixture(t)
	f.create(t, "cccc000000000007", models.StatusWaiting, models.SingleDownloads, nil)
	f.create(t, "cccc000000000008", models.StatusWaiting, models.SingleDownloads, nil)
	f.session.AddGID("cccc000000000007", models.StatusWaiting)
	f.session.AddGID("cccc000000000008", models.StatusWaiting)

	f.engine.EXPECT().TellActive(gomock.Any()).Return([]aria2.Status{
		{GID: "cccc000000000007", Status: "active", TotalLength: "100", CompletedLength: "50", DownloadSpeed: "10"},
		{GID: "cccc000000000008", Status: "active", TotalLength: "200", CompletedLength: "20", DownloadSpeed: "0"},
	}, nil)

	infos, err := f.sup.QueryAllActive(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)
	require.Equal(t, "50%", *infos[0].Percent)
	require.Equal(t, "10%", *infos[1].Percent)

	for _, gid := range []string{"cccc000000000007", "cccc000000000008"} {
		require.Equal(t, models.StatusDownloading, f.status(t, gid))
		entry, ok := f.session.Lookup(gid)
		require.True(t, ok)
		require.Equal(t, models.StatusDownloading, entry.Status)
	}

	f.engine.EXPECT().TellActive(gomock.Any()).Return(nil, errors.New("connection refused"))
	_, err = f.sup.QueryAllActive(context.Background())
	require.Error(t, err)
}

func TestSupervisor_Refresh(t *testing.T) {
	f := newFixture(t)
	active, scheduled, gone := "cccc000000000009", "cccc00000000000c", "cccc00000000000d"
	f.create(t, active, models.StatusWaiting, models.SingleDownloads, nil)
	f.create(t, scheduled, models.StatusScheduled, models.SingleDownloads, nil)
	f.session.AddGID(active, models.StatusWaiting)
	f.session.AddGID(scheduled, models.StatusScheduled)
	f.session.AddGID(gone, models.StatusDownloading)

	f.engine.EXPECT().ActiveGIDs(gomock.Any()).Return([]string{active}, nil)
	// only the active download reaches the engine
	f.engine.EXPECT().TellStatus(gomock.Any(), active).Return(&aria2.Status{
		GID: active, Status: "active", TotalLength: "100", CompletedLength: "10", DownloadSpeed: "5",
	}, nil)

	f.sup.Refresh(context.Background())

	require.Equal(t, models.StatusDownloading, f.status(t, active))
	require.Equal(t, models.StatusScheduled, f.status(t, scheduled))

	_, ok := f.session.Lookup(scheduled)
	require.True(t, ok)
	_, ok = f.session.Lookup(gone)
	require.False(t, ok)
}

func TestSupervisor_Refresh_AdoptsEngineDownloads(t *testing.T) {
	f := newFixture(t)
	orphan, done, foreign := "cccc0000000000e1", "cccc0000000000e2", "cccc0000000000e3"
	// a restart marked the download stopped while the engine kept it running
	f.create(t, orphan, models.StatusStopped, models.SingleDownloads, nil)
	f.create(t, done, models.StatusComplete, models.SingleDownloads, nil)

	f.engine.EXPECT().ActiveGIDs(gomock.Any()).Return([]string{orphan, done, foreign}, nil)
	f.engine.EXPECT().TellStatus(gomock.Any(), orphan).Return(&aria2.Status{
		GID: orphan, Status: "active", TotalLength: "100", CompletedLength: "50", DownloadSpeed: "10",
	}, nil)

	f.sup.Refresh(context.Background())

	require.Equal(t, models.StatusDownloading, f.status(t, orphan))
	require.Equal(t, models.StatusComplete, f.status(t, done))

	entry, ok := f.session.Lookup(orphan)
	require.True(t, ok)
	require.Equal(t, models.StatusDownloading, entry.Status)

	_, ok = f.session.Lookup(done)
	require.False(t, ok)
	_, ok = f.session.Lookup(foreign)
	require.False(t, ok)
}

func TestSupervisor_Refresh_EngineListFails(t *testing.T) {
	f := newFixture(t)
	gid := "cccc0000000000e4"
	f.create(t, gid, models.StatusWaiting, models.SingleDownloads, nil)
	f.session.AddGID(gid, models.StatusWaiting)

	f.engine.EXPECT().ActiveGIDs(gomock.Any()).Return(nil, aria2.ErrEngineUnavailable)
	f.engine.EXPECT().TellStatus(gomock.Any(), gid).Return(nil, aria2.ErrEngineUnavailable)

	f.sup.Refresh(context.Background())

	_, ok := f.session.Lookup(gid)
	require.True(t, ok, "an unreachable engine keeps the session entry")
}
