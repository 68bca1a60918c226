package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ariadm/internal/aria2"
	"ariadm/internal/database"
	"ariadm/internal/downloader"
	"ariadm/internal/downloader/mocks"
	"ariadm/internal/folder"
	"ariadm/internal/session"
	"ariadm/pkg/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type testEnv struct {
	db      *database.DB
	plugins *database.PluginsDB
	engine  *mocks.MockEngine
	mux     *http.ServeMux
}

func setupHandlers(t *testing.T) *testEnv {
	t.Helper()

	ctrl := gomock.NewController(t)

	db, err := database.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	plugins, err := database.NewPlugins(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { plugins.Close() })

	engine := mocks.NewMockEngine(ctrl)
	supervisor := downloader.NewSupervisor(db, engine, mocks.NewMockEngineProcess(ctrl), mocks.NewMockNotifier(ctrl),
		folder.NewService(t.TempDir(), t.TempDir(), true), session.New(), downloader.Options{
			GatePollInterval:  time.Millisecond,
			StopRetryInterval: time.Millisecond,
		})
	t.Cleanup(supervisor.Close)

	mux := http.NewServeMux()
	NewHandlers(db, plugins, supervisor).Register(mux)

	return &testEnv{db: db, plugins: plugins, engine: engine, mux: mux}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func (e *testEnv) seed(t *testing.T, gid string, status models.DownloadStatus, category string) {
	t.Helper()
	link := "https://example.com/" + gid
	require.NoError(t, e.db.CreateDownload(
		&models.Download{GID: gid, Status: status, Link: models.Ptr(link), Category: category},
		&models.LinkRequest{GID: gid, Link: link},
	))
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("download %q: %w", "x", database.ErrNotFound), http.StatusNotFound},
		{"invalid request", fmt.Errorf("%w: bad", downloader.ErrInvalidRequest), http.StatusBadRequest},
		{"permanent category", database.ErrPermanentCategory, http.StatusBadRequest},
		{"engine down", fmt.Errorf("failed to pause: %w", aria2.ErrEngineUnavailable), http.StatusBadGateway},
		{"anything else", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestHandlers_EngineVersion(t *testing.T) {
	env := setupHandlers(t)

	env.engine.EXPECT().GetVersion(gomock.Any()).Return("1.37.0", nil)
	w := env.do(t, "GET", "/api/engine/version", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.Equal(t, "1.37.0", decodeBody[map[string]string](t, w)["version"])

	env.engine.EXPECT().GetVersion(gomock.Any()).Return("", aria2.ErrEngineUnavailable)
	w = env.do(t, "GET", "/api/engine/version", "")
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Equal(t, "did not respond", decodeBody[map[string]string](t, w)["error"])
}

func TestHandlers_AddDownload(t *testing.T) {
	env := setupHandlers(t)

	submitted := make(chan []string, 1)
	env.engine.EXPECT().
		AddURI(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, uris []string, opts map[string]any) (string, error) {
			submitted <- uris
			return opts["gid"].(string), nil
		})

	w := env.do(t, "POST", "/api/downloads", `{"link": "https://example.com/file.iso", "out": "file.iso"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	download := decodeBody[models.Download](t, w)
	require.Len(t, download.GID, 16)
	require.Equal(t, models.SingleDownloads, download.Category)

	select {
	case uris := <-submitted:
		require.Equal(t, []string{"https://example.com/file.iso"}, uris)
	case <-time.After(time.Second):
		t.Fatal("download was not submitted")
	}

	stored, err := env.db.SearchDownload(download.GID)
	require.NoError(t, err)
	require.Equal(t, "file.iso", models.Value(stored.FileName))
}

func TestHandlers_AddDownload_Invalid(t *testing.T) {
	env := setupHandlers(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"link":`, http.StatusBadRequest},
		{"unknown field", `{"link": "https://example.com/a", "speed": 1}`, http.StatusBadRequest},
		{"missing link", `{"out": "a.zip"}`, http.StatusBadRequest},
		{"too many connections", `{"link": "https://example.com/a", "connections": 64}`, http.StatusBadRequest},
		{"all downloads", `{"link": "https://example.com/a", "category": "All Downloads"}`, http.StatusBadRequest},
		{"unknown category", `{"link": "https://example.com/a", "category": "Nope"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "POST", "/api/downloads", tt.body)
			require.Equal(t, tt.want, w.Code)
			require.NotEmpty(t, decodeBody[map[string]string](t, w)["error"])
		})
	}
}

func TestHandlers_ListDownloads(t *testing.T) {
	env := setupHandlers(t)
	env.seed(t, "aaaa000000000001", models.StatusComplete, models.SingleDownloads)
	env.seed(t, "aaaa000000000002", models.StatusStopped, models.SingleDownloads)
	env.seed(t, "aaaa000000000003", models.StatusComplete, models.ScheduledDownloads)

	tests := []struct {
		target string
		want   []string
	}{
		{"/api/downloads", []string{"aaaa000000000001", "aaaa000000000002", "aaaa000000000003"}},
		{"/api/downloads?status=complete", []string{"aaaa000000000001", "aaaa000000000003"}},
		{"/api/downloads?status=complete,stopped&category=Single%20Downloads", []string{"aaaa000000000001", "aaaa000000000002"}},
		{"/api/downloads?status=error", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w := env.do(t, "GET", tt.target, "")
			require.Equal(t, http.StatusOK, w.Code)

			gids := []string{}
			for _, d := range decodeBody[[]models.Download](t, w) {
				gids = append(gids, d.GID)
			}
			require.Equal(t, tt.want, gids)
		})
	}
}

func TestHandlers_DownloadStatus(t *testing.T) {
	env := setupHandlers(t)
	env.seed(t, "aaaa000000000004", models.StatusDownloading, models.SingleDownloads)

	env.engine.EXPECT().TellStatus(gomock.Any(), "aaaa000000000004").Return(&aria2.Status{
		GID: "aaaa000000000004", Status: "active", TotalLength: "200", CompletedLength: "50", DownloadSpeed: "25",
	}, nil)

	w := env.do(t, "GET", "/api/downloads/aaaa000000000004", "")
	require.Equal(t, http.StatusOK, w.Code)
	info := decodeBody[models.StatusInfo](t, w)
	require.Equal(t, "25%", models.Value(info.Percent))
	require.Equal(t, "6s", models.Value(info.EstimateTimeLeft))

	w = env.do(t, "GET", "/api/downloads/ffff000000000000", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	env.engine.EXPECT().TellStatus(gomock.Any(), "aaaa000000000004").Return(nil, aria2.ErrEngineUnavailable)
	w = env.do(t, "GET", "/api/downloads/aaaa000000000004", "")
	require.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHandlers_ActiveDownloads(t *testing.T) {
	env := setupHandlers(t)

	env.engine.EXPECT().TellActive(gomock.Any()).Return([]aria2.Status{{GID: "aaaa000000000005", Status: "active"}}, nil)

	w := env.do(t, "GET", "/api/downloads/active", "")
	require.Equal(t, http.StatusOK, w.Code)
	infos := decodeBody[[]models.StatusInfo](t, w)
	require.Len(t, infos, 1)
	require.Equal(t, "aaaa000000000005", infos[0].GID)
}

func TestHandlers_DownloadActions(t *testing.T) {
	env := setupHandlers(t)
	gid := "aaaa000000000006"
	env.seed(t, gid, models.StatusDownloading, models.SingleDownloads)

	env.engine.EXPECT().Pause(gomock.Any(), gid).Return(nil)
	require.Equal(t, http.StatusNoContent, env.do(t, "POST", "/api/downloads/"+gid+"/pause", "").Code)

	env.engine.EXPECT().Unpause(gomock.Any(), gid).Return(aria2.ErrEngineUnavailable)
	require.Equal(t, http.StatusBadGateway, env.do(t, "POST", "/api/downloads/"+gid+"/resume", "").Code)

	env.engine.EXPECT().ChangeOption(gomock.Any(), gid, map[string]any{"max-download-limit": "512K"}).Return(nil)
	require.Equal(t, http.StatusNoContent, env.do(t, "POST", "/api/downloads/"+gid+"/limit", `{"limit": "512K"}`).Code)
	require.Equal(t, http.StatusBadRequest, env.do(t, "POST", "/api/downloads/"+gid+"/limit", `{"limit": "fast"}`).Code)

	env.engine.EXPECT().Remove(gomock.Any(), gid).Return(nil)
	env.engine.EXPECT().RemoveDownloadResult(gomock.Any(), gid).Return(nil)
	w := env.do(t, "POST", "/api/downloads/"+gid+"/cancel", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, gid, decodeBody[map[string]string](t, w)["result"])

	stored, err := env.db.SearchDownload(gid)
	require.NoError(t, err)
	require.Equal(t, models.StatusStopped, stored.Status)

	require.Equal(t, http.StatusNoContent, env.do(t, "DELETE", "/api/downloads/"+gid, "").Code)
	_, err = env.db.SearchDownload(gid)
	require.ErrorIs(t, err, database.ErrNotFound)

	require.Equal(t, http.StatusNotFound, env.do(t, "DELETE", "/api/downloads/"+gid, "").Code)
}

func TestHandlers_StartDownload(t *testing.T) {
	env := setupHandlers(t)
	gid := "aaaa000000000007"
	env.seed(t, gid, models.StatusStopped, models.SingleDownloads)

	submitted := make(chan struct{})
	env.engine.EXPECT().AddURI(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, []string, map[string]any) (string, error) {
			close(submitted)
			return gid, nil
		})

	w := env.do(t, "POST", "/api/downloads/"+gid+"/start", "")
	require.Equal(t, http.StatusAccepted, w.Code)

	select {
	case <-submitted:
	case <-time.After(time.Second):
		t.Fatal("download was not submitted")
	}

	env.seed(t, "aaaa000000000008", models.StatusComplete, models.SingleDownloads)
	require.Equal(t, http.StatusBadRequest, env.do(t, "POST", "/api/downloads/aaaa000000000008/start", "").Code)
}

func TestHandlers_Categories(t *testing.T) {
	env := setupHandlers(t)

	w := env.do(t, "POST", "/api/categories", `{"category": "Night", "start_time_enabled": true, "start_time": "1:30"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeBody[models.Category](t, w)
	require.Equal(t, "Night", created.Name)
	require.Equal(t, "0K", created.LimitValue)
	require.Empty(t, created.GIDList)

	require.Equal(t, http.StatusBadRequest, env.do(t, "POST", "/api/categories", `{"category": "Night"}`).Code)
	require.Equal(t, http.StatusBadRequest, env.do(t, "POST", "/api/categories", `{"category": ""}`).Code)

	w = env.do(t, "GET", "/api/categories", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decodeBody[[]models.Category](t, w), 4)

	w = env.do(t, "PATCH", "/api/categories/Night", `{"limit_enabled": true, "limit_value": "2M"}`)
	require.Equal(t, http.StatusOK, w.Code)
	updated := decodeBody[models.Category](t, w)
	require.True(t, updated.LimitEnabled)
	require.Equal(t, "2M", updated.LimitValue)
	require.Equal(t, "1:30", updated.StartTime)

	require.Equal(t, http.StatusBadRequest, env.do(t, "PATCH", "/api/categories/Night", `{"gid_list": ["x"]}`).Code)
	require.Equal(t, http.StatusNotFound, env.do(t, "PATCH", "/api/categories/Nope", `{"reverse": true}`).Code)

	w = env.do(t, "GET", "/api/categories/Night", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Night", decodeBody[models.Category](t, w).Name)

	require.Equal(t, http.StatusNoContent, env.do(t, "POST", "/api/categories/Night/stop", "").Code)
	require.Equal(t, http.StatusNoContent, env.do(t, "DELETE", "/api/categories/Night", "").Code)
	require.Equal(t, http.StatusNotFound, env.do(t, "GET", "/api/categories/Night", "").Code)

	require.Equal(t, http.StatusBadRequest, env.do(t, "DELETE", "/api/categories/Single%20Downloads", "").Code)
}

func TestHandlers_PluginLinks(t *testing.T) {
	env := setupHandlers(t)

	w := env.do(t, "POST", "/api/plugin/links", `[{"link": "https://example.com/a"}, {"link": "https://example.com/b", "referer": "https://example.com"}]`)
	require.Equal(t, http.StatusCreated, w.Code)
	queued := decodeBody[[]models.PluginLink](t, w)
	require.Len(t, queued, 2)
	require.Equal(t, models.PluginLinkNew, queued[0].Status)

	w = env.do(t, "GET", "/api/plugin/links", "")
	require.Equal(t, http.StatusOK, w.Code)
	links := decodeBody[[]models.PluginLink](t, w)
	require.Len(t, links, 2)
	require.Equal(t, "https://example.com", models.Value(links[1].Referer))

	w = env.do(t, "GET", "/api/plugin/links", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, decodeBody[[]models.PluginLink](t, w))

	require.Equal(t, http.StatusBadRequest, env.do(t, "POST", "/api/plugin/links", `{"link": "x"}`).Code)
}

func TestHandlers_Reset(t *testing.T) {
	env := setupHandlers(t)
	env.seed(t, "aaaa000000000009", models.StatusComplete, models.SingleDownloads)

	require.Equal(t, http.StatusNoContent, env.do(t, "POST", "/api/reset", "").Code)

	_, err := env.db.SearchDownload("aaaa000000000009")
	require.ErrorIs(t, err, database.ErrNotFound)

	names, err := env.db.CategoriesList()
	require.NoError(t, err)
	require.Equal(t, models.PermanentCategories, names)
}

func TestHandlers_PauseResumeAll(t *testing.T) {
	env := setupHandlers(t)
	env.seed(t, "aaaa000000000101", models.StatusDownloading, models.SingleDownloads)
	env.seed(t, "aaaa000000000102", models.StatusPaused, models.SingleDownloads)

	env.engine.EXPECT().Pause(gomock.Any(), "aaaa000000000101").Return(nil)
	w := env.do(t, "POST", "/api/downloads/pause-all", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"aaaa000000000101"}, decodeBody[map[string][]string](t, w)["gids"])

	env.engine.EXPECT().Unpause(gomock.Any(), "aaaa000000000102").Return(aria2.ErrEngineUnavailable)
	w = env.do(t, "POST", "/api/downloads/resume-all", "")
	require.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHandlers_ListLinkRequests(t *testing.T) {
	env := setupHandlers(t)
	require.NoError(t, env.db.InsertCategory(models.NewCategory("Night")))
	env.seed(t, "aaaa000000000201", models.StatusStopped, models.SingleDownloads)
	require.NoError(t, env.db.CreateDownload(
		&models.Download{GID: "aaaa000000000202", Status: models.StatusStopped, Category: "Night"},
		&models.LinkRequest{
			GID:            "aaaa000000000202",
			Link:           "https://example.com/private.iso",
			DownloadUser:   models.Ptr("me"),
			DownloadPasswd: models.Ptr("secret"),
			ProxyPasswd:    models.Ptr("hidden"),
		},
	))

	w := env.do(t, "GET", "/api/requests", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decodeBody[[]*models.LinkRequest](t, w), 2)

	w = env.do(t, "GET", "/api/requests?category=Night", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotContains(t, w.Body.String(), "secret")
	require.NotContains(t, w.Body.String(), "hidden")

	requests := decodeBody[[]*models.LinkRequest](t, w)
	require.Len(t, requests, 1)
	require.Equal(t, "https://example.com/private.iso", requests[0].Link)
	require.Equal(t, "me", models.Value(requests[0].DownloadUser))

	w = env.do(t, "GET", "/api/requests?category=Empty", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "[]\n", w.Body.String())
}

func TestHandlers_VideoFinder(t *testing.T) {
	env := setupHandlers(t)

	submitted := make(chan string, 2)
	env.engine.EXPECT().
		AddURI(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ []string, opts map[string]any) (string, error) {
			gid := opts["gid"].(string)
			submitted <- gid
			return gid, nil
		}).Times(2)

	w := env.do(t, "POST", "/api/videofinder",
		`{"video": {"link": "https://example.com/v.mp4"}, "audio": {"link": "https://example.com/a.m4a"}}`)
	require.Equal(t, http.StatusCreated, w.Code)
	pair := decodeBody[downloader.VideoFinderPair](t, w)
	require.Equal(t, pair.Video.GID, pair.Link.VideoGID)

	for range 2 {
		select {
		case <-submitted:
		case <-time.After(time.Second):
			t.Fatal("pair was not submitted")
		}
	}

	w = env.do(t, "GET", "/api/videofinder/"+pair.Link.AudioGID, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, pair.Link.VideoGID, decodeBody[models.VideoFinderLink](t, w).VideoGID)

	w = env.do(t, "GET", "/api/videofinder", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{pair.Link.VideoGID, pair.Link.AudioGID}, decodeBody[map[string][]string](t, w)["gids"])

	w = env.do(t, "GET", "/api/videofinder/ffff000000000000", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, "POST", "/api/videofinder", `{"video": {"link": "https://example.com/v.mp4"}}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
