package folder

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func unlimited(string) (int64, error) { return 1 << 40, nil }

func sameDevice(string) (uint64, error) { return 1, nil }

func newTestService(t *testing.T, free func(string) (int64, error)) (*Service, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/downloads", 0o755))
	require.NoError(t, fs.MkdirAll("/tmp/ariadm", 0o755))
	return NewServiceWithFs(fs, "/downloads", "/tmp/ariadm", true, free, sameDevice), fs
}

func TestNewService(t *testing.T) {
	service := NewService("/test/base/path/", "/tmp/x/", true)

	require.NotNil(t, service)
	require.Equal(t, "/test/base/path", service.BasePath)
	require.Equal(t, "/tmp/x", service.TempPath)
	require.True(t, service.Subfolder)
}

func TestSubfolderFor(t *testing.T) {
	tests := []struct {
		fileName string
		want     string
	}{
		{"song.mp3", Audios},
		{"SONG.FLAC", Audios},
		{"movie.mkv", Videos},
		{"clip.mp4?token=abc", Videos},
		{"videoplayback", Videos},
		{"book.pdf", Documents},
		{"notes.mobi", Documents},
		{"archive.zip", Compressed},
		{"image.iso", Compressed},
		{"backup.tar.gz", Compressed},
		{"setup.exe", Others},
		{"README", Others},
	}

	for _, tt := range tests {
		t.Run(tt.fileName, func(t *testing.T) {
			require.Equal(t, tt.want, SubfolderFor(tt.fileName))
		})
	}
}

func TestService_Destination(t *testing.T) {
	service, _ := newTestService(t, unlimited)

	require.Equal(t, "/downloads/Videos", service.Destination("a.mkv", "/downloads"))
	require.Equal(t, "/downloads/Videos", service.Destination("a.mkv", "/downloads/"))
	require.Equal(t, "/downloads/Others", service.Destination("a.bin", ""))
	require.Equal(t, "/media/usb", service.Destination("a.mkv", "/media/usb"))

	service.Subfolder = false
	require.Equal(t, "/downloads", service.Destination("a.mkv", "/downloads"))
}

func TestCleanFileName(t *testing.T) {
	require.Equal(t, "1.mp3", CleanFileName("1.mp3?foo=bar"))
	require.Equal(t, "plain.txt", CleanFileName("plain.txt"))
	require.Equal(t, "?odd", CleanFileName("?odd"))
}

func TestService_PlaceCollisions(t *testing.T) {
	service, fs := newTestService(t, unlimited)

	require.NoError(t, afero.WriteFile(fs, "/downloads/Others/file.bin", []byte("first"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/downloads/Others/file_1.bin", []byte("second"), 0o644))

	for i, want := range []string{"/downloads/Others/file_2.bin", "/downloads/Others/file_3.bin"} {
		src := filepath.Join("/tmp/ariadm", "file.bin")
		require.NoError(t, afero.WriteFile(fs, src, []byte{byte(i)}, 0o644))

		got, err := service.Place(src, "/downloads/Others", "file.bin", 1)
		require.NoError(t, err)
		require.Equal(t, want, got)

		exists, err := afero.Exists(fs, src)
		require.NoError(t, err)
		require.False(t, exists)
	}

	data, err := afero.ReadFile(fs, "/downloads/Others/file.bin")
	require.NoError(t, err)
	require.Equal(t, "first", string(data))

	data, err = afero.ReadFile(fs, "/downloads/Others/file_1.bin")
	require.NoError(t, err)
	require.Equal(t, "second", string(data))
}

func TestService_PlaceStripsQuery(t *testing.T) {
	service, fs := newTestService(t, unlimited)
	require.NoError(t, afero.WriteFile(fs, "/tmp/ariadm/track.mp3?x=1", []byte("a"), 0o644))

	got, err := service.Place("/tmp/ariadm/track.mp3?x=1", "/downloads/Audios", "track.mp3?x=1", 1)
	require.NoError(t, err)
	require.Equal(t, "/downloads/Audios/track.mp3", got)
}

func TestService_PlaceInsufficientSpace(t *testing.T) {
	service, fs := newTestService(t, func(string) (int64, error) { return 10, nil })
	src := "/tmp/ariadm/big.iso"
	require.NoError(t, afero.WriteFile(fs, src, []byte("data"), 0o644))

	got, err := service.Place(src, "/downloads/Compressed", "big.iso", 1000)
	require.ErrorIs(t, err, ErrInsufficientSpace)
	require.Equal(t, src, got)

	exists, err := afero.Exists(fs, src)
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = afero.Exists(fs, "/downloads/Compressed/big.iso")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestService_PlaceUnknownFreeSpace(t *testing.T) {
	service, fs := newTestService(t, func(string) (int64, error) { return -1, errors.New("statfs failed") })
	src := "/tmp/ariadm/a.txt"
	require.NoError(t, afero.WriteFile(fs, src, []byte("data"), 0o644))

	got, err := service.Place(src, "/downloads/Documents", "a.txt", 4)
	require.NoError(t, err)
	require.Equal(t, "/downloads/Documents/a.txt", got)
}

func TestService_PlaceFallsBackToCopy(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/tmp/ariadm/a.txt", []byte("payload"), 0o644))

	fs := &noRenameFs{Fs: base}
	service := NewServiceWithFs(fs, "/downloads", "/tmp/ariadm", true, unlimited, sameDevice)

	got, err := service.Place("/tmp/ariadm/a.txt", "/downloads/Documents", "a.txt", 7)
	require.NoError(t, err)
	require.Equal(t, "/downloads/Documents/a.txt", got)

	data, err := afero.ReadFile(base, got)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))

	exists, err := afero.Exists(base, "/tmp/ariadm/a.txt")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestService_WorkingDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/downloads", 0o755))
	require.NoError(t, fs.MkdirAll("/media/usb", 0o755))

	devices := map[string]uint64{"/downloads": 1, "/tmp/ariadm": 1, "/media/usb": 2}
	deviceID := func(path string) (uint64, error) { return devices[path], nil }

	service := NewServiceWithFs(fs, "/downloads", "/tmp/ariadm", true, unlimited, deviceID)

	require.Equal(t, "/tmp/ariadm", service.WorkingDir("/downloads"))
	require.Equal(t, "/tmp/ariadm", service.WorkingDir(""))
	require.Equal(t, "/tmp/ariadm", service.WorkingDir("/missing"))
	require.Equal(t, "/media/usb/"+TempDirName, service.WorkingDir("/media/usb"))

	ok, err := afero.DirExists(fs, "/media/usb/"+TempDirName)
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, []string{"/media/usb/" + TempDirName}, service.WorkingDirs())
}

// noRenameFs makes every rename fail the way a cross-device rename does
type noRenameFs struct {
	afero.Fs
}

func (fs *noRenameFs) Rename(oldname, newname string) error {
	return errors.New("invalid cross-device link")
}
