// Package folder decides where finished downloads go and moves them there
package folder

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
)

// ErrInsufficientSpace is returned when the destination cannot hold the file
var ErrInsufficientSpace = errors.New("insufficient disk space")

// Subfolder names used when files are sorted by type
const (
	Audios     = "Audios"
	Videos     = "Videos"
	Documents  = "Documents"
	Compressed = "Compressed"
	Others     = "Others"
)

// TempDirName is the working directory created on a destination device that differs from the temp device
const TempDirName = ".ariadm-tmp"

var (
	audioExtensions = toSet(`act aiff aac amr ape au awb dct dss dvf flac gsm iklax ivs m4a m4p mmf mp3 mpc msv
		ogg oga opus ra raw sln tta vox wav wma wv`)
	videoExtensions = toSet(`3g2 3gp asf avi drc flv m4v mkv mng mov qt mp4 mpg mp2 mpeg mpe mpv m2v mxf nsv
		ogv rmvb roq svi vob webm wmv yuv rm`)
	documentExtensions = toSet(`doc docx html htm fb2 odt sxw pdf ps rtf tex txt epub pub mobi azw azw3 azw4
		kf8 chm cbt cbr cbz cb7 cba ibooks djvu md`)
	compressedExtensions = toSet(`a ar cpio shar lbr iso mar tar bz2 f gz lz lzma lzo rz sfark sz xz z infl 7z
		s7z ace afa alz apk arc arj b1 ba bh cab cfs cpt dar dd dgc dmg ear gca ha hki ice jar kgb lzh lha lzx pac
		partimg paq6 paq7 paq8 pea pim pit qda rar rk sda sea sen sfx sit sitx sqx tgz tbz2 tlz uc uc0 uc2 ucn
		ur2 ue2 uca uha war wim xar xp3 yz1 zip zipx zoo zpaq zz ecc par par2`)
)

func toSet(list string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, ext := range strings.Fields(list) {
		set[ext] = struct{}{}
	}
	return set
}

// Service places finished downloads under the default download path
type Service struct {
	BasePath  string
	TempPath  string
	Subfolder bool

	fs        afero.Fs
	logger    *slog.Logger
	freeSpace func(path string) (int64, error)
	deviceID  func(path string) (uint64, error)

	mu       sync.Mutex
	workDirs map[string]struct{}
}

// NewService creates a placement service on the host filesystem
func NewService(basePath, tempPath string, subfolder bool) *Service {
	return NewServiceWithFs(afero.NewOsFs(), basePath, tempPath, subfolder, FreeSpace, DeviceID)
}

// NewServiceWithFs creates a placement service with explicit filesystem and disk probes
func NewServiceWithFs(
	fs afero.Fs,
	basePath, tempPath string,
	subfolder bool,
	freeSpace func(string) (int64, error),
	deviceID func(string) (uint64, error),
) *Service {
	return &Service{
		BasePath:  filepath.Clean(basePath),
		TempPath:  filepath.Clean(tempPath),
		Subfolder: subfolder,
		fs:        fs,
		logger:    slog.Default(),
		freeSpace: freeSpace,
		deviceID:  deviceID,
		workDirs:  map[string]struct{}{},
	}
}

// CleanFileName drops a URL query left in a file name, e.g. "song.mp3?x=1" becomes "song.mp3"
func CleanFileName(name string) string {
	if i := strings.Index(name, "?"); i > 0 {
		return name[:i]
	}
	return name
}

// SubfolderFor returns the type folder a file belongs in
func SubfolderFor(fileName string) string {
	name := CleanFileName(fileName)
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))

	if _, ok := audioExtensions[ext]; ok {
		return Audios
	}
	// aria2 names some streamed videos "videoplayback" without an extension
	if _, ok := videoExtensions[ext]; ok || name == "videoplayback" {
		return Videos
	}
	if _, ok := documentExtensions[ext]; ok {
		return Documents
	}
	if _, ok := compressedExtensions[ext]; ok {
		return Compressed
	}
	return Others
}

// Destination returns the directory a finished file is moved to.
// Type subfolders apply only when downloadPath is the default path and subfoldering is on.
func (s *Service) Destination(fileName, downloadPath string) string {
	if downloadPath == "" {
		downloadPath = s.BasePath
	}
	downloadPath = filepath.Clean(downloadPath)

	if s.Subfolder && downloadPath == s.BasePath {
		return filepath.Join(downloadPath, SubfolderFor(fileName))
	}
	return downloadPath
}

// WorkingDir returns the directory the engine should write into while downloading.
// A destination on another device than the temp path gets its own temp directory so the final move is a rename.
func (s *Service) WorkingDir(downloadPath string) string {
	if downloadPath == "" {
		return s.TempPath
	}

	if ok, _ := afero.DirExists(s.fs, downloadPath); !ok {
		s.logger.Error("Download path not found", "path", downloadPath)
		return s.TempPath
	}

	destDev, err := s.deviceID(downloadPath)
	if err != nil {
		return s.TempPath
	}
	if err := s.fs.MkdirAll(s.TempPath, 0o755); err != nil {
		s.logger.Warn("Failed to create temp directory", "path", s.TempPath, "error", err)
	}
	tempDev, err := s.deviceID(s.TempPath)
	if err != nil || tempDev == destDev {
		return s.TempPath
	}

	dir := filepath.Join(downloadPath, TempDirName)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		s.logger.Warn("Failed to create temp directory on destination device", "path", dir, "error", err)
		return s.TempPath
	}

	s.mu.Lock()
	s.workDirs[dir] = struct{}{}
	s.mu.Unlock()
	return dir
}

// WorkingDirs lists the destination device working directories handed out so far
func (s *Service) WorkingDirs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirs := make([]string, 0, len(s.workDirs))
	for dir := range s.workDirs {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

// UniquePath returns dir/name, or dir/name_<n>.ext with the first n that does not exist yet
func (s *Service) UniquePath(dir, name string) string {
	path := filepath.Join(dir, name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 1; s.exists(path); i++ {
		path = filepath.Join(dir, stem+"_"+strconv.Itoa(i)+ext)
	}
	return path
}

func (s *Service) exists(path string) bool {
	_, err := s.fs.Stat(path)
	return err == nil
}

// Place moves src into destDir and returns the final path.
// When the destination lacks room for size bytes the file stays at src and ErrInsufficientSpace is returned.
// A negative size skips the space check.
func (s *Service) Place(src, destDir, fileName string, size int64) (string, error) {
	name := CleanFileName(fileName)
	if name == "" {
		name = filepath.Base(src)
	}

	if err := s.fs.MkdirAll(destDir, 0o755); err != nil {
		return src, fmt.Errorf("failed to create directory %s: %w", destDir, err)
	}

	dest := s.UniquePath(destDir, name)

	if size >= 0 {
		free, err := s.freeSpace(destDir)
		if err != nil {
			s.logger.Warn("Failed to check free space", "path", destDir, "error", err)
		} else if free >= 0 && free < size {
			return src, fmt.Errorf("%w: %s needs %s, %s free", ErrInsufficientSpace,
				destDir, humanize.IBytes(uint64(size)), humanize.IBytes(uint64(free)))
		}
	}

	if err := s.move(src, dest); err != nil {
		return src, err
	}

	s.logger.Info("Moved finished download", "from", src, "to", dest)
	return dest, nil
}

// move renames src to dest, copying across devices when rename is not possible
func (s *Service) move(src, dest string) error {
	if err := s.fs.Rename(src, dest); err == nil {
		return nil
	}

	in, err := s.fs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := s.fs.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		s.fs.Remove(dest)
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		s.fs.Remove(dest)
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}

	in.Close()
	if err := s.fs.Remove(src); err != nil {
		s.logger.Warn("Failed to remove temp file", "path", src, "error", err)
	}
	return nil
}
