//go:build cgo

package embeddings

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultONNXRuntimeVersion is the onnxruntime release fastembed-go is
// built against.
const DefaultONNXRuntimeVersion = "1.23.0"

const defaultONNXReleaseURL = "https://github.com/microsoft/onnxruntime/releases/download"

// ErrUnsupportedPlatform indicates there is no onnxruntime release for the
// current OS and architecture.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

var onnxPlatforms = map[string]string{
	"linux/amd64":  "linux-x64",
	"linux/arm64":  "linux-aarch64",
	"darwin/amd64": "osx-x86_64",
	"darwin/arm64": "osx-arm64",
}

// onnxPlatform returns the release archive suffix for goos/goarch.
func onnxPlatform(goos, goarch string) (string, error) {
	if p, ok := onnxPlatforms[goos+"/"+goarch]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
}

func onnxLibraryName(goos string) string {
	if goos == "darwin" {
		return "libonnxruntime.dylib"
	}
	return "libonnxruntime.so"
}

// ONNXInstaller downloads the onnxruntime shared library into Dir.
type ONNXInstaller struct {
	Version    string
	Dir        string
	ReleaseURL string
	Client     *http.Client
	Logger     *zap.Logger

	goos, goarch string
}

// NewONNXInstaller returns an installer for the default release, targeting
// ~/.config/portfolio-rag/lib.
func NewONNXInstaller(logger *zap.Logger) *ONNXInstaller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ONNXInstaller{
		Version:    DefaultONNXRuntimeVersion,
		Dir:        managedONNXDir(),
		ReleaseURL: defaultONNXReleaseURL,
		Client:     &http.Client{Timeout: 5 * time.Minute},
		Logger:     logger,
		goos:       runtime.GOOS,
		goarch:     runtime.GOARCH,
	}
}

func managedONNXDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "portfolio-rag", "lib")
}

// LibraryPath returns the installed library, or "" when it is missing.
func (i *ONNXInstaller) LibraryPath() string {
	path := filepath.Join(i.Dir, onnxLibraryName(i.goos))
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func (i *ONNXInstaller) archiveURL(platform string) string {
	return fmt.Sprintf("%s/v%s/onnxruntime-%s-%s.tgz", strings.TrimSuffix(i.ReleaseURL, "/"), i.Version, platform, i.Version)
}

// Install downloads and unpacks the release, replacing any previous
// install, and returns the library path.
func (i *ONNXInstaller) Install(ctx context.Context) (string, error) {
	platform, err := onnxPlatform(i.goos, i.goarch)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(i.Dir, 0o700); err != nil {
		return "", fmt.Errorf("creating %s: %w", i.Dir, err)
	}

	url := i.archiveURL(platform)
	i.Logger.Info("downloading ONNX runtime", zap.String("version", i.Version), zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	resp, err := i.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading ONNX runtime: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading ONNX runtime: status %d from %s", resp.StatusCode, url)
	}

	prefix := fmt.Sprintf("onnxruntime-%s-%s/lib/", platform, i.Version)
	if err := unpackONNXLibs(resp.Body, i.Dir, prefix, onnxLibraryName(i.goos)); err != nil {
		return "", fmt.Errorf("extracting archive: %w", err)
	}

	path := i.LibraryPath()
	if path == "" {
		return "", fmt.Errorf("%s missing after install", onnxLibraryName(i.goos))
	}
	i.Logger.Info("ONNX runtime installed", zap.String("path", path))
	return path, nil
}

// unpackONNXLibs copies the files under prefix into dir, flattened. The
// release ships libonnxruntime.so as a link to the versioned file; links
// must name a sibling in the same directory.
func unpackONNXLibs(r io.Reader, dir, prefix, libName string) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	found := false
	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		name := strings.TrimPrefix(header.Name, "./")
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		base := filepath.Base(name)
		dest := filepath.Join(dir, base)

		switch header.Typeflag {
		case tar.TypeSymlink:
			if header.Linkname != filepath.Base(header.Linkname) || header.Linkname == ".." {
				return fmt.Errorf("link %s points outside the library directory: %s", base, header.Linkname)
			}
			_ = os.Remove(dest)
			if err := os.Symlink(header.Linkname, dest); err != nil {
				return fmt.Errorf("linking %s: %w", base, err)
			}
		case tar.TypeReg:
			if err := writeLib(dest, tr); err != nil {
				return err
			}
		default:
			continue
		}
		if base == libName || strings.HasPrefix(base, libName+".") {
			found = true
		}
	}

	if !found {
		return fmt.Errorf("library %s not found in archive", libName)
	}
	return nil
}

func writeLib(dest string, r io.Reader) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(dest), err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(dest), err)
	}
	return f.Close()
}

// setONNXPathEnv points fastembed-go at the runtime library.
var setONNXPathEnv = func(path string) error {
	return os.Setenv("ONNX_PATH", path)
}

// GetONNXLibraryPath returns ONNX_PATH when set, else the managed install,
// else "".
func GetONNXLibraryPath() string {
	if envPath := os.Getenv("ONNX_PATH"); envPath != "" {
		return envPath
	}
	return NewONNXInstaller(nil).LibraryPath()
}

// ONNXRuntimeExists reports whether the runtime library can be found.
func ONNXRuntimeExists() bool {
	return GetONNXLibraryPath() != ""
}

// EnsureONNXRuntime returns the runtime library path, installing the
// default release when it is missing.
func EnsureONNXRuntime(ctx context.Context, logger *zap.Logger) (string, error) {
	if path := GetONNXLibraryPath(); path != "" {
		return path, nil
	}
	path, err := NewONNXInstaller(logger).Install(ctx)
	if err != nil {
		return "", fmt.Errorf("%w (set ONNX_PATH to use an existing install)", err)
	}
	return path, nil
}
