package crtcbuild

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ulikunitz/xz"
)

// BuildLog collects the output of every command run for one request. The
// plain text lives in a temp file until Close compresses it into
// dist/logs/<project>-<os>-<cpu>.log.xz.
type BuildLog struct {
	req  BuildRequest
	dest string
	tmp  *os.File
}

// LogPath is where the compressed log for req ends up.
func LogPath(logsDir string, req BuildRequest) string {
	return filepath.Join(logsDir, fmt.Sprintf("%s-%s-%s.log.xz", req.Project, req.TargetOS, req.TargetCPU))
}

// OpenBuildLog starts a log for req. buildID is recorded in the header.
func OpenBuildLog(logsDir string, req BuildRequest, buildID string) (*BuildLog, error) {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", logsDir, err)
	}
	tmp, err := os.CreateTemp(logsDir, ".build-*.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create build log: %w", err)
	}
	l := &BuildLog{req: req, dest: LogPath(logsDir, req), tmp: tmp}
	fmt.Fprintf(tmp, "# crtcbuild %s build %s\n", version, buildID)
	fmt.Fprintf(tmp, "# request: %s\n", req)
	fmt.Fprintf(tmp, "# started: %s\n\n", time.Now().Format(time.RFC3339))
	return l, nil
}

func (l *BuildLog) Write(p []byte) (int, error) {
	return l.tmp.Write(p)
}

// Path is the destination of the compressed log.
func (l *BuildLog) Path() string { return l.dest }

// Close records the outcome, compresses the log into place and removes the
// temporary text. It runs on success and failure alike.
func (l *BuildLog) Close(result error) error {
	if l.tmp == nil {
		return nil
	}
	tmpPath := l.tmp.Name()
	defer func() {
		l.tmp.Close()
		os.Remove(tmpPath)
		l.tmp = nil
	}()

	status := "ok"
	if result != nil {
		status = "failed: " + result.Error()
	}
	fmt.Fprintf(l.tmp, "\n# finished: %s\n# result: %s\n", time.Now().Format(time.RFC3339), status)

	if _, err := l.tmp.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := compressXZ(l.tmp, l.dest); err != nil {
		return fmt.Errorf("failed to write build log %s: %w", l.dest, err)
	}
	debugf("Build log written to %s\n", l.dest)
	return nil
}

// compressXZ writes src to destPath through a temp file in the same directory.
func compressXZ(src io.Reader, destPath string) error {
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".log-*.xz")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	xzWriter, err := xz.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return err
	}
	if _, err := io.Copy(xzWriter, src); err != nil {
		xzWriter.Close()
		tmp.Close()
		return err
	}
	if err := xzWriter.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, destPath)
}

// ReadBuildLog decompresses a log written by BuildLog.
func ReadBuildLog(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	xr, err := xz.NewReader(f)
	if err != nil {
		return "", fmt.Errorf("error creating xz reader: %w", err)
	}
	data, err := io.ReadAll(xr)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}
