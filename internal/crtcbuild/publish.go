package crtcbuild

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
)

// objectStore is the part of R2Client that publishing needs.
type objectStore interface {
	UploadLocalFile(ctx context.Context, key, filePath string) error
}

// PublishedFile is one uploaded object.
type PublishedFile struct {
	Key  string
	Path string
	Size int64
}

// publishKey places a file under <prefix>/<project>/<os>/ when the manifest
// is known, and directly under prefix otherwise.
func publishKey(prefix string, m *Manifest, name string) string {
	if m != nil && m.Project != "" && m.OS != "" {
		return path.Join(prefix, string(m.Project), string(m.OS), name)
	}
	return path.Join(prefix, name)
}

// Publish verifies archive against its .b3 sidecar and uploads the archive,
// the checksum and, when present, the manifest. The archive goes last so a
// reader that sees it can rely on the sidecars being there.
func Publish(ctx context.Context, store objectStore, prefix, archive string) ([]PublishedFile, error) {
	if err := VerifyChecksum(archive); err != nil {
		return nil, err
	}
	m, err := ReadManifest(archive)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	files := []string{archive + ".b3"}
	if m != nil {
		files = append(files, archive+".manifest.yaml")
	}
	files = append(files, archive)

	var out []PublishedFile
	for _, f := range files {
		fi, err := os.Stat(f)
		if err != nil {
			return out, err
		}
		key := publishKey(prefix, m, filepath.Base(f))
		colArrow.Print("-> ")
		colSuccess.Printf("Uploading %s (%s)\n", key, humanReadableSize(fi.Size()))
		if err := store.UploadLocalFile(ctx, key, f); err != nil {
			return out, fmt.Errorf("failed to upload %s: %w", key, err)
		}
		out = append(out, PublishedFile{Key: key, Path: f, Size: fi.Size()})
	}
	return out, nil
}

func humanReadableSize(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
