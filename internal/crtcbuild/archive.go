package crtcbuild

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
)

// ArchiveFormat selects the container and compression of a package.
type ArchiveFormat string

const (
	FormatTarGz  ArchiveFormat = "tar.gz"
	FormatTarZst ArchiveFormat = "tar.zst"
	FormatZip    ArchiveFormat = "zip"
)

// AllTag names an archive holding every CPU of one OS.
const AllTag = "all"

// archiveEpoch is stamped on every entry so identical inputs give identical
// archives. 1980 is the earliest time zip can represent.
var archiveEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

func ParseArchiveFormat(s string) (ArchiveFormat, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "tar.gz", "tgz", "gz":
		return FormatTarGz, nil
	case "tar.zst", "zst", "zstd":
		return FormatTarZst, nil
	case "zip":
		return FormatZip, nil
	}
	return "", fmt.Errorf("unsupported archive format %q (want tar.gz, tar.zst or zip)", s)
}

// ArchiveName is the deterministic file name of a package, for example
// libcrtc-linux-x64.tar.gz or libcrtc-windows-all.zip.
func ArchiveName(project Project, targetOS TargetOS, tag string, format ArchiveFormat) string {
	return fmt.Sprintf("%s-%s-%s.%s", libName(project), targetOS, tag, format)
}

// archiveEntry is a file or directory inside the archive.
type archiveEntry struct {
	Name string // slash separated; directories end in "/"
	Path string // on disk; empty for directories
	Mode os.FileMode
}

// Packager writes staging directories into one archive.
type Packager struct {
	Format ArchiveFormat
}

// Package archives sets into dist. With a single CPU tag the staging layout
// sits at the archive root; with AllTag each set goes under <os>_<cpu>/.
// Staging directories are only read.
func (pk *Packager) Package(dist string, sets []ArtifactSet, project Project, targetOS TargetOS, tag string) (string, error) {
	fail := func(err error) error { return stageErr(StagePackage, ErrPackaging, nil, err) }

	if len(sets) == 0 {
		return "", fail(fmt.Errorf("nothing to package for %s/%s", project, targetOS))
	}
	if len(sets) > 1 && tag != AllTag {
		return "", fail(fmt.Errorf("%d staging directories need the %q tag, got %q", len(sets), AllTag, tag))
	}

	entries, err := archiveEntries(sets, tag == AllTag)
	if err != nil {
		return "", fail(err)
	}

	format := pk.Format
	if format == "" {
		format = FormatTarGz
	}
	if err := os.MkdirAll(dist, 0o755); err != nil {
		return "", fail(err)
	}
	out := filepath.Join(dist, ArchiveName(project, targetOS, tag, format))

	tmp, err := os.CreateTemp(dist, ".pkg-*")
	if err != nil {
		return "", fail(err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	switch format {
	case FormatZip:
		err = writeZip(tmp, entries)
	default:
		err = writeTar(tmp, entries, format)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fail(fmt.Errorf("failed to write %s: %w", out, err))
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return "", fail(err)
	}
	if err := os.Rename(tmpPath, out); err != nil {
		return "", fail(err)
	}

	step("Package created: %s", out)
	return out, nil
}

// archiveEntries walks each staging dir and returns a sorted entry list.
func archiveEntries(sets []ArtifactSet, prefixed bool) ([]archiveEntry, error) {
	seen := make(map[string]bool)
	var entries []archiveEntry

	for _, set := range sets {
		prefix := ""
		if prefixed {
			prefix = fmt.Sprintf("%s_%s/", set.Request.TargetOS, set.Request.TargetCPU)
			if seen[prefix] {
				return nil, fmt.Errorf("duplicate staging directory for %s", strings.TrimSuffix(prefix, "/"))
			}
			seen[prefix] = true
			entries = append(entries, archiveEntry{Name: prefix, Mode: 0o755})
		}

		err := filepath.WalkDir(set.Stage, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(set.Stage, path)
			if err != nil {
				return err
			}
			if rel == "." {
				return nil
			}
			name := prefix + filepath.ToSlash(rel)
			if d.IsDir() {
				entries = append(entries, archiveEntry{Name: name + "/", Mode: 0o755})
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			mode := os.FileMode(0o644)
			if info.Mode()&0o111 != 0 {
				mode = 0o755
			}
			entries = append(entries, archiveEntry{Name: name, Path: path, Mode: mode})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read staging dir %s: %w", set.Stage, err)
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func writeTar(w io.Writer, entries []archiveEntry, format ArchiveFormat) error {
	var cw io.WriteCloser
	switch format {
	case FormatTarZst:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
		cw = zw
	default:
		cw = pgzip.NewWriter(w)
	}

	tw := tar.NewWriter(cw)
	for _, e := range entries {
		hdr := &tar.Header{
			Name:    e.Name,
			Mode:    int64(e.Mode),
			ModTime: archiveEpoch,
			Uname:   "root",
			Gname:   "root",
			Format:  tar.FormatPAX,
		}
		if e.Path == "" {
			hdr.Typeflag = tar.TypeDir
		} else {
			fi, err := os.Stat(e.Path)
			if err != nil {
				return err
			}
			hdr.Typeflag = tar.TypeReg
			hdr.Size = fi.Size()
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if e.Path != "" {
			if err := copyInto(tw, e.Path); err != nil {
				return err
			}
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return cw.Close()
}

func writeZip(w io.Writer, entries []archiveEntry) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		fh := &zip.FileHeader{Name: e.Name, Modified: archiveEpoch}
		if e.Path == "" {
			fh.SetMode(os.ModeDir | e.Mode)
		} else {
			fh.Method = zip.Deflate
			fh.SetMode(e.Mode)
		}
		fw, err := zw.CreateHeader(fh)
		if err != nil {
			return err
		}
		if e.Path != "" {
			if err := copyInto(fw, e.Path); err != nil {
				return err
			}
		}
	}
	return zw.Close()
}

func copyInto(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// ListArchive returns the entry names of a package in archive order.
func ListArchive(path string) ([]string, error) {
	if strings.HasSuffix(path, ".zip") {
		r, err := zip.OpenReader(path)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		names := make([]string, 0, len(r.File))
		for _, f := range r.File {
			names = append(names, f.Name)
		}
		return names, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader
	switch {
	case strings.HasSuffix(path, ".tar.gz") || strings.HasSuffix(path, ".tgz"):
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader for %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	case strings.HasSuffix(path, ".tar.zst"):
		zst, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader for %s: %w", path, err)
		}
		defer zst.Close()
		r = zst
	default:
		return nil, fmt.Errorf("unsupported archive format: %s", path)
	}

	tr := tar.NewReader(r)
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading tar header in %s: %w", path, err)
		}
		names = append(names, hdr.Name)
	}
	return names, nil
}
