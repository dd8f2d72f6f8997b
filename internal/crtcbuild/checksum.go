package crtcbuild

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"lukechampine.com/blake3"
)

// hashFile returns the hex BLAKE3-256 digest of path.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, bufio.NewReader(f)); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// WriteChecksum writes "<hash>  <name>" to archive.b3, the format b3sum -c reads.
func WriteChecksum(archive string) (string, error) {
	sum, err := hashFile(archive)
	if err != nil {
		return "", err
	}
	line := fmt.Sprintf("%s  %s\n", sum, filepath.Base(archive))
	if err := writeFileAtomic(archive+".b3", []byte(line), 0o644); err != nil {
		return "", fmt.Errorf("failed to write checksum for %s: %w", archive, err)
	}
	return sum, nil
}

// VerifyChecksum recomputes the archive hash and compares it to the sidecar.
func VerifyChecksum(archive string) error {
	data, err := os.ReadFile(archive + ".b3")
	if err != nil {
		return fmt.Errorf("no checksum for %s: %w", archive, err)
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return fmt.Errorf("empty checksum file %s.b3", archive)
	}
	sum, err := hashFile(archive)
	if err != nil {
		return err
	}
	if sum != fields[0] {
		return fmt.Errorf("checksum mismatch for %s: expected %s, got %s", filepath.Base(archive), fields[0], sum)
	}
	return nil
}

// Manifest describes one archive. It is written next to it as
// <archive>.manifest.yaml.
type Manifest struct {
	BuildID   string           `yaml:"build_id"`
	Archive   string           `yaml:"archive"`
	Project   Project          `yaml:"project"`
	OS        TargetOS         `yaml:"os"`
	Tag       string           `yaml:"tag"`
	Format    ArchiveFormat    `yaml:"format"`
	Created   time.Time        `yaml:"created"`
	Generator string           `yaml:"generator"`
	Blake3    string           `yaml:"blake3"`
	Targets   []ManifestTarget `yaml:"targets"`
}

// ManifestTarget lists the staged files of one CPU.
type ManifestTarget struct {
	CPU      TargetCPU      `yaml:"cpu"`
	Debug    bool           `yaml:"debug"`
	Examples bool           `yaml:"examples,omitempty"`
	Files    []ManifestFile `yaml:"files"`
}

type ManifestFile struct {
	Path   string `yaml:"path"`
	Size   int64  `yaml:"size"`
	Blake3 string `yaml:"blake3"`
}

// NewManifest hashes every staged file of sets. buildID may be empty, in
// which case a new one is generated.
func NewManifest(buildID, archive string, format ArchiveFormat, tag string, sets []ArtifactSet) (*Manifest, error) {
	if buildID == "" {
		buildID = uuid.NewString()
	}
	m := &Manifest{
		BuildID:   buildID,
		Archive:   filepath.Base(archive),
		Format:    format,
		Tag:       tag,
		Created:   time.Now().UTC().Truncate(time.Second),
		Generator: "crtcbuild " + version,
	}
	if len(sets) > 0 {
		m.Project = sets[0].Request.Project
		m.OS = sets[0].Request.TargetOS
	}

	for _, set := range sets {
		t := ManifestTarget{
			CPU:      set.Request.TargetCPU,
			Debug:    set.Request.Debug,
			Examples: set.Request.Examples,
		}
		for _, f := range set.Files {
			staged := filepath.Join(set.Stage, filepath.FromSlash(f.Dest))
			fi, err := os.Stat(staged)
			if err != nil {
				return nil, fmt.Errorf("manifest: %w", err)
			}
			sum, err := hashFile(staged)
			if err != nil {
				return nil, err
			}
			t.Files = append(t.Files, ManifestFile{Path: f.Dest, Size: fi.Size(), Blake3: sum})
		}
		m.Targets = append(m.Targets, t)
	}
	return m, nil
}

// Write stores the manifest as <archive>.manifest.yaml and returns the path.
func (m *Manifest) Write(archive string) (string, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}
	path := archive + ".manifest.yaml"
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write manifest %s: %w", path, err)
	}
	return path, nil
}

// ReadManifest loads the manifest written next to archive.
func ReadManifest(archive string) (*Manifest, error) {
	data, err := os.ReadFile(archive + ".manifest.yaml")
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest for %s: %w", archive, err)
	}
	return &m, nil
}
