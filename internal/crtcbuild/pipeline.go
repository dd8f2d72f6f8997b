package crtcbuild

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// logSink is implemented by runners that can tee command output into a
// build log.
type logSink interface {
	SetLog(w io.Writer)
}

// Pipeline drives one request through toolchain, sync, patch, gn, ninja and
// collection, and packages the results.
type Pipeline struct {
	ec       *ExecutionContext
	sync     *SyncManager
	patch    *PatchApplier
	gen      *ConfigGenerator
	build    *BuildExecutor
	collect  *Collector
	packager *Packager

	// KeepLogs writes dist/logs/<project>-<os>-<cpu>.log.xz for every request.
	KeepLogs bool
	// Progress receives the batch progress bar; nil disables it.
	Progress io.Writer
}

func NewPipeline(ec *ExecutionContext) *Pipeline {
	format := FormatTarGz
	if ec.Settings != nil && ec.Settings.ArchiveFormat != "" {
		format = ec.Settings.ArchiveFormat
	}
	return &Pipeline{
		ec:       ec,
		sync:     NewSyncManager(ec),
		patch:    NewPatchApplier(ec),
		gen:      NewConfigGenerator(ec),
		build:    NewBuildExecutor(ec),
		collect:  NewCollector(ec),
		packager: &Packager{Format: format},
		KeepLogs: true,
	}
}

// BuildResult is a packaged archive with its sidecars.
type BuildResult struct {
	BuildID  string
	Archive  string
	Checksum string // path of the .b3 sidecar
	Manifest string
	Sets     []ArtifactSet
}

// Run executes every stage for req and returns the staged artifacts. The
// first failing stage aborts the request.
func (p *Pipeline) Run(ctx context.Context, req BuildRequest, buildID string) (set ArtifactSet, err error) {
	if err := req.Validate(); err != nil {
		return ArtifactSet{}, err
	}
	paths := p.ec.Paths(req)

	colNote.Printf("==> Building %s\n", req)

	if p.KeepLogs {
		log, lerr := OpenBuildLog(paths.Logs, req, buildID)
		if lerr != nil {
			return ArtifactSet{}, lerr
		}
		if sink, ok := p.ec.Runner.(logSink); ok {
			sink.SetLog(log)
			defer sink.SetLog(nil)
		}
		defer func() {
			if cerr := log.Close(err); cerr != nil {
				colWarn.Printf("Warning: %v\n", cerr)
			}
		}()
	}

	if _, err := EnsureToolchain(ctx, p.ec); err != nil {
		return ArtifactSet{}, err
	}
	if err := p.sync.EnsureSynced(ctx, req); err != nil {
		return ArtifactSet{}, err
	}
	if _, err := p.patch.EnsurePatched(req); err != nil {
		return ArtifactSet{}, err
	}
	if _, err := p.gen.Generate(ctx, req); err != nil {
		return ArtifactSet{}, err
	}
	if err := p.build.Execute(ctx, req, ProductFor(req)); err != nil {
		return ArtifactSet{}, err
	}
	return p.collect.Collect(req)
}

// Build runs a single request and packages it under its CPU tag.
func (p *Pipeline) Build(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	buildID := uuid.NewString()
	set, err := p.Run(ctx, req, buildID)
	if err != nil {
		return nil, err
	}
	return p.Package([]ArtifactSet{set}, string(req.TargetCPU), buildID)
}

// BuildAll runs req once per cpu, in order, and packages every staging
// directory into one archive tagged "all". The first failure aborts the
// batch; staging directories of requests that already finished are kept.
func (p *Pipeline) BuildAll(ctx context.Context, req BuildRequest, cpus []TargetCPU) (*BuildResult, error) {
	if len(cpus) == 0 {
		cpus = AllCPUs
	}
	buildID := uuid.NewString()
	bar := p.newBatchBar(len(cpus), req)

	sets := make([]ArtifactSet, 0, len(cpus))
	for _, cpu := range cpus {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("batch aborted: %w", err)
		}
		r := req.ForCPU(cpu)
		if bar != nil {
			bar.Describe(fmt.Sprintf("%s/%s", r.TargetOS, r.TargetCPU))
		}
		set, err := p.Run(ctx, r, buildID)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return p.Package(sets, AllTag, buildID)
}

// Package archives sets and writes the .b3 checksum and the manifest.
func (p *Pipeline) Package(sets []ArtifactSet, tag, buildID string) (*BuildResult, error) {
	if len(sets) == 0 {
		return nil, stageErr(StagePackage, ErrPackaging, nil, fmt.Errorf("no staged artifacts"))
	}
	project, targetOS := sets[0].Request.Project, sets[0].Request.TargetOS

	archive, err := p.packager.Package(p.ec.Paths(sets[0].Request).Dist, sets, project, targetOS, tag)
	if err != nil {
		return nil, err
	}
	if _, err := WriteChecksum(archive); err != nil {
		return nil, stageErr(StagePackage, ErrPackaging, nil, err)
	}
	m, err := NewManifest(buildID, archive, p.packager.Format, tag, sets)
	if err != nil {
		return nil, stageErr(StagePackage, ErrPackaging, nil, err)
	}
	manifest, err := m.Write(archive)
	if err != nil {
		return nil, stageErr(StagePackage, ErrPackaging, nil, err)
	}

	return &BuildResult{
		BuildID:  m.BuildID,
		Archive:  archive,
		Checksum: archive + ".b3",
		Manifest: manifest,
		Sets:     sets,
	}, nil
}

// newBatchBar returns nil unless Progress is an interactive terminal.
func (p *Pipeline) newBatchBar(n int, req BuildRequest) *progressbar.ProgressBar {
	if p.Progress == nil {
		return nil
	}
	if f, ok := p.Progress.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetWriter(p.Progress),
		progressbar.OptionSetDescription(fmt.Sprintf("%s %s", req.Project, req.TargetOS)),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(p.Progress) }),
	)
}
