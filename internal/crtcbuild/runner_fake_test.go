package crtcbuild

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	libunwindFixture = `source_set("libunwind") {
  visibility = [ "//buildtools/third_party/libc++abi" ]
  sources = [ "src/libunwind.cpp" ]
}
`
	buildConfigFixture = `group("common_deps") {
  public_deps = []
  if (use_custom_libcxx) {
    public_deps += [ "//buildtools/third_party/libc++" ]
  }
}
`
)

// fakeRunner records commands and imitates the side effects of the real
// tools: git clone and fetch create directories, ninja writes the outputs
// the artifact table expects.
type fakeRunner struct {
	cmds []Command
	log  io.Writer
	// fail, when set, may return an error for a command before its side
	// effects happen.
	fail func(Command) error
}

func (f *fakeRunner) SetLog(w io.Writer) { f.log = w }

func (f *fakeRunner) Run(ctx context.Context, c Command) error {
	f.cmds = append(f.cmds, c)
	if f.log != nil {
		fmt.Fprintf(f.log, "$ %s\n", c)
	}
	if f.fail != nil {
		if err := f.fail(c); err != nil {
			return err
		}
	}

	switch toolName(c) {
	case "git":
		if len(c.Args) > 0 && c.Args[0] == "clone" {
			return os.MkdirAll(c.Args[len(c.Args)-1], 0o755)
		}
	case "fetch":
		return fakeFetch(c.Dir, c.Args[len(c.Args)-1])
	case "ninja":
		return fakeNinja(c.Args[1], c.Args[2])
	}
	return nil
}

// named returns the recorded commands of one tool.
func (f *fakeRunner) named(name string) []Command {
	var out []Command
	for _, c := range f.cmds {
		if toolName(c) == name {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeRunner) reset() { f.cmds = nil }

func toolName(c Command) string {
	return strings.TrimSuffix(filepath.Base(c.Name), ".bat")
}

func fakeFetch(tree, profile string) error {
	src := filepath.Join(tree, "src")
	if err := os.MkdirAll(src, 0o755); err != nil {
		return err
	}
	if profile != "webrtc_android" {
		return nil
	}
	files := map[string]string{
		filepath.Join("buildtools", "third_party", "libunwind", "BUILD.gn"): libunwindFixture,
		filepath.Join("build", "config", "BUILD.gn"):                        buildConfigFixture,
	}
	for rel, content := range files {
		path := filepath.Join(src, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// fakeNinja derives (project, os) from the product and out/<os>/<cpu> and
// writes every expected output.
func fakeNinja(out, product string) error {
	project := ProjectLibrary
	if product == productDependency {
		project = ProjectDependency
	}
	targetOS := TargetOS(filepath.Base(filepath.Dir(out)))
	cpu := filepath.Base(out)
	for _, r := range artifactTable[artifactKey{project, targetOS}] {
		path := filepath.Join(out, filepath.FromSlash(r.Source))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(product+" "+cpu), 0o644); err != nil {
			return err
		}
	}
	return nil
}

var testHost = HostEnvironment{OS: OSLinux, CPU: CPUx64}

// newTestWorkspace creates a project root with the public header and
// root.gn, and an execution context driven by a fakeRunner.
func newTestWorkspace(t *testing.T) (*ExecutionContext, *fakeRunner) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "include"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "include", publicHeader), []byte("#pragma once\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, rootBuildFile), []byte("group(\"default\") {}\n"), 0o644))

	runner := &fakeRunner{}
	s := &Settings{
		Root:          root,
		DepotToolsURL: depotToolsURL,
		Branch:        defaultBranch,
		ArchiveFormat: FormatTarGz,
	}
	return NewExecutionContext(s, testHost, runner), runner
}
