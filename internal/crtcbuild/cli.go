package crtcbuild

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

// app is the state shared by all subcommands, set up before any of them runs.
type app struct {
	rootFlag   string
	configFlag string
	verbose    bool

	cfg      *Config
	settings *Settings
	host     HostEnvironment
	ec       *ExecutionContext
	executor *Executor
}

func (a *app) setup(cmd *cobra.Command) error {
	root := a.rootFlag
	if root == "" {
		if env := os.Getenv("CRTC_ROOT"); env != "" {
			root = env
		} else {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			root = wd
		}
	}

	configPath := a.configFlag
	if configPath == "" {
		configPath = filepath.Join(root, ConfigFileName)
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if a.rootFlag != "" {
		cfg.Values["CRTC_ROOT"] = a.rootFlag
	}

	a.host = DetectHost()
	s, err := initSettings(cfg, root, a.host)
	if err != nil {
		return err
	}
	if a.verbose {
		Debug = true
	}

	a.cfg = cfg
	a.settings = s
	a.executor = NewExecutor()
	a.ec = NewExecutionContext(s, a.host, a.executor)
	debugf("Workspace root: %s, host: %s/%s\n", s.Root, a.host.OS, a.host.CPU)
	return nil
}

// withLock runs fn while holding the workspace lock.
func (a *app) withLock(fn func() error) error {
	lock, err := AcquireWorkspaceLock(a.settings.Root)
	if err != nil {
		return err
	}
	defer lock.Release()
	return fn()
}

// requestFlags are the build-matrix flags shared by build, batch and package.
// Unset flags keep the value from configuration.
type requestFlags struct {
	project  string
	os       string
	cpu      string
	debug    bool
	examples bool
}

func (f *requestFlags) register(cmd *cobra.Command, withCPU bool) {
	cmd.Flags().StringVarP(&f.project, "project", "p", "", "library or dependency (default from CRTC_PROJECT, else library)")
	cmd.Flags().StringVarP(&f.os, "os", "o", "", "target OS: windows, linux, android, macos (default from WEBRTC_TARGET_OS, else host)")
	if withCPU {
		cmd.Flags().StringVarP(&f.cpu, "cpu", "c", "", "target CPU: x86, x64, arm, arm64 (default from WEBRTC_TARGET_CPU, else host)")
	}
	cmd.Flags().BoolVar(&f.debug, "debug", false, "debug variant (WEBRTC_DEBUG=true)")
	cmd.Flags().BoolVar(&f.examples, "examples", false, "build crtc-examples instead of crtc (WEBRTC_EXAMPLES=true)")
}

func (f *requestFlags) resolve(cmd *cobra.Command, def BuildRequest) (BuildRequest, error) {
	req := def
	var err error
	if cmd.Flags().Changed("project") {
		if req.Project, err = ParseProject(f.project); err != nil {
			return req, err
		}
	}
	if cmd.Flags().Changed("os") {
		if req.TargetOS, err = ParseOS(f.os); err != nil {
			return req, err
		}
	}
	if cmd.Flags().Lookup("cpu") != nil && cmd.Flags().Changed("cpu") {
		if req.TargetCPU, err = ParseCPU(f.cpu); err != nil {
			return req, err
		}
	}
	if cmd.Flags().Changed("debug") {
		req.Debug = f.debug
	}
	if cmd.Flags().Changed("examples") {
		req.Examples = f.examples
	}
	return req, req.Validate()
}

// pipelineFlags tune how a pipeline runs.
type pipelineFlags struct {
	format      string
	noLog       bool
	legacyFetch bool
}

func (f *pipelineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.format, "format", "", "archive format: tar.gz, tar.zst or zip (default from CRTC_ARCHIVE_FORMAT)")
	cmd.Flags().BoolVar(&f.noLog, "no-log", false, "do not keep compressed build logs in dist/logs")
	cmd.Flags().BoolVar(&f.legacyFetch, "legacy-fetch", false, "continue when fetch fails (CRTC_LEGACY_FETCH=1)")
}

func (a *app) pipeline(cmd *cobra.Command, f *pipelineFlags) (*Pipeline, error) {
	if cmd.Flags().Changed("format") {
		format, err := ParseArchiveFormat(f.format)
		if err != nil {
			return nil, err
		}
		a.settings.ArchiveFormat = format
	}
	if f.legacyFetch {
		a.settings.LegacyFetch = true
	}
	p := NewPipeline(a.ec)
	p.KeepLogs = !f.noLog
	p.Progress = os.Stderr
	return p, nil
}

func printResult(res *BuildResult) {
	colArrow.Print("-> ")
	colSuccess.Printf("Archive:  %s\n", res.Archive)
	colArrow.Print("-> ")
	colSuccess.Printf("Checksum: %s\n", res.Checksum)
	colArrow.Print("-> ")
	colSuccess.Printf("Manifest: %s\n", res.Manifest)
	debugf("build id %s\n", res.BuildID)
}

// parseCPUList accepts "all" or a comma separated list.
func parseCPUList(s string) ([]TargetCPU, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == AllTag {
		return AllCPUs, nil
	}
	var cpus []TargetCPU
	seen := make(map[TargetCPU]bool)
	for _, part := range strings.Split(s, ",") {
		cpu, err := ParseCPU(part)
		if err != nil {
			return nil, err
		}
		if !seen[cpu] {
			seen[cpu] = true
			cpus = append(cpus, cpu)
		}
	}
	return cpus, nil
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "crtcbuild",
		Short: "Build and package crtc and WebRTC for every target platform",
		Long: `crtcbuild bootstraps depot_tools, synchronizes the WebRTC tree, applies the
Android patches, runs gn and ninja for a (project, os, cpu) matrix and packages
the results into versioned archives under dist/.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.rootFlag, "root", "", "workspace root (default CRTC_ROOT, else the current directory)")
	root.PersistentFlags().StringVar(&a.configFlag, "config", "", "config file (default <root>/"+ConfigFileName+")")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug output (CRTC_DEBUG=1)")

	root.AddCommand(
		newBuildCmd(a),
		newBatchCmd(a),
		newMenuCmd(a),
		newPackageCmd(a),
		newInspectCmd(a),
		newPublishCmd(a),
		newLogCmd(a),
		newStatusCmd(a),
		newCleanCmd(a),
		newVersionCmd(),
	)
	return root
}

func newBuildCmd(a *app) *cobra.Command {
	var rf requestFlags
	var pf pipelineFlags
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build one target and package it as <lib>-<os>-<cpu>",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := rf.resolve(cmd, a.settings.Request)
			if err != nil {
				return err
			}
			p, err := a.pipeline(cmd, &pf)
			if err != nil {
				return err
			}
			return a.withLock(func() error {
				res, err := p.Build(cmd.Context(), req)
				if err != nil {
					return err
				}
				printResult(res)
				return nil
			})
		},
	}
	rf.register(cmd, true)
	pf.register(cmd)
	return cmd
}

func newBatchCmd(a *app) *cobra.Command {
	var rf requestFlags
	var pf pipelineFlags
	var cpuList string
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Build every CPU of one OS in turn and package them as <lib>-<os>-all",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := rf.resolve(cmd, a.settings.Request)
			if err != nil {
				return err
			}
			cpus, err := parseCPUList(cpuList)
			if err != nil {
				return err
			}
			p, err := a.pipeline(cmd, &pf)
			if err != nil {
				return err
			}
			return a.withLock(func() error {
				res, err := p.BuildAll(cmd.Context(), req, cpus)
				if err != nil {
					return err
				}
				printResult(res)
				return nil
			})
		},
	}
	rf.register(cmd, false)
	pf.register(cmd)
	cmd.Flags().StringVar(&cpuList, "cpus", AllTag, "comma separated CPUs to build, in order")
	return cmd
}

func newMenuCmd(a *app) *cobra.Command {
	var pf pipelineFlags
	cmd := &cobra.Command{
		Use:   "menu",
		Short: "Pick the build interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			choice, err := RunMenu(a.settings.Request)
			if errors.Is(err, ErrMenuCancelled) {
				colArrow.Print("-> ")
				colSuccess.Println("Nothing to build.")
				return nil
			}
			if err != nil {
				return err
			}
			p, err := a.pipeline(cmd, &pf)
			if err != nil {
				return err
			}
			return a.withLock(func() error {
				var res *BuildResult
				if choice.All {
					res, err = p.BuildAll(cmd.Context(), choice.Request, AllCPUs)
				} else {
					res, err = p.Build(cmd.Context(), choice.Request)
				}
				if err != nil {
					return err
				}
				printResult(res)
				return nil
			})
		},
	}
	pf.register(cmd)
	return cmd
}

func newPackageCmd(a *app) *cobra.Command {
	var rf requestFlags
	var format, cpuList string
	cmd := &cobra.Command{
		Use:   "package",
		Short: "Package existing staging directories without rebuilding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := rf.resolve(cmd, a.settings.Request)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("format") {
				if a.settings.ArchiveFormat, err = ParseArchiveFormat(format); err != nil {
					return err
				}
			}

			tag := string(req.TargetCPU)
			cpus := []TargetCPU{req.TargetCPU}
			if cmd.Flags().Changed("cpus") {
				if cpus, err = parseCPUList(cpuList); err != nil {
					return err
				}
				tag = AllTag
			}

			var sets []ArtifactSet
			for _, cpu := range cpus {
				set, err := StagedSet(a.ec, req.ForCPU(cpu))
				if err != nil {
					return err
				}
				sets = append(sets, set)
			}
			return a.withLock(func() error {
				res, err := NewPipeline(a.ec).Package(sets, tag, uuid.NewString())
				if err != nil {
					return err
				}
				printResult(res)
				return nil
			})
		},
	}
	rf.register(cmd, true)
	cmd.Flags().StringVar(&format, "format", "", "archive format: tar.gz, tar.zst or zip")
	cmd.Flags().StringVar(&cpuList, "cpus", "", "package several CPUs into one archive tagged all (\"all\" or a comma separated list)")
	return cmd
}

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <archive>",
		Short: "List an archive's entries and verify its checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive := args[0]
			names, err := ListArchive(archive)
			if err != nil {
				return err
			}
			lines := []string{fmt.Sprintf("%s (%d entries)", filepath.Base(archive), len(names))}
			for _, n := range names {
				lines = append(lines, "  "+n)
			}

			switch err := VerifyChecksum(archive); {
			case err == nil:
				lines = append(lines, "", "checksum: ok")
			case errors.Is(err, os.ErrNotExist):
				lines = append(lines, "", "checksum: no .b3 sidecar")
			default:
				return err
			}
			if m, err := ReadManifest(archive); err == nil {
				lines = append(lines, fmt.Sprintf("build id: %s", m.BuildID), fmt.Sprintf("created:  %s", m.Created.Format(time.RFC3339)))
				for _, t := range m.Targets {
					lines = append(lines, fmt.Sprintf("  %s: %d files, debug=%t", t.CPU, len(t.Files), t.Debug))
				}
			}
			return RunPager(filepath.Base(archive), lines)
		},
	}
}

func newPublishCmd(a *app) *cobra.Command {
	var prefix string
	var list bool
	cmd := &cobra.Command{
		Use:   "publish <archive>...",
		Short: "Upload archives with their checksum and manifest to R2/S3",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !list && len(args) == 0 {
				return errors.New("publish needs at least one archive")
			}
			client, err := NewR2Client(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			if list {
				objects, err := client.ListObjects(cmd.Context(), prefix)
				if err != nil {
					return fmt.Errorf("failed to list %s: %w", prefix, err)
				}
				for _, o := range objects {
					fmt.Printf("%-60s %10s\n", o.Key, humanReadableSize(o.Size))
				}
				return nil
			}
			for _, archive := range args {
				if _, err := Publish(cmd.Context(), client, prefix, archive); err != nil {
					return err
				}
			}
			colArrow.Print("-> ")
			colSuccess.Printf("Published %d archive(s) to %s\n", len(args), client.BucketName)
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "crtc", "key prefix in the bucket")
	cmd.Flags().BoolVar(&list, "list", false, "list published objects under the prefix instead")
	return cmd
}

func newLogCmd(a *app) *cobra.Command {
	var rf requestFlags
	cmd := &cobra.Command{
		Use:   "log [file.log.xz]",
		Short: "Show the compressed build log of a target",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			} else {
				req, err := rf.resolve(cmd, a.settings.Request)
				if err != nil {
					return err
				}
				path = LogPath(a.ec.Paths(req).Logs, req)
			}
			text, err := ReadBuildLog(path)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("no build log at %s", path)
				}
				return err
			}
			return RunPager(filepath.Base(path), strings.Split(strings.TrimRight(text, "\n"), "\n"))
		},
	}
	rf.register(cmd, true)
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show toolchain, source trees, staging directories and archives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ReadStatus(a.ec)
			if err != nil {
				return err
			}
			return RunPager("status", st.Lines())
		},
	}
}

func newCleanCmd(a *app) *cobra.Command {
	var opts CleanOptions
	var project, targetOS string
	var all, yes bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove build outputs, staging directories or sync sentinels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if project != "" {
				if opts.Project, err = ParseProject(project); err != nil {
					return err
				}
			}
			if targetOS != "" {
				if opts.OS, err = ParseOS(targetOS); err != nil {
					return err
				}
			}
			if all {
				opts.Out, opts.Stage, opts.Sync, opts.Logs = true, true, true, true
			}
			if !opts.Out && !opts.Stage && !opts.Sync && !opts.Logs {
				return cmd.Help()
			}

			targets := CleanTargets(a.settings.Root, opts)
			if len(targets) == 0 {
				colArrow.Print("-> ")
				colSuccess.Println("Nothing to clean.")
				return nil
			}
			for _, t := range targets {
				cPrintf(colWarn, "  %s\n", t)
			}
			if !yes && !askForConfirmation(os.Stdin, colArrow, false, "Remove %d path(s)?", len(targets)) {
				colArrow.Print("-> ")
				colSuccess.Println("Cleanup canceled.")
				return nil
			}
			return a.withLock(func() error {
				removed, err := Clean(a.settings.Root, opts)
				if err != nil {
					return err
				}
				colArrow.Print("-> ")
				colSuccess.Printf("Removed %d path(s).\n", len(removed))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&opts.Out, "out", false, "remove out/<os> build graphs")
	cmd.Flags().BoolVar(&opts.Stage, "stage", false, "remove dist/<project>/<os> staging directories")
	cmd.Flags().BoolVar(&opts.Sync, "sync", false, "remove sync sentinels so the next build resyncs")
	cmd.Flags().BoolVar(&opts.Logs, "logs", false, "remove dist/logs")
	cmd.Flags().BoolVar(&all, "all", false, "all of the above")
	cmd.Flags().StringVarP(&project, "project", "p", "", "limit to one project")
	cmd.Flags().StringVarP(&targetOS, "os", "o", "", "limit to one target OS")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("crtcbuild %s\n", version)
			fmt.Printf("  built: %s\n", buildDate)
			fmt.Printf("  arch:  %s\n", arch)
		},
	}
}

// Main is the CLI entrypoint for cmd/crtcbuild.
func Main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	// First signal cancels the context, which kills the running tool's process
	// group. A second one exits immediately.
	go func() {
		select {
		case sig := <-sigs:
			colArrow.Print("\n-> ")
			color.Danger.Printf("Received %v. Stopping the current build\n", sig)
			cancel()
		case <-ctx.Done():
			return
		}
		<-sigs
		colArrow.Print("\n-> ")
		color.Danger.Println("Second interrupt received. Forcing immediate exit.")
		os.Exit(130)
	}()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		colArrow.Print("-> ")
		colError.Printf("Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	if errors.Is(err, context.Canceled) {
		return 130
	}
	return 1
}
