// build.go implements the 'fntrace build' command.
package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/fntrace/fntrace/cmd/fntrace/instrument"
	"github.com/fntrace/fntrace/cmd/fntrace/runtime"
)

// buildCommand implements the 'fntrace build' command.
//
// This command instruments Go source files and builds them with call
// tracing. It acts as a drop-in replacement for 'go build', passing
// unrecognized flags through.
//
// Flow:
//  1. Parse arguments (source files + go build flags)
//  2. Create temporary workspace
//  3. Instrument source files (insert trace calls)
//  4. Link the trace runtime (go.mod overlay)
//  5. Call 'go build' on the instrumented code
//  6. Clean up temporary files
func buildCommand(args []string) {
	config, err := parseBuildArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	conf := loadToolConfig(config.workDir)
	if conf.Verbose {
		config.verbose = true
	}

	workspace, err := createWorkspace()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating workspace: %v\n", err)
		os.Exit(1)
	}
	defer workspace.cleanup()

	if err := instrumentSources(config, conf, workspace); err != nil {
		fmt.Fprintf(os.Stderr, "Error instrumenting sources: %v\n", err)
		os.Exit(1)
	}

	if err := workspace.setupRuntimeLinking(config.sourceDir()); err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up runtime: %v\n", err)
		os.Exit(1)
	}

	if err := workspace.build(config); err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		os.Exit(1)
	}

	if config.outputFile != "" {
		fmt.Printf("Built successfully: %s\n", config.outputFile)
	}
}

// buildConfig holds configuration for the build command.
type buildConfig struct {
	// Source files to instrument and build
	sourceFiles []string

	// Output binary name (from -o flag)
	outputFile string

	// Additional go build flags, passed through
	buildFlags []string

	// Working directory for build
	workDir string

	// Verbose output flag (-v)
	verbose bool
}

// sourceDir returns the directory the sources live in, used to find the
// original project's go.mod for replace-directive carry-over.
func (c *buildConfig) sourceDir() string {
	if len(c.sourceFiles) == 0 {
		return c.workDir
	}
	p := c.sourceFiles[0]
	if !filepath.IsAbs(p) {
		p = filepath.Join(c.workDir, p)
	}
	if info, err := os.Stat(p); err == nil && info.IsDir() {
		return p
	}
	return filepath.Dir(p)
}

// parseBuildArgs separates source files, the -o flag, and pass-through go
// build flags.
func parseBuildArgs(args []string) (*buildConfig, error) {
	config := &buildConfig{}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	config.workDir = cwd

	expectingValue := false
	for i := 0; i < len(args); i++ {
		arg := args[i]

		// Previous flag expects a value, even one starting with a dash.
		// Example: -ldflags "-s -w"
		if expectingValue {
			config.buildFlags = append(config.buildFlags, arg)
			expectingValue = false
			continue
		}

		if arg == "-o" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("-o flag requires an argument")
			}
			i++
			config.outputFile = args[i]
			continue
		}
		if strings.HasPrefix(arg, "-o=") {
			config.outputFile = strings.TrimPrefix(arg, "-o=")
			continue
		}
		if arg == "-v" {
			config.verbose = true
			continue
		}
		if strings.HasPrefix(arg, "-") {
			config.buildFlags = append(config.buildFlags, arg)
			expectingValue = needsValue(arg)
			continue
		}

		// No dash prefix: a source file, directory, or package path.
		config.sourceFiles = append(config.sourceFiles, arg)
	}

	if len(config.sourceFiles) == 0 {
		config.sourceFiles = []string{"."}
	}
	return config, nil
}

// needsValue returns true if the go build flag expects a following value.
func needsValue(flag string) bool {
	valueFlags := []string{
		"-ldflags", "-gcflags", "-asmflags", "-gccgoflags",
		"-tags", "-installsuffix", "-buildmode", "-mod",
		"-modfile", "-overlay", "-pkgdir", "-toolexec",
	}
	for _, vf := range valueFlags {
		if strings.HasPrefix(flag, vf+"=") {
			return false
		}
		if flag == vf {
			return true
		}
	}
	return false
}

// workspace represents a temporary workspace for instrumented code.
type workspace struct {
	dir    string // workspace root, holds the go.mod overlay
	srcDir string // where instrumented .go files go
}

func createWorkspace() (*workspace, error) {
	dir, err := os.MkdirTemp("", "fntrace-build-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	srcDir := filepath.Join(dir, "src")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to create src directory: %w", err)
	}
	return &workspace{dir: dir, srcDir: srcDir}, nil
}

func (w *workspace) cleanup() {
	if w.dir != "" {
		_ = os.RemoveAll(w.dir) // best effort
	}
}

// setupRuntimeLinking creates the go.mod overlay that makes the trace
// runtime importable from the workspace, then tidies it.
func (w *workspace) setupRuntimeLinking(sourceDir string) error {
	overlayPath, err := runtime.ModFileOverlay(w.dir, sourceDir)
	if err != nil {
		return fmt.Errorf("failed to create go.mod overlay: %w", err)
	}
	if overlayPath == "" {
		return nil // published mode, toolchain resolves the runtime
	}

	goModPath := filepath.Join(w.dir, "go.mod")
	if err := os.Rename(overlayPath, goModPath); err != nil {
		return fmt.Errorf("failed to set up go.mod: %w", err)
	}

	tidyCmd := exec.Command("go", "mod", "tidy")
	tidyCmd.Dir = w.dir
	tidyCmd.Stdout = os.Stdout
	tidyCmd.Stderr = os.Stderr
	if err := tidyCmd.Run(); err != nil {
		return fmt.Errorf("failed to tidy go.mod: %w", err)
	}
	return nil
}

// build runs 'go build' on the instrumented code in the workspace.
func (w *workspace) build(config *buildConfig) error {
	args := []string{"build"}

	if config.outputFile != "" {
		outputPath := config.outputFile
		if !filepath.IsAbs(outputPath) {
			outputPath = filepath.Join(config.workDir, outputPath)
		}
		args = append(args, "-o", outputPath)
	}
	args = append(args, config.buildFlags...)
	args = append(args, ".")

	cmd := exec.Command("go", args...)
	cmd.Dir = w.srcDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// instrumentSources instruments all source files and writes them to the
// workspace.
//
// The files are parsed and type-checked together (declared types drive
// value classification), then instrumented one goroutine per file: each
// file's AST is independent, and the shared types.Info is only read. The
// one program-wide step, runtime linking, happens afterwards in
// setupRuntimeLinking.
func instrumentSources(config *buildConfig, conf *toolConfig, workspace *workspace) error {
	goFiles, err := collectGoFiles(config.sourceFiles, config.workDir)
	if err != nil {
		return fmt.Errorf("failed to collect source files: %w", err)
	}
	if len(goFiles) == 0 {
		return fmt.Errorf("no Go source files found")
	}

	fset := token.NewFileSet()
	files := make([]*ast.File, len(goFiles))
	for i, path := range goFiles {
		files[i], err = parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	info := instrument.NewTypesInfo()
	instrument.Check(fset, files, info)

	opts := instrument.Options{SkipPrefixes: conf.Skip}
	codes := make([]string, len(files))
	stats := make([]instrument.Stats, len(files))

	var g errgroup.Group
	for i := range files {
		i := i
		g.Go(func() error {
			_, st := instrument.File(fset, files[i], info, opts)
			code, err := instrument.Print(fset, files[i])
			if err != nil {
				return fmt.Errorf("failed to generate code for %s: %w", goFiles[i], err)
			}
			codes[i], stats[i] = code, st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, srcPath := range goFiles {
		// Flatten directory structure: the workspace builds one package.
		outPath := filepath.Join(workspace.srcDir, filepath.Base(srcPath))
		if err := os.WriteFile(outPath, []byte(codes[i]), 0o644); err != nil {
			return fmt.Errorf("failed to write instrumented file %s: %w", outPath, err)
		}
		fmt.Printf("Instrumented: %s -> %s\n", srcPath, outPath)
		if config.verbose {
			printStats(srcPath, stats[i])
		}
	}
	return nil
}

// printStats prints per-file instrumentation statistics (-v output).
func printStats(path string, st instrument.Stats) {
	fmt.Printf("  %s:\n", filepath.Base(path))
	fmt.Printf("  - %d functions instrumented\n", st.FunctionsInstrumented)
	fmt.Printf("  - %d argument traces, %d exit traces inserted\n", st.ArgTraces, st.ExitTraces)
	if skipped := st.TotalSkipped(); skipped > 0 {
		fmt.Printf("  - %d functions skipped (%d declaration-only, %d intrinsic, %d primitive, %d reserved, %d already instrumented, %d configured, %d unresolved)\n",
			skipped,
			st.DeclarationsSkipped,
			st.IntrinsicsSkipped,
			st.PrimitiveSkipped,
			st.ReservedSkipped,
			st.InstrumentedSkipped,
			st.ConfiguredSkipped,
			st.UntypedSkipped,
		)
	}
}

// collectGoFiles finds all .go files from the given sources.
//
// Sources can be .go files directly, or directories scanned non-recursively
// for .go files. Test files are excluded from builds.
func collectGoFiles(sources []string, workDir string) ([]string, error) {
	var goFiles []string
	for _, src := range sources {
		srcPath := src
		if !filepath.IsAbs(srcPath) {
			srcPath = filepath.Join(workDir, src)
		}

		info, err := os.Stat(srcPath)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", src, err)
		}

		if !info.IsDir() {
			if strings.HasSuffix(srcPath, ".go") {
				goFiles = append(goFiles, srcPath)
			}
			continue
		}

		entries, err := os.ReadDir(srcPath)
		if err != nil {
			return nil, fmt.Errorf("cannot read directory %s: %w", srcPath, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			if strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go") {
				goFiles = append(goFiles, filepath.Join(srcPath, name))
			}
		}
	}
	return goFiles, nil
}
