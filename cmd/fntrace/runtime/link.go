// Package runtime links the trace runtime into instrumented builds.
//
// Instrumented code imports the trace package from this module, so the
// temporary build workspace needs a go.mod that resolves that import. In a
// development tree this means a replace directive pointing at the checkout;
// for published installs the toolchain resolves the module on its own.
package runtime

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
)

// ModulePath is the module instrumented code depends on for its runtime.
const ModulePath = "github.com/fntrace/fntrace"

// ModFileOverlay writes the go.mod for a build workspace at tempDir.
//
// The generated file requires this module and, when running from a source
// checkout, replaces it with the local tree. Replace directives from the
// instrumented project's own go.mod (found by walking up from sourceDir)
// are carried over with local paths made absolute, since the workspace
// builds from a different directory.
//
// Returns the overlay path, or "" when no overlay is needed (published
// mode: the toolchain resolves the runtime itself).
func ModFileOverlay(tempDir, sourceDir string) (string, error) {
	root, err := FindProjectRoot()
	if err != nil {
		return "", nil
	}

	mf := new(modfile.File)
	if err := mf.AddModuleStmt("fntrace-instrumented"); err != nil {
		return "", fmt.Errorf("failed to build overlay go.mod: %w", err)
	}
	if err := mf.AddGoStmt("1.24.0"); err != nil {
		return "", fmt.Errorf("failed to build overlay go.mod: %w", err)
	}
	if err := mf.AddRequire(ModulePath, "v0.0.0"); err != nil {
		return "", fmt.Errorf("failed to build overlay go.mod: %w", err)
	}
	if err := mf.AddReplace(ModulePath, "", root, ""); err != nil {
		return "", fmt.Errorf("failed to build overlay go.mod: %w", err)
	}
	for _, rep := range originalReplaces(sourceDir) {
		if rep.Old.Path == ModulePath {
			continue // ours wins
		}
		if err := mf.AddReplace(rep.Old.Path, rep.Old.Version, rep.New.Path, rep.New.Version); err != nil {
			return "", fmt.Errorf("failed to carry over replace %s: %w", rep.Old.Path, err)
		}
	}

	data, err := mf.Format()
	if err != nil {
		return "", fmt.Errorf("failed to format overlay go.mod: %w", err)
	}

	overlayPath := filepath.Join(tempDir, "go.mod.overlay")
	if err := os.WriteFile(overlayPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write overlay go.mod: %w", err)
	}
	return overlayPath, nil
}

// FindProjectRoot locates this module's source checkout: the nearest
// directory, walking up from the working directory and then from the
// executable, whose go.mod declares ModulePath. Published installs have no
// such directory and get an error.
func FindProjectRoot() (string, error) {
	var starts []string
	if cwd, err := os.Getwd(); err == nil {
		starts = append(starts, cwd)
	}
	if exe, err := os.Executable(); err == nil {
		starts = append(starts, filepath.Dir(exe))
	}

	for _, start := range starts {
		dir := start
		for {
			if declaresModule(filepath.Join(dir, "go.mod")) {
				return dir, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	return "", fmt.Errorf("could not find %s source checkout", ModulePath)
}

func declaresModule(goModPath string) bool {
	data, err := os.ReadFile(goModPath)
	if err != nil {
		return false
	}
	return modfile.ModulePath(data) == ModulePath
}

// originalReplaces parses the instrumented project's go.mod, if any, and
// returns its replace directives with relative filesystem targets made
// absolute. Errors degrade to "no directives": the overlay still works,
// the project just loses its local overrides.
func originalReplaces(sourceDir string) []*modfile.Replace {
	goModPath := findGoMod(sourceDir)
	if goModPath == "" {
		return nil
	}
	data, err := os.ReadFile(goModPath)
	if err != nil {
		return nil
	}
	mf, err := modfile.Parse(goModPath, data, nil)
	if err != nil {
		return nil
	}

	goModDir := filepath.Dir(goModPath)
	out := make([]*modfile.Replace, 0, len(mf.Replace))
	for _, rep := range mf.Replace {
		r := *rep
		if r.New.Version == "" && isLocalPath(r.New.Path) && !filepath.IsAbs(r.New.Path) {
			if abs, err := filepath.Abs(filepath.Join(goModDir, r.New.Path)); err == nil {
				r.New.Path = abs
			}
		}
		out = append(out, &r)
	}
	return out
}

// findGoMod walks up from dir looking for a go.mod; returns "" when there
// is none (the sources being instrumented are not part of a module).
func findGoMod(dir string) string {
	if dir == "" {
		return ""
	}
	for {
		path := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// isLocalPath reports whether a replace target is a filesystem path rather
// than a module path.
func isLocalPath(path string) bool {
	return strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") ||
		filepath.IsAbs(path)
}
