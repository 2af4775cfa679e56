// link_test.go tests trace runtime linkage.
package runtime

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/mod/modfile"
)

// TestModFileOverlay verifies go.mod overlay creation.
//
// The overlay only exists when running from a source checkout of this
// module; outside one the function returns an empty path, which is also a
// valid outcome in some test environments.
func TestModFileOverlay(t *testing.T) {
	tempDir := t.TempDir()

	overlayPath, err := ModFileOverlay(tempDir, tempDir)
	if err != nil {
		t.Fatalf("ModFileOverlay() failed: %v", err)
	}
	if overlayPath == "" {
		t.Logf("ModFileOverlay() returned empty path (no source checkout found)")
		return
	}

	content, err := os.ReadFile(overlayPath)
	if err != nil {
		t.Fatalf("Failed to read overlay file: %v", err)
	}
	contentStr := string(content)

	if !strings.Contains(contentStr, "module fntrace-instrumented") {
		t.Errorf("Overlay missing module declaration")
	}
	if !strings.Contains(contentStr, "require "+ModulePath) {
		t.Errorf("Overlay missing runtime requirement")
	}
	if !strings.Contains(contentStr, "replace "+ModulePath) {
		t.Errorf("Overlay missing replace directive")
	}
	if !strings.Contains(contentStr, "go 1.") {
		t.Errorf("Overlay missing go version directive")
	}

	// The overlay must itself parse as a go.mod.
	if _, err := modfile.Parse(overlayPath, content, nil); err != nil {
		t.Errorf("Overlay is not a parseable go.mod: %v", err)
	}

	t.Logf("Overlay content:\n%s", contentStr)
}

// TestModFileOverlay_CarriesOverReplaces verifies that the instrumented
// project's replace directives survive, with local paths made absolute.
func TestModFileOverlay_CarriesOverReplaces(t *testing.T) {
	if _, err := FindProjectRoot(); err != nil {
		t.Skipf("no source checkout: %v", err)
	}

	projectDir := t.TempDir()
	projectMod := `module example.com/demo

go 1.24.0

require example.com/dep v1.0.0

replace example.com/dep => ./local-dep
`
	if err := os.WriteFile(filepath.Join(projectDir, "go.mod"), []byte(projectMod), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	tempDir := t.TempDir()
	overlayPath, err := ModFileOverlay(tempDir, projectDir)
	if err != nil {
		t.Fatalf("ModFileOverlay() failed: %v", err)
	}

	content, err := os.ReadFile(overlayPath)
	if err != nil {
		t.Fatalf("Failed to read overlay file: %v", err)
	}

	mf, err := modfile.Parse(overlayPath, content, nil)
	if err != nil {
		t.Fatalf("Overlay is not a parseable go.mod: %v", err)
	}

	var depReplace *modfile.Replace
	for _, rep := range mf.Replace {
		if rep.Old.Path == "example.com/dep" {
			depReplace = rep
		}
	}
	if depReplace == nil {
		t.Fatalf("Overlay lost the project's replace directive:\n%s", content)
	}
	if !filepath.IsAbs(depReplace.New.Path) {
		t.Errorf("Carried-over replace target %q should be absolute", depReplace.New.Path)
	}
}

// TestFindProjectRoot verifies source checkout detection.
func TestFindProjectRoot(t *testing.T) {
	root, err := FindProjectRoot()
	if err != nil {
		t.Logf("FindProjectRoot() error: %v (expected outside a checkout)", err)
		return
	}

	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		t.Fatalf("FindProjectRoot() returned %q without a readable go.mod: %v", root, err)
	}
	if got := modfile.ModulePath(data); got != ModulePath {
		t.Errorf("Root go.mod declares %q, want %q", got, ModulePath)
	}

	t.Logf("Project root found: %s", root)
}

// TestOriginalReplaces_NoModule verifies graceful degradation when the
// instrumented sources are not part of a module.
func TestOriginalReplaces_NoModule(t *testing.T) {
	if reps := originalReplaces(t.TempDir()); len(reps) != 0 {
		t.Errorf("originalReplaces() = %v for a module-less directory, want none", reps)
	}
	if reps := originalReplaces(""); len(reps) != 0 {
		t.Errorf("originalReplaces(\"\") = %v, want none", reps)
	}
}

// TestIsLocalPath distinguishes filesystem replace targets from module paths.
func TestIsLocalPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"./local", true},
		{"../sibling", true},
		{"/abs/path", true},
		{"example.com/module", false},
		{"golang.org/x/mod", false},
	}

	for _, tt := range tests {
		if got := isLocalPath(tt.path); got != tt.want {
			t.Errorf("isLocalPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

// BenchmarkFindProjectRoot benchmarks checkout detection.
func BenchmarkFindProjectRoot(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = FindProjectRoot()
	}
}
