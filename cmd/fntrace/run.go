// run.go implements the 'fntrace run' command.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/fntrace/fntrace/trace"
)

// runCommand implements the 'fntrace run' command.
//
// This command instruments Go source files, builds them to a temporary
// binary, and immediately executes it, forwarding stdio and the exit code.
// It acts as a drop-in replacement for 'go run'.
func runCommand(args []string) {
	config, programArgs, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	conf := loadToolConfig(config.workDir)
	if conf.Verbose {
		config.verbose = true
	}

	tempBinary, err := buildTemporary(config, conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = os.Remove(tempBinary) }() // best effort

	os.Exit(executeBinary(tempBinary, programArgs, conf.Output))
}

// parseRunArgs separates source files from program arguments.
//
// The accepted form mirrors 'go run': build flags, then .go files, then
// everything after the first non-.go argument belongs to the program.
func parseRunArgs(args []string) (*buildConfig, []string, error) {
	if len(args) == 0 {
		return nil, nil, fmt.Errorf("no source files specified")
	}

	var sourceFiles, programArgs, buildFlags []string
	sawGoFile := false
	inProgramArgs := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if inProgramArgs {
			programArgs = append(programArgs, arg)
			continue
		}
		if filepath.Ext(arg) == ".go" {
			sourceFiles = append(sourceFiles, arg)
			sawGoFile = true
			continue
		}
		if sawGoFile {
			inProgramArgs = true
			programArgs = append(programArgs, arg)
			continue
		}

		// Before any .go file: a build flag, possibly with a value.
		buildFlags = append(buildFlags, arg)
		if needsValue(arg) && i+1 < len(args) {
			i++
			buildFlags = append(buildFlags, args[i])
		}
	}

	if len(sourceFiles) == 0 {
		return nil, nil, fmt.Errorf("no Go source files specified")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	config := &buildConfig{
		sourceFiles: sourceFiles,
		buildFlags:  buildFlags,
		workDir:     cwd,
	}
	return config, programArgs, nil
}

// buildTemporary builds the instrumented code to a temporary binary and
// returns its path.
func buildTemporary(config *buildConfig, conf *toolConfig) (string, error) {
	tempBinary, err := os.CreateTemp("", "fntrace-run-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempBinary.Name()
	_ = tempBinary.Close()
	config.outputFile = tempPath

	workspace, err := createWorkspace()
	if err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("failed to create workspace: %w", err)
	}
	defer workspace.cleanup()

	if err := instrumentSources(config, conf, workspace); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("failed to instrument sources: %w", err)
	}
	if err := workspace.setupRuntimeLinking(config.sourceDir()); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("failed to set up runtime: %w", err)
	}
	if err := workspace.build(config); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("build failed: %w", err)
	}
	return tempPath, nil
}

// executeBinary runs the instrumented binary, forwarding stdio, and returns
// its exit code. A configured trace destination is passed down through the
// runtime's environment variable.
func executeBinary(binaryPath string, args []string, traceOutput string) int {
	cmd := exec.Command(binaryPath, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if traceOutput != "" {
		cmd.Env = append(cmd.Env, trace.OutEnv+"="+traceOutput)
	}

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "Error executing binary: %v\n", err)
		return 1
	}
	return 0
}
