// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container detects a local container runtime and runs one-shot
// tool containers against host directories mounted as volumes.
package container

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Mount binds a host directory into the container.
type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

func (m Mount) flag() string {
	v := m.Source + ":" + m.Target
	if m.ReadOnly {
		v += ":ro"
	}
	return v
}

// RunSpec describes one container invocation.
type RunSpec struct {
	Image  string
	Mounts []Mount
	Args   []string

	// User is passed as --user (e.g. "1000:1000") so files written to
	// mounted directories belong to the caller. Empty keeps the image default.
	User string

	// Stdout and Stderr receive the container's output; nil discards it.
	Stdout io.Writer
	Stderr io.Writer
}

// Runtime runs tool containers.
type Runtime interface {
	// Name returns the runtime binary ("docker" or "podman").
	Name() string

	// ImageExists returns nil when image is present locally.
	ImageExists(ctx context.Context, image string) error

	// Run executes a container and waits for it to exit. Cancelling ctx
	// kills the runtime client process.
	Run(ctx context.Context, spec RunSpec) error
}

// commander abstracts process execution so tests can script responses.
type commander interface {
	LookPath(file string) (string, error)
	Check(ctx context.Context, name string, args ...string) error
	Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error
}

type osCommander struct{}

func (osCommander) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osCommander) Check(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func (osCommander) Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// flavor is a supported runtime CLI. Docker and Podman accept the same
// run flags and differ in how an image is checked.
type flavor struct {
	bin        string
	imageCheck []string
}

// flavors lists runtimes in order of preference.
var flavors = []flavor{
	{bin: "docker", imageCheck: []string{"image", "inspect"}},
	{bin: "podman", imageCheck: []string{"image", "exists"}},
}

type cliRuntime struct {
	flavor
	cmd commander
}

func (r *cliRuntime) Name() string { return r.bin }

// usable reports whether the binary is on PATH and its daemon answers.
func (r *cliRuntime) usable(ctx context.Context) bool {
	if _, err := r.cmd.LookPath(r.bin); err != nil {
		return false
	}
	return r.cmd.Check(ctx, r.bin, "info") == nil
}

func (r *cliRuntime) ImageExists(ctx context.Context, image string) error {
	args := append(append([]string{}, r.imageCheck...), image)
	if err := r.cmd.Check(ctx, r.bin, args...); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, r.bin, err)
	}
	return nil
}

func (r *cliRuntime) Run(ctx context.Context, spec RunSpec) error {
	if err := r.cmd.Run(ctx, r.bin, runArgs(spec), spec.Stdout, spec.Stderr); err != nil {
		return fmt.Errorf("running %s container %s: %w", r.bin, spec.Image, err)
	}
	return nil
}

// runArgs builds the "run" argument list: options and volumes first,
// then the image, then the tool's own arguments.
func runArgs(spec RunSpec) []string {
	args := []string{"run", "--rm"}
	if spec.User != "" {
		args = append(args, "--user", spec.User)
	}
	for _, m := range spec.Mounts {
		args = append(args, "-v", m.flag())
	}
	args = append(args, spec.Image)
	return append(args, spec.Args...)
}

// DetectRuntime returns the first usable runtime, preferring docker.
func DetectRuntime(ctx context.Context) (Runtime, error) {
	return detect(ctx, osCommander{})
}

func detect(ctx context.Context, cmd commander) (Runtime, error) {
	names := make([]string, 0, len(flavors))
	for _, f := range flavors {
		rt := &cliRuntime{flavor: f, cmd: cmd}
		if rt.usable(ctx) {
			return rt, nil
		}
		names = append(names, f.bin)
	}
	return nil, fmt.Errorf("no container runtime available: none of %s found or operational",
		strings.Join(names, ", "))
}
