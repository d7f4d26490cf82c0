// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package builder invokes the mod toolchain build and locates the
// resulting artifact.
package builder

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/modforge/modforge/internal/log"
	"github.com/modforge/modforge/pkg/errors"
)

const (
	// DefaultGrace is how long a cancelled build gets to exit after the
	// interrupt before it is killed.
	DefaultGrace = 10 * time.Second

	// logTailLines bounds how much build output is kept for diagnostics.
	logTailLines = 40
)

// Result describes a completed build.
type Result struct {
	// JarPath is the absolute path of the built mod jar.
	JarPath string

	// LogTail holds the last lines of build output.
	LogTail []string
}

// Builder runs the project build in a prepared workspace directory.
type Builder interface {
	Build(ctx context.Context, dir string) (*Result, error)
}

// Gradle runs `gradle build` in the workspace. On context cancellation the
// process receives an interrupt and is killed after the grace period if it
// has not exited.
type Gradle struct {
	// Command overrides the build invocation, default ["gradle", "build",
	// "--no-daemon"].
	Command []string

	// Grace is the interrupt-to-kill window, default DefaultGrace.
	Grace time.Duration

	Logger *slog.Logger
}

// Build implements Builder.
func (g *Gradle) Build(ctx context.Context, dir string) (*Result, error) {
	command := g.Command
	if len(command) == 0 {
		command = []string{"gradle", "build", "--no-daemon"}
	}
	grace := g.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = log.WithComponent(logger, "builder")

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = dir
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = grace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "attaching to build output")
	}
	cmd.Stderr = cmd.Stdout

	started := time.Now()
	logger.Info("starting build", slog.String("dir", dir), slog.Any("command", command))
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "starting build")
	}

	tail := make([]string, 0, logTailLines)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if len(tail) == logTailLines {
			copy(tail, tail[1:])
			tail = tail[:logTailLines-1]
		}
		tail = append(tail, line)
	}

	err = cmd.Wait()
	logger.Info("build finished",
		slog.String("dir", dir),
		log.Duration("duration", time.Since(started).Milliseconds()),
		slog.Bool("success", err == nil))
	if err != nil {
		if ctx.Err() != nil {
			return &Result{LogTail: tail}, ctx.Err()
		}
		return &Result{LogTail: tail}, errors.Wrap(err, "build failed")
	}

	jar, err := findJar(filepath.Join(dir, "build", "libs"))
	if err != nil {
		return &Result{LogTail: tail}, err
	}
	return &Result{JarPath: jar, LogTail: tail}, nil
}

// findJar returns the primary mod jar under the build output directory,
// skipping the -sources and -dev side jars.
func findJar(libs string) (string, error) {
	var jars []string
	err := filepath.WalkDir(libs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".jar" {
			return nil
		}
		base := strings.TrimSuffix(filepath.Base(path), ".jar")
		if strings.HasSuffix(base, "-sources") || strings.HasSuffix(base, "-dev") {
			return nil
		}
		jars = append(jars, path)
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "scanning build output")
	}
	if len(jars) == 0 {
		return "", errors.New(fmt.Sprintf("no jar produced under %s", libs))
	}
	if len(jars) > 1 {
		// Prefer the newest when the build leaves multiple candidates.
		newest := jars[0]
		var newestMod time.Time
		for _, jar := range jars {
			info, err := os.Stat(jar)
			if err != nil {
				continue
			}
			if info.ModTime().After(newestMod) {
				newest, newestMod = jar, info.ModTime()
			}
		}
		return newest, nil
	}
	return jars[0], nil
}
