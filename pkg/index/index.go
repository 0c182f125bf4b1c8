package index

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	DefaultBinary = "fast-mlst"

	dirMode = 0700
)

var ErrNoIndex = errors.New("index not built")

// Runner executes an external command with the given stdin and returns its stdout.
type Runner func(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error)

// ExecRunner runs the command as a subprocess. A non-zero exit is returned as
// an error carrying the command's stderr.
func ExecRunner(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("%s failed: %w", name, err)
		}
		return nil, fmt.Errorf("%s failed: %s: %w", name, msg, err)
	}

	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		slog.Debug("external tool stderr", "cmd", name, "stderr", msg)
	}

	return stdout.Bytes(), nil
}

// Index is a profile similarity index maintained by the external tool.
type Index struct {
	Binary string
	Path   string

	run Runner
}

type Option func(*Index)

// WithRunner replaces the subprocess runner.
func WithRunner(r Runner) Option {
	return func(x *Index) {
		x.run = r
	}
}

// New creates an index handle for the given tool binary.
func New(binary string, opts ...Option) *Index {
	if binary == "" {
		binary = DefaultBinary
	}
	x := &Index{
		Binary: binary,
		run:    ExecRunner,
	}
	for _, o := range opts {
		o(x)
	}
	return x
}

// Build indexes the profile file into a new uniquely named index in outDir.
func (x *Index) Build(ctx context.Context, profilesPath, outDir string) error {
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, dirMode); err != nil {
		return fmt.Errorf("creating index dir %s: %w", outDir, err)
	}

	f, err := os.Open(profilesPath)
	if err != nil {
		return fmt.Errorf("opening profiles %s: %w", profilesPath, err)
	}
	defer f.Close()

	path := filepath.Join(outDir, uuid.NewString())
	slog.Debug("building index", "bin", x.Binary, "path", path)

	if _, err := x.run(ctx, f, x.Binary, "-i", path, "-b"); err != nil {
		return fmt.Errorf("building index %s: %w", path, err)
	}

	x.Path = path
	return nil
}

// Query returns the IDs of the profiles closest to the given one, nearest first.
func (x *Index) Query(ctx context.Context, id, profile string, limit int) ([]string, error) {
	if x.Path == "" {
		return nil, ErrNoIndex
	}
	if limit < 1 {
		return nil, fmt.Errorf("invalid result bound: %d", limit)
	}

	in := strings.NewReader(id + "\t" + profile + "\n")
	out, err := x.run(ctx, in, x.Binary, "-i", x.Path, "-q", strconv.Itoa(limit))
	if err != nil {
		return nil, fmt.Errorf("querying index for %s: %w", id, err)
	}

	ids, err := ParseRanking(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("parsing index result for %s: %w", id, err)
	}
	return ids, nil
}

// Remove deletes the index files created by Build.
func (x *Index) Remove() error {
	if x.Path == "" {
		return nil
	}
	files, err := filepath.Glob(x.Path + "*")
	if err != nil {
		return fmt.Errorf("listing index files: %w", err)
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing index file %s: %w", f, err)
		}
	}
	x.Path = ""
	return nil
}
