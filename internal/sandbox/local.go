package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const metaFile = "sandbox.json"

// LocalConfig configures a LocalProvider.
type LocalConfig struct {
	Root      string        // sandbox directories
	Templates string        // template source directories, one per template name
	Workdir   string        // absolute in-sandbox home, default /home/user
	Shell     string        // default /bin/sh
	Domain    string        // host suffix for Host()
	Timeout   time.Duration // lifetime applied at creation
}

// LocalProvider runs sandboxes as directories on the local machine.
// Layout: <root>/<id>/sandbox.json and <root>/<id>/home.
type LocalProvider struct {
	cfg LocalConfig
	now func() time.Time

	mu sync.Mutex // guards metadata rewrites
}

type metadata struct {
	ID       string    `json:"id"`
	Template string    `json:"template"`
	Created  time.Time `json:"created"`
	Expires  time.Time `json:"expires"`
}

// NewLocalProvider creates a provider rooted at cfg.Root.
func NewLocalProvider(cfg LocalConfig) (*LocalProvider, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("sandbox root is required")
	}
	if cfg.Workdir == "" {
		cfg.Workdir = "/home/user"
	}
	if !path.IsAbs(cfg.Workdir) {
		return nil, fmt.Errorf("sandbox workdir must be absolute: %s", cfg.Workdir)
	}
	cfg.Workdir = path.Clean(cfg.Workdir)
	if cfg.Shell == "" {
		cfg.Shell = "/bin/sh"
	}
	if cfg.Domain == "" {
		cfg.Domain = "sandbox.localhost"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &LocalProvider{cfg: cfg, now: time.Now}, nil
}

// Create implements Provider. The sandbox is assembled in a hidden staging
// directory and renamed into place, so a failed create leaves nothing behind.
func (p *LocalProvider) Create(ctx context.Context, template string) (Environment, error) {
	fail := func(err error) (Environment, error) {
		return nil, &ProvisionError{Template: template, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if template == "" || strings.ContainsAny(template, `/\`) || template == "." || template == ".." {
		return fail(fmt.Errorf("invalid template name"))
	}
	if err := os.MkdirAll(p.cfg.Root, 0755); err != nil {
		return fail(err)
	}

	id := uuid.NewString()
	staging := filepath.Join(p.cfg.Root, ".creating-"+id)
	if err := os.MkdirAll(filepath.Join(staging, "home"), 0755); err != nil {
		return fail(err)
	}
	ok := false
	defer func() {
		if !ok {
			os.RemoveAll(staging)
		}
	}()

	if p.cfg.Templates != "" {
		src := filepath.Join(p.cfg.Templates, template)
		if info, err := os.Stat(src); err == nil && info.IsDir() {
			if err := copyTree(src, filepath.Join(staging, "home")); err != nil {
				return fail(fmt.Errorf("failed to seed template: %w", err))
			}
		}
	}

	now := p.now()
	m := &metadata{ID: id, Template: template, Created: now, Expires: now.Add(p.cfg.Timeout)}
	if err := writeMeta(staging, m); err != nil {
		return fail(err)
	}
	if err := os.Rename(staging, p.dir(id)); err != nil {
		return fail(err)
	}
	ok = true

	return &localEnv{p: p, id: id}, nil
}

// Connect implements Provider.
func (p *LocalProvider) Connect(ctx context.Context, id string) (Environment, error) {
	if _, err := p.live(id); err != nil {
		return nil, err
	}
	return &localEnv{p: p, id: id}, nil
}

// SetTimeout implements Provider.
func (p *LocalProvider) SetTimeout(ctx context.Context, id string, d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, err := p.live(id)
	if err != nil {
		return err
	}
	m.Expires = p.now().Add(d)
	return writeMeta(p.dir(id), m)
}

// Kill implements Provider.
func (p *LocalProvider) Kill(ctx context.Context, id string) error {
	if _, err := p.load(id); err != nil {
		return err
	}
	return os.RemoveAll(p.dir(id))
}

// Reap removes expired sandboxes and returns how many were removed.
func (p *LocalProvider) Reap(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(p.cfg.Root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		m, err := p.load(e.Name())
		if err != nil || p.now().Before(m.Expires) {
			continue
		}
		if err := os.RemoveAll(p.dir(m.ID)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (p *LocalProvider) dir(id string) string {
	return filepath.Join(p.cfg.Root, id)
}

func (p *LocalProvider) load(id string) (*metadata, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	data, err := os.ReadFile(filepath.Join(p.dir(id), metaFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	var m metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("corrupt sandbox metadata for %s: %w", id, err)
	}
	return &m, nil
}

// live loads metadata and rejects expired sandboxes.
func (p *LocalProvider) live(id string) (*metadata, error) {
	m, err := p.load(id)
	if err != nil {
		return nil, err
	}
	if !p.now().Before(m.Expires) {
		return nil, fmt.Errorf("%w: %s", ErrExpired, id)
	}
	return m, nil
}

func writeMeta(dir string, m *metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, "."+metaFile+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, metaFile))
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		in, err := os.Open(p)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	})
}

// localEnv is an Environment backed by a LocalProvider directory.
type localEnv struct {
	p  *LocalProvider
	id string
}

func (e *localEnv) ID() string {
	return e.id
}

func (e *localEnv) home() string {
	return filepath.Join(e.p.dir(e.id), "home")
}

func (e *localEnv) Host(port int) string {
	return fmt.Sprintf("%d-%s.%s", port, e.id, e.p.cfg.Domain)
}

// Run executes command with the sandbox home as working directory. The
// command is killed when the sandbox expires.
func (e *localEnv) Run(ctx context.Context, command string, opts RunOptions) (*CommandResult, error) {
	m, err := e.p.live(e.id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithDeadline(ctx, m.Expires)
	defer cancel()

	var stdout, stderr strings.Builder
	cmd := exec.CommandContext(ctx, e.p.cfg.Shell, "-c", command)
	cmd.Dir = e.home()
	cmd.Env = append(os.Environ(), "HOME="+e.home())
	cmd.Stdout = &streamWriter{buf: &stdout, fn: opts.OnStdout}
	cmd.Stderr = &streamWriter{buf: &stderr, fn: opts.OnStderr}

	err = cmd.Run()
	result := &CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !e.p.now().Before(m.Expires) {
			return result, fmt.Errorf("%w: %s", ErrExpired, e.id)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, &CommandExitError{Result: result}
		}
		return result, fmt.Errorf("failed to execute command: %w", err)
	}
	return result, nil
}

func (e *localEnv) WriteFile(ctx context.Context, p, content string) error {
	if _, err := e.p.live(e.id); err != nil {
		return err
	}
	full, err := e.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(full, []byte(content), 0644)
}

func (e *localEnv) ReadFile(ctx context.Context, p string) (string, error) {
	if _, err := e.p.live(e.id); err != nil {
		return "", err
	}
	full, err := e.resolve(p)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// resolve maps an in-sandbox path to a host path. Relative paths are taken
// from the workdir; absolute paths must lie under it.
func (e *localEnv) resolve(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("path is required")
	}
	rel := p
	if path.IsAbs(p) {
		clean := path.Clean(p)
		if clean != e.p.cfg.Workdir && !strings.HasPrefix(clean, e.p.cfg.Workdir+"/") {
			return "", fmt.Errorf("path outside sandbox workdir %s: %s", e.p.cfg.Workdir, p)
		}
		rel = strings.TrimPrefix(strings.TrimPrefix(clean, e.p.cfg.Workdir), "/")
	}

	home := e.home()
	full := filepath.Join(home, filepath.FromSlash(rel))
	r, err := filepath.Rel(home, full)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes sandbox: %s", p)
	}

	// Existing targets are checked again after resolving symlinks.
	if _, err := os.Lstat(full); err == nil {
		resolved, err := filepath.EvalSymlinks(full)
		if err != nil {
			return "", fmt.Errorf("failed to resolve symlinks: %w", err)
		}
		realHome, err := filepath.EvalSymlinks(home)
		if err != nil {
			return "", err
		}
		r, err := filepath.Rel(realHome, resolved)
		if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("symlink escapes sandbox: %s", p)
		}
	}
	return full, nil
}

// streamWriter accumulates output and forwards each chunk to fn.
type streamWriter struct {
	buf *strings.Builder
	fn  func(string)
}

func (w *streamWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	if w.fn != nil {
		w.fn(string(b))
	}
	return len(b), nil
}
