package pdf

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	appErr "github.com/xxxsen/livinglib/internal/pkg/errors"
)

type PopplerOptions struct {
	WorkDir string
	// Workers bounds the poppler processes running at once.
	Workers int
	Timeout time.Duration
}

// Poppler opens documents with the poppler command line tools
// (pdfinfo, pdftotext, pdftoppm).
type Poppler struct {
	workDir string
	timeout time.Duration
	sem     *semaphore.Weighted

	pdfinfoPath   string
	pdftotextPath string
	pdftoppmPath  string
}

func NewPoppler(opts PopplerOptions) *Poppler {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}
	return &Poppler{
		workDir:       opts.WorkDir,
		timeout:       opts.Timeout,
		sem:           semaphore.NewWeighted(int64(opts.Workers)),
		pdfinfoPath:   "pdfinfo",
		pdftotextPath: "pdftotext",
		pdftoppmPath:  "pdftoppm",
	}
}

// AssertReady checks the poppler binaries are on PATH.
func (p *Poppler) AssertReady() error {
	for _, bin := range []string{p.pdfinfoPath, p.pdftotextPath, p.pdftoppmPath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("missing required binary %q in PATH: %w", bin, err)
		}
	}
	return os.MkdirAll(p.workDir, 0o755)
}

func (p *Poppler) OpenFile(ctx context.Context, path string) (Document, error) {
	return p.open(ctx, path, nil)
}

// OpenBytes spills data to a temp file owned by the returned document.
func (p *Poppler) OpenBytes(ctx context.Context, data []byte) (Document, error) {
	if err := os.MkdirAll(p.workDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir work dir: %w", err)
	}
	f, err := os.CreateTemp(p.workDir, "livinglib-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp pdf: %w", err)
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return nil, fmt.Errorf("close temp pdf: %w", err)
	}
	return p.open(ctx, path, cleanup)
}

func (p *Poppler) open(ctx context.Context, path string, cleanup func()) (Document, error) {
	out, err := p.run(ctx, p.pdfinfoPath, path)
	if err == nil {
		var pages int
		if pages, err = parsePageCount(out); err == nil {
			return &popplerDoc{p: p, path: path, pages: pages, cleanup: cleanup}, nil
		}
	}
	if cleanup != nil {
		cleanup()
	}
	return nil, toolError(ctx, "open pdf", err)
}

// toolError marks a poppler failure as upstream unless the caller gave up.
func toolError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, appErr.ErrUpstream, err)
}

// run executes a poppler tool under the worker budget and returns stdout.
func (p *Poppler) run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(callCtx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if s := strings.TrimSpace(stderr.String()); s != "" {
			return nil, fmt.Errorf("%s: %w; stderr=%s", bin, err, s)
		}
		return nil, fmt.Errorf("%s: %w", bin, err)
	}
	logutil.GetLogger(ctx).Debug("poppler command finished",
		zap.String("bin", bin), zap.Duration("cost", time.Since(start)))
	return stdout.Bytes(), nil
}

type popplerDoc struct {
	p       *Poppler
	path    string
	pages   int
	cleanup func()

	textOnce sync.Once
	texts    []string
	textErr  error

	closeOnce sync.Once
}

func (d *popplerDoc) PageCount() int {
	return d.pages
}

// PageText extracts the whole document on first use and serves pages from
// that result.
func (d *popplerDoc) PageText(ctx context.Context, page int) (string, error) {
	if err := d.checkPage(page); err != nil {
		return "", err
	}
	d.textOnce.Do(func() {
		var out []byte
		out, d.textErr = d.p.run(ctx, d.p.pdftotextPath, "-enc", "UTF-8", "-q", d.path, "-")
		if d.textErr == nil {
			d.texts = splitPages(string(out), d.pages)
		}
	})
	if d.textErr != nil {
		return "", toolError(ctx, "extract text", d.textErr)
	}
	return d.texts[page-1], nil
}

func (d *popplerDoc) RenderPNG(ctx context.Context, page int, dpi int) ([]byte, error) {
	if err := d.checkPage(page); err != nil {
		return nil, err
	}
	tmpDir, err := os.MkdirTemp(d.p.workDir, "render-*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	pageArg := strconv.Itoa(page)
	if _, err := d.p.run(ctx, d.p.pdftoppmPath,
		"-r", strconv.Itoa(dpi),
		"-png",
		"-f", pageArg,
		"-l", pageArg,
		"-singlefile",
		d.path, prefix,
	); err != nil {
		return nil, toolError(ctx, fmt.Sprintf("render page %d", page), err)
	}
	data, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("read rendered page %d: %w: %w", page, appErr.ErrUpstream, err)
	}
	return data, nil
}

func (d *popplerDoc) Close() error {
	d.closeOnce.Do(func() {
		if d.cleanup != nil {
			d.cleanup()
		}
	})
	return nil
}

func (d *popplerDoc) checkPage(page int) error {
	if page < 1 || page > d.pages {
		return fmt.Errorf("page %d out of range [1,%d]: %w", page, d.pages, appErr.ErrNotFound)
	}
	return nil
}

func parsePageCount(out []byte) (int, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		n, err := strconv.Atoi(fields[len(fields)-1])
		if err != nil || n < 0 {
			continue
		}
		return n, nil
	}
	return 0, fmt.Errorf("pdfinfo output missing Pages field")
}

// splitPages splits pdftotext output on form feeds into exactly n pages.
func splitPages(text string, n int) []string {
	parts := strings.Split(text, "\f")
	pages := make([]string, n)
	for i := 0; i < n && i < len(parts); i++ {
		pages[i] = parts[i]
	}
	return pages
}
