package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xxxsen/livinglib/internal/model"
	"github.com/xxxsen/livinglib/internal/pdf"
	appErr "github.com/xxxsen/livinglib/internal/pkg/errors"
)

type fakeDoc struct {
	pages     []string
	textErr   map[int]error
	rendered  []int
	dpi       int
	closed    int
	renderErr error
}

func (d *fakeDoc) PageCount() int { return len(d.pages) }

func (d *fakeDoc) PageText(ctx context.Context, page int) (string, error) {
	if err := d.textErr[page]; err != nil {
		return "", err
	}
	return d.pages[page-1], nil
}

func (d *fakeDoc) RenderPNG(ctx context.Context, page int, dpi int) ([]byte, error) {
	d.rendered = append(d.rendered, page)
	d.dpi = dpi
	if d.renderErr != nil {
		return nil, d.renderErr
	}
	return []byte(fmt.Sprintf("png-%d", page)), nil
}

func (d *fakeDoc) Close() error {
	d.closed++
	return nil
}

// fakeOpener serves documents keyed by local path or by remote bytes.
type fakeOpener struct {
	docs map[string]*fakeDoc
}

func (o *fakeOpener) OpenFile(ctx context.Context, path string) (pdf.Document, error) {
	doc, ok := o.docs[path]
	if !ok {
		return nil, fmt.Errorf("open pdf %s: %w", path, appErr.ErrUpstream)
	}
	return doc, nil
}

func (o *fakeOpener) OpenBytes(ctx context.Context, data []byte) (pdf.Document, error) {
	return o.OpenFile(ctx, "bytes:"+string(data))
}

type fakeResolver struct {
	files map[string]bool
}

func (r *fakeResolver) Resolve(storagePath string) (string, error) {
	if !r.files[storagePath] {
		return "", fmt.Errorf("file %q: %w", storagePath, appErr.ErrNotFound)
	}
	return "/base/" + storagePath, nil
}

type fakeObjectStore struct {
	objects   map[string]string
	downloads int
}

func (s *fakeObjectStore) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	s.downloads++
	data, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("object %s/%s: %w", bucket, key, appErr.ErrNotFound)
	}
	return []byte(data), nil
}

func (s *fakeObjectStore) URL(ctx context.Context, bucket, key string) (string, error) {
	return "https://cdn.example.com/" + bucket + "/" + key, nil
}

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
	// failAfter makes every call after the first failAfter calls fail.
	failAfter int
}

func (e *fakeEmbedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil && e.calls > e.failAfter {
		return nil, e.err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, []float32{float32(len(text)), 1})
	}
	return out, nil
}

func (e *fakeEmbedder) ModelName() string { return "fake" }

type insertCall struct {
	fileID int64
	chunks []model.PendingChunk
	claim  bool
}

type fakeChunkWriter struct {
	calls   []insertCall
	failOn  map[int]error
	claimed map[int64]bool
}

func (w *fakeChunkWriter) InsertBatch(ctx context.Context, fileID int64, chunks []model.PendingChunk, claim bool) (int, error) {
	idx := len(w.calls)
	w.calls = append(w.calls, insertCall{fileID: fileID, chunks: append([]model.PendingChunk(nil), chunks...), claim: claim})
	if err := w.failOn[idx]; err != nil {
		return 0, err
	}
	if claim && w.claimed[fileID] {
		return 0, fmt.Errorf("file asset %d: %w", fileID, appErr.ErrAlreadyProcessed)
	}
	return len(chunks), nil
}

func (w *fakeChunkWriter) byFile(fileID int64) []insertCall {
	var out []insertCall
	for _, c := range w.calls {
		if c.fileID == fileID {
			out = append(out, c)
		}
	}
	return out
}

type fakeAssetStore struct {
	assets        []model.FileAsset
	seenProviders []string
}

func (s *fakeAssetStore) ListUnprocessed(ctx context.Context, providers []string) ([]model.FileAsset, error) {
	s.seenProviders = providers
	allowed := make(map[string]bool, len(providers))
	for _, p := range providers {
		allowed[p] = true
	}
	var out []model.FileAsset
	for _, a := range s.assets {
		if allowed[strings.ToLower(a.StorageProvider)] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeAssetStore) GetByID(ctx context.Context, fileID int64) (*model.FileAsset, error) {
	for i := range s.assets {
		if s.assets[i].FileID == fileID {
			return &s.assets[i], nil
		}
	}
	return nil, fmt.Errorf("file asset %d: %w", fileID, appErr.ErrNotFound)
}

func pageText(topic string, sentences int) string {
	var sb strings.Builder
	for i := 0; i < sentences; i++ {
		fmt.Fprintf(&sb, "The %s note number %02d covers practical detail. ", topic, i)
	}
	return sb.String()
}
