package pdf

import "context"

// Document is an opened PDF. Pages are numbered from 1.
type Document interface {
	PageCount() int
	PageText(ctx context.Context, page int) (string, error)
	RenderPNG(ctx context.Context, page int, dpi int) ([]byte, error)
	Close() error
}

type Opener interface {
	OpenFile(ctx context.Context, path string) (Document, error)
	OpenBytes(ctx context.Context, data []byte) (Document, error)
}
