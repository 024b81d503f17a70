package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/xxxsen/livinglib/internal/filestore"
	"github.com/xxxsen/livinglib/internal/model"
	"github.com/xxxsen/livinglib/internal/pdf"
	appErr "github.com/xxxsen/livinglib/internal/pkg/errors"
)

type LocalResolver interface {
	Resolve(storagePath string) (string, error)
}

// DocumentSource opens the PDF behind a file asset from whichever storage
// holds it. remote may be nil when no object store is configured.
type DocumentSource struct {
	local  LocalResolver
	remote filestore.ObjectStore
	opener pdf.Opener
}

func NewDocumentSource(local LocalResolver, remote filestore.ObjectStore, opener pdf.Opener) *DocumentSource {
	return &DocumentSource{local: local, remote: remote, opener: opener}
}

// Providers lists the storage_provider values this source can read.
func (s *DocumentSource) Providers() []string {
	names := model.ProviderLocal.StoredNames()
	if s.remote != nil {
		names = append(names, model.ProviderRemote.StoredNames()...)
	}
	sort.Strings(names)
	return names
}

func (s *DocumentSource) Open(ctx context.Context, asset *model.FileAsset) (pdf.Document, error) {
	loc, err := asset.Location()
	if err != nil {
		return nil, err
	}
	switch l := loc.(type) {
	case model.LocalLocation:
		path, err := s.local.Resolve(l.Path)
		if err != nil {
			return nil, err
		}
		return s.opener.OpenFile(ctx, path)
	case model.RemoteLocation:
		if s.remote == nil {
			return nil, fmt.Errorf("remote storage not configured: %w", appErr.ErrUnavailable)
		}
		data, err := s.remote.Download(ctx, l.Bucket, l.Key)
		if err != nil {
			return nil, err
		}
		return s.opener.OpenBytes(ctx, data)
	default:
		return nil, fmt.Errorf("unhandled location %T: %w", loc, appErr.ErrInvalid)
	}
}

func (s *DocumentSource) RemoteURL(ctx context.Context, loc model.RemoteLocation) (string, error) {
	if s.remote == nil {
		return "", fmt.Errorf("remote storage not configured: %w", appErr.ErrUnavailable)
	}
	return s.remote.URL(ctx, loc.Bucket, loc.Key)
}
