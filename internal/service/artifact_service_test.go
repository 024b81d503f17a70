package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/livinglib/internal/model"
	appErr "github.com/xxxsen/livinglib/internal/pkg/errors"
)

type fakeMaterials struct {
	items map[int64]*model.MaterialAsset
}

func (m *fakeMaterials) GetPrimaryAsset(ctx context.Context, materialID int64) (*model.MaterialAsset, error) {
	item, ok := m.items[materialID]
	if !ok {
		return nil, fmt.Errorf("material %d: %w", materialID, appErr.ErrNotFound)
	}
	return item, nil
}

type artifactFixture struct {
	materials *fakeMaterials
	opener    *fakeOpener
	resolver  *fakeResolver
	remote    *fakeObjectStore
}

func newArtifactFixture() *artifactFixture {
	return &artifactFixture{
		materials: &fakeMaterials{items: map[int64]*model.MaterialAsset{}},
		opener:    &fakeOpener{docs: map[string]*fakeDoc{}},
		resolver:  &fakeResolver{files: map[string]bool{}},
		remote:    &fakeObjectStore{objects: map[string]string{}},
	}
}

func (f *artifactFixture) service(withRemote bool) *ArtifactService {
	source := NewDocumentSource(f.resolver, nil, f.opener)
	if withRemote {
		source = NewDocumentSource(f.resolver, f.remote, f.opener)
	}
	return NewArtifactService(f.materials, source, 150, 2)
}

func (f *artifactFixture) add(id int64, asset model.FileAsset) {
	asset.MaterialID = id
	asset.IsPrimary = true
	f.materials.items[id] = &model.MaterialAsset{MaterialID: id, Title: fmt.Sprintf("Book %d", id), Asset: asset}
}

func TestRenderPageLocal(t *testing.T) {
	f := newArtifactFixture()
	f.add(1, model.FileAsset{FileID: 1, StorageProvider: "onedrive", StoragePath: "data_pdfs/a.pdf", IsAccessible: true})
	f.resolver.files["data_pdfs/a.pdf"] = true
	doc := &fakeDoc{pages: []string{"one", "two", "three"}}
	f.opener.docs["/base/data_pdfs/a.pdf"] = doc
	svc := f.service(false)

	data, err := svc.RenderPage(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Equal(t, []byte("png-2"), data)
	require.Equal(t, 150, doc.dpi)
	require.Equal(t, 1, doc.closed)

	for _, page := range []int{0, 4} {
		_, err = svc.RenderPage(context.Background(), 1, page)
		require.ErrorIs(t, err, appErr.ErrNotFound)
	}
	require.Equal(t, 3, doc.closed)
	require.Equal(t, []int{2}, doc.rendered)
}

func TestRenderPageErrors(t *testing.T) {
	f := newArtifactFixture()
	f.add(2, model.FileAsset{FileID: 2, StorageProvider: "local", StoragePath: "b.pdf", IsAccessible: false})
	f.add(3, model.FileAsset{FileID: 3, StorageProvider: "local", StoragePath: "gone.pdf", IsAccessible: true})
	f.add(4, model.FileAsset{FileID: 4, StorageProvider: "supabase", StoragePath: "d.pdf", StorageBucket: "lib", IsAccessible: true})
	f.add(5, model.FileAsset{FileID: 5, StorageProvider: "s3", StoragePath: "e.pdf", IsAccessible: true})
	f.add(6, model.FileAsset{FileID: 6, StorageProvider: "s3", StoragePath: "missing.pdf", StorageBucket: "lib", IsAccessible: true})

	tests := []struct {
		name       string
		materialID int64
		withRemote bool
		want       error
	}{
		{name: "unknown material", materialID: 99, want: appErr.ErrNotFound},
		{name: "not accessible", materialID: 2, want: appErr.ErrForbidden},
		{name: "local file missing", materialID: 3, want: appErr.ErrNotFound},
		{name: "remote not configured", materialID: 4, want: appErr.ErrUnavailable},
		{name: "remote without bucket", materialID: 5, withRemote: true, want: appErr.ErrInvalid},
		{name: "remote object missing", materialID: 6, withRemote: true, want: appErr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.remote.downloads = 0
			_, err := f.service(tt.withRemote).RenderPage(context.Background(), tt.materialID, 1)
			require.ErrorIs(t, err, tt.want)
			if tt.materialID == 5 {
				require.Zero(t, f.remote.downloads)
			}
		})
	}
}

func TestRenderPageFailureIsUpstream(t *testing.T) {
	f := newArtifactFixture()
	f.add(1, model.FileAsset{FileID: 1, StorageProvider: "local", StoragePath: "a.pdf", IsAccessible: true})
	f.add(2, model.FileAsset{FileID: 2, StorageProvider: "local", StoragePath: "corrupt.pdf", IsAccessible: true})
	f.resolver.files["a.pdf"] = true
	f.resolver.files["corrupt.pdf"] = true
	doc := &fakeDoc{pages: []string{"one"}, renderErr: fmt.Errorf("pdftoppm: exit status 1")}
	f.opener.docs["/base/a.pdf"] = doc
	svc := f.service(false)

	_, err := svc.RenderPage(context.Background(), 1, 1)
	require.ErrorIs(t, err, appErr.ErrUpstream)
	require.NotErrorIs(t, err, appErr.ErrInvalid)
	require.Equal(t, 1, doc.closed)

	_, err = svc.RenderPage(context.Background(), 2, 1)
	require.ErrorIs(t, err, appErr.ErrUpstream)
}

func TestRenderPageRemote(t *testing.T) {
	f := newArtifactFixture()
	f.add(4, model.FileAsset{FileID: 4, StorageProvider: "supabase", StoragePath: "d.pdf", StorageBucket: "lib", IsAccessible: true})
	f.remote.objects["lib/d.pdf"] = "d"
	doc := &fakeDoc{pages: []string{"one"}}
	f.opener.docs["bytes:d"] = doc

	data, err := f.service(true).RenderPage(context.Background(), 4, 1)
	require.NoError(t, err)
	require.Equal(t, []byte("png-1"), data)
	require.Equal(t, 1, doc.closed)
}

func TestInfo(t *testing.T) {
	f := newArtifactFixture()
	f.add(1, model.FileAsset{FileID: 1, StorageProvider: "local", StoragePath: "a.pdf", IsAccessible: true, Pages: 12})
	f.add(4, model.FileAsset{FileID: 4, StorageProvider: "supabase", StoragePath: "d.pdf", StorageBucket: "lib", IsAccessible: true})
	f.add(2, model.FileAsset{FileID: 2, StorageProvider: "local", StoragePath: "b.pdf", IsAccessible: false})
	svc := f.service(true)

	info, err := svc.Info(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, &model.MaterialInfo{MaterialID: 1, Title: "Book 1", Kind: model.AccessKindLocal, Pages: 12}, info)

	info, err = svc.Info(context.Background(), 4)
	require.NoError(t, err)
	require.Equal(t, model.AccessKindRemote, info.Kind)
	require.Equal(t, "https://cdn.example.com/lib/d.pdf", info.URL)

	_, err = svc.Info(context.Background(), 2)
	require.ErrorIs(t, err, appErr.ErrForbidden)

	_, err = f.service(false).Info(context.Background(), 4)
	require.ErrorIs(t, err, appErr.ErrUnavailable)
}
