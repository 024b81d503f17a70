package model

import (
	"fmt"
	"sort"
	"strings"

	appErr "github.com/xxxsen/livinglib/internal/pkg/errors"
)

type StorageProvider string

const (
	ProviderLocal  StorageProvider = "local"
	ProviderRemote StorageProvider = "remote"
)

// providerAliases maps every value accepted in file_asset.storage_provider to
// the provider that serves it. Older rows still carry the names of the
// original backends.
var providerAliases = map[string]StorageProvider{
	"local":    ProviderLocal,
	"onedrive": ProviderLocal,
	"remote":   ProviderRemote,
	"supabase": ProviderRemote,
	"s3":       ProviderRemote,
}

func ParseStorageProvider(value string) (StorageProvider, error) {
	p, ok := providerAliases[strings.ToLower(strings.TrimSpace(value))]
	if !ok {
		return "", fmt.Errorf("unknown storage provider %q: %w", value, appErr.ErrInvalid)
	}
	return p, nil
}

// StoredNames returns the column values that resolve to p.
func (p StorageProvider) StoredNames() []string {
	names := make([]string, 0, 2)
	for name, provider := range providerAliases {
		if provider == p {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

type FileAsset struct {
	FileID          int64  `json:"file_id"`
	MaterialID      int64  `json:"material_id"`
	StorageProvider string `json:"storage_provider"`
	StoragePath     string `json:"storage_path"`
	StorageBucket   string `json:"storage_bucket,omitempty"`
	IsPrimary       bool   `json:"is_primary"`
	IsAccessible    bool   `json:"is_accessible"`
	Pages           int    `json:"pages,omitempty"`
}

// Location is where the bytes of a file asset live. The set of
// implementations is closed: LocalLocation and RemoteLocation.
type Location interface {
	Provider() StorageProvider
	isLocation()
}

type LocalLocation struct {
	Path string
}

func (LocalLocation) Provider() StorageProvider { return ProviderLocal }
func (LocalLocation) isLocation()               {}

type RemoteLocation struct {
	Bucket string
	Key    string
}

func (RemoteLocation) Provider() StorageProvider { return ProviderRemote }
func (RemoteLocation) isLocation()               {}

// Location validates the storage columns and returns the typed location.
// A remote asset without a bucket is rejected here so nothing tries to
// download it.
func (a *FileAsset) Location() (Location, error) {
	provider, err := ParseStorageProvider(a.StorageProvider)
	if err != nil {
		return nil, err
	}
	path := strings.TrimSpace(a.StoragePath)
	if path == "" {
		return nil, fmt.Errorf("file %d has empty storage_path: %w", a.FileID, appErr.ErrInvalid)
	}
	switch provider {
	case ProviderLocal:
		return LocalLocation{Path: path}, nil
	case ProviderRemote:
		bucket := strings.TrimSpace(a.StorageBucket)
		if bucket == "" {
			return nil, fmt.Errorf("remote file %d has no storage_bucket: %w", a.FileID, appErr.ErrInvalid)
		}
		return RemoteLocation{Bucket: bucket, Key: path}, nil
	default:
		return nil, fmt.Errorf("unhandled storage provider %q: %w", provider, appErr.ErrInvalid)
	}
}
