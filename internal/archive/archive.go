// Package archive copies golden snapshots to remote object storage.
package archive

import (
	"context"
	"os"

	opserrors "github.com/yairfalse/ilmari/internal/errors"
	"github.com/yairfalse/ilmari/internal/logger"
	"github.com/yairfalse/ilmari/internal/storage"
	"github.com/yairfalse/ilmari/pkg/types"
)

// Upload is one archived snapshot
type Upload struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
	Size int64  `json:"size" yaml:"size"`
}

// Archiver uploads snapshots from a store
type Archiver struct {
	Store    storage.Storage
	Uploader Uploader
	Location Location
	Logger   logger.Logger
	// Auth suggests credential fixes when an upload fails
	Auth *AuthHelper
}

// Select returns the snapshots to archive for prefix: only the newest one
// when latestOnly is set, otherwise every match. An empty prefix with
// latestOnly unset selects the whole store.
func (a *Archiver) Select(prefix string, latestOnly bool) ([]types.SnapshotInfo, error) {
	if latestOnly {
		info, err := a.Store.Latest(prefix)
		if err != nil {
			return nil, err
		}
		return []types.SnapshotInfo{*info}, nil
	}

	infos, err := a.Store.List(prefix)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, opserrors.SnapshotNotFound(prefix)
	}
	return infos, nil
}

// Archive uploads infos in order and stops at the first failure.
func (a *Archiver) Archive(ctx context.Context, infos []types.SnapshotInfo) ([]Upload, error) {
	log := a.Logger
	if log == nil {
		log = logger.Nop()
	}

	uploads := make([]Upload, 0, len(infos))
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return uploads, err
		}

		data, err := os.ReadFile(a.Store.Path(info.Name))
		if err != nil {
			return uploads, opserrors.StoreUnavailable(a.Store.Path(info.Name), err)
		}

		key := a.Location.Key(info.Name)
		if err := a.Uploader.Upload(ctx, key, data); err != nil {
			auth := a.Auth
			if auth == nil {
				auth = NewAuthHelper()
			}
			return uploads, opserrors.StoreUnavailable(a.Location.URL(key), err).
				WithSolutions(auth.Solutions(a.Location)...)
		}

		up := Upload{Name: info.Name, URL: a.Location.URL(key), Size: int64(len(data))}
		log.WithField("url", up.URL).Info("snapshot archived")
		uploads = append(uploads, up)
	}
	return uploads, nil
}
