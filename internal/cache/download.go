package cache

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"github.com/google/uuid"

	"github.com/virtual-shiksha/shiksha/internal/db"
	"github.com/virtual-shiksha/shiksha/internal/log"
	"github.com/virtual-shiksha/shiksha/internal/models"
	"github.com/virtual-shiksha/shiksha/pkg/version"
)

// Download is the explicit user action that saves a file for offline use.
// The response goes into the media partition and a descriptor into the
// downloads partition, looked up by filename.
func (r *Router) Download(ctx context.Context, rawURL string) (models.Download, error) {
	ctx, span := r.tracer.Start(ctx, "cache.Download")
	defer span.End()

	target, err := r.origin.Parse(rawURL)
	if err != nil {
		return models.Download{}, fmt.Errorf("parse %q: %w", rawURL, err)
	}
	if !SameOrigin(r.origin, target) {
		return models.Download{}, fmt.Errorf("download %s: only files from %s can be saved", target, r.origin)
	}
	key := cacheKey(target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key, nil)
	if err != nil {
		return models.Download{}, err
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := r.fetch(ctx, req)
	if err != nil {
		return models.Download{}, fmt.Errorf("download %s: %w", key, err)
	}
	if resp.StatusCode != http.StatusOK {
		discard(resp)
		return models.Download{}, fmt.Errorf("download %s: origin returned %s", key, resp.Status)
	}
	body, err := readBody(resp)
	if err != nil {
		return models.Download{}, fmt.Errorf("download %s: %w", key, err)
	}

	entry, err := r.newEntry(r.names.Media, http.MethodGet, key, resp, body)
	if err != nil {
		return models.Download{}, err
	}
	if err := r.store.PutCacheEntry(ctx, entry); err != nil {
		return models.Download{}, fmt.Errorf("save %s: %w", key, err)
	}

	filename := filenameOf(target)
	d := models.Download{
		ID:          uuid.NewString(),
		Filename:    filename,
		URL:         key,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        int64(len(body)),
		CacheName:   r.names.Media,
		SavedAt:     r.opts.Now().UTC(),
	}
	if existing, err := r.findDownload(ctx, filename); err != nil {
		return models.Download{}, err
	} else if existing != nil {
		d.ID = existing.ID
	}
	if _, err := db.PutValue(ctx, r.store, models.PartitionDownloads, models.StringID(d.ID), d); err != nil {
		return models.Download{}, fmt.Errorf("record download %s: %w", filename, err)
	}
	log.Infof("saved %s for offline use (%d bytes)", filename, d.Size)
	return d, nil
}

// Downloads lists the saved files.
func (r *Router) Downloads(ctx context.Context) ([]models.Download, error) {
	recs, err := r.store.GetAllRecords(ctx, models.PartitionDownloads)
	if err != nil {
		return nil, err
	}
	out := make([]models.Download, 0, len(recs))
	for i := range recs {
		var d models.Download
		if err := recs[i].Decode(&d); err != nil {
			return nil, fmt.Errorf("decode download %s: %w", recs[i].ID, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// RemoveDownload deletes a saved file and its descriptor. It returns
// ErrNotCached when no download has that filename.
func (r *Router) RemoveDownload(ctx context.Context, filename string) error {
	d, err := r.findDownload(ctx, filename)
	if err != nil {
		return err
	}
	if d == nil {
		return fmt.Errorf("%s: %w", filename, ErrNotCached)
	}
	if hit := r.match(ctx, http.MethodGet, d.URL); hit != nil && hit.CacheName == d.CacheName {
		if err := r.store.DeleteCacheEntry(ctx, hit.ID); err != nil {
			return fmt.Errorf("remove %s: %w", filename, err)
		}
	}
	return r.store.DeleteRecord(ctx, models.PartitionDownloads, models.StringID(d.ID))
}

func (r *Router) findDownload(ctx context.Context, filename string) (*models.Download, error) {
	recs, err := r.store.GetAllByIndex(ctx, models.PartitionDownloads, "filename", filename)
	if err != nil {
		return nil, fmt.Errorf("look up download %s: %w", filename, err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	var d models.Download
	if err := recs[0].Decode(&d); err != nil {
		return nil, fmt.Errorf("decode download %s: %w", filename, err)
	}
	return &d, nil
}

func filenameOf(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "/" || name == "." || name == "" {
		return u.Host
	}
	return name
}
