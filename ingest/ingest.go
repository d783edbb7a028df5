// Package ingest turns raw bytes, from local uploads or remote URLs, into
// catalog records. The blob is persisted and squeezed under the size budget
// before the record is created, so the recorded size always matches the disk.
package ingest

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/AzumiYumei/Azumi-Image-Hosting/blobstore"
	"github.com/AzumiYumei/Azumi-Image-Hosting/models"
	"github.com/AzumiYumei/Azumi-Image-Hosting/processor"
	"github.com/AzumiYumei/Azumi-Image-Hosting/tags"
)

// maxDownloadBytes caps a single remote fetch; the re-encoder budget applies
// after download, not during it.
const maxDownloadBytes = 64 << 20

// Catalog is the slice of catalog behavior the pipeline needs.
type Catalog interface {
	CreateImage(ctx context.Context, img *models.Image) error
	EnsureTags(ctx context.Context, names []string) ([]models.Tag, error)
	AttachTags(ctx context.Context, imageID int64, tagIDs []int64) error
}

type Pipeline struct {
	cat      Catalog
	blobs    *blobstore.Store
	client   *http.Client
	maxBytes int64
}

func NewPipeline(cat Catalog, blobs *blobstore.Store, maxBytes int64) *Pipeline {
	return &Pipeline{
		cat:      cat,
		blobs:    blobs,
		client:   &http.Client{Timeout: 30 * time.Second},
		maxBytes: maxBytes,
	}
}

// NewStoredName generates a unique on-disk filename keeping the extension.
func NewStoredName(ext string) string {
	return uuid.NewString() + ext
}

// IngestFile registers an already-persisted blob: re-encode to budget, sniff
// the MIME type, create the record, attach normalized tags.
func (p *Pipeline) IngestFile(ctx context.Context, ownerID *int64, storedName, displayName string, tagNames []string) (*models.Image, error) {
	size, err := processor.EnsureMaxSize(p.blobs.Path(storedName), p.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("stored file unreadable: %w", err)
	}

	contentType := "application/octet-stream"
	if mtype, err := mimetype.DetectFile(p.blobs.Path(storedName)); err == nil {
		contentType = mtype.String()
	}

	img := &models.Image{
		OwnerID:     ownerID,
		StoredName:  storedName,
		DisplayName: Sanitize(displayName),
		ContentType: contentType,
		SizeBytes:   size,
	}
	return p.finish(ctx, img, tagNames)
}

// FetchURL downloads one remote URL into the blob store and registers it.
// The extension comes from the response content type, falling back to the
// generic one for non-image bodies; the record keeps the reported MIME type.
func (p *Pipeline) FetchURL(ctx context.Context, ownerID *int64, rawURL string, tagNames []string) (*models.Image, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("bad url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %s", rawURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("fetch %s: empty body", rawURL)
	}

	contentType := resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mt
	}
	if contentType == "" {
		contentType = mimetype.Detect(body).String()
	}

	storedName := NewStoredName(extForFetched(contentType))
	if err := p.blobs.Write(storedName, body); err != nil {
		return nil, fmt.Errorf("store %s: %w", rawURL, err)
	}

	size, err := processor.EnsureMaxSize(p.blobs.Path(storedName), p.maxBytes)
	if err != nil {
		size = int64(len(body))
	}

	displayName := path.Base(u.Path)
	if filepath.Ext(displayName) == "" {
		displayName = storedName
	}

	img := &models.Image{
		OwnerID:     ownerID,
		StoredName:  storedName,
		DisplayName: Sanitize(displayName),
		ContentType: contentType,
		SizeBytes:   size,
		SourceURL:   rawURL,
	}
	return p.finish(ctx, img, tagNames)
}

func (p *Pipeline) finish(ctx context.Context, img *models.Image, tagNames []string) (*models.Image, error) {
	if err := p.cat.CreateImage(ctx, img); err != nil {
		return nil, err
	}

	names := tags.Normalize(tagNames)
	if len(names) == 0 {
		return img, nil
	}
	created, err := p.cat.EnsureTags(ctx, names)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(created))
	for i, t := range created {
		ids[i] = t.ID
	}
	if err := p.cat.AttachTags(ctx, img.ID, ids); err != nil {
		return nil, err
	}
	return img, nil
}
