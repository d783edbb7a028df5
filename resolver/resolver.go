// Package resolver reconciles the catalog against the backing file store at
// read time. Records whose file turns out to be missing are lazily deleted,
// so the catalog heals itself as it is queried.
package resolver

import (
	"context"
	"errors"
	"log"

	"github.com/AzumiYumei/Azumi-Image-Hosting/cache"
	"github.com/AzumiYumei/Azumi-Image-Hosting/models"
)

// ErrNotFound is the normal absent result: no candidate with a live backing
// file matched the query.
var ErrNotFound = errors.New("no matching image")

// maxRandomDraws bounds the random retry loop. A catalog full of stale
// records could otherwise keep the draw-check-delete cycle running for an
// unbounded time; bounded latency wins over completeness here.
const maxRandomDraws = 50

type Mode string

const (
	ModeNewest Mode = "newest"
	ModeRandom Mode = "random"
)

// Catalog is the slice of catalog behavior the resolver needs.
type Catalog interface {
	ListByTags(ctx context.Context, tagNames []string) ([]*models.Image, error)
	Random(ctx context.Context, tagNames []string, n int) ([]*models.Image, error)
	ImageByID(ctx context.Context, id int64) (*models.Image, error)
	ImageByToken(ctx context.Context, token string) (*models.Image, error)
	DeleteImage(ctx context.Context, id int64) error
}

// BlobStore is the slice of blob-store behavior the resolver needs.
type BlobStore interface {
	Exists(name string) (bool, error)
	Read(name string) ([]byte, error)
	Remove(name string) error
}

// Hit is one resolved image: the record plus its bytes.
type Hit struct {
	Image *models.Image
	Data  []byte
}

type Resolver struct {
	cat   Catalog
	blobs BlobStore
	bytes *cache.ImageCache
}

func New(cat Catalog, blobs BlobStore, bytes *cache.ImageCache) *Resolver {
	return &Resolver{cat: cat, blobs: blobs, bytes: bytes}
}

// Resolve returns one viable image for the tag filter, or ErrNotFound.
// An empty filter means no filter.
func (r *Resolver) Resolve(ctx context.Context, tagNames []string, mode Mode) (*Hit, error) {
	if mode == ModeRandom {
		return r.resolveRandom(ctx, tagNames)
	}
	return r.resolveNewest(ctx, tagNames)
}

// resolveNewest walks the newest-first candidate set and returns the first
// candidate whose file still exists, discarding every stale record it passes.
func (r *Resolver) resolveNewest(ctx context.Context, tagNames []string) (*Hit, error) {
	candidates, err := r.cat.ListByTags(ctx, tagNames)
	if err != nil {
		return nil, err
	}
	for _, img := range candidates {
		hit, ok := r.tryCandidate(ctx, img)
		if ok {
			return hit, nil
		}
	}
	return nil, ErrNotFound
}

// resolveRandom draws one fresh candidate per attempt so each draw sees the
// catalog as already healed by the previous one.
func (r *Resolver) resolveRandom(ctx context.Context, tagNames []string) (*Hit, error) {
	for attempt := 0; attempt < maxRandomDraws; attempt++ {
		drawn, err := r.cat.Random(ctx, tagNames, 1)
		if err != nil {
			return nil, err
		}
		if len(drawn) == 0 {
			return nil, ErrNotFound
		}
		if hit, ok := r.tryCandidate(ctx, drawn[0]); ok {
			return hit, nil
		}
	}
	return nil, ErrNotFound
}

// ResolveByID is the single-candidate variant of Resolve.
func (r *Resolver) ResolveByID(ctx context.Context, id int64) (*Hit, error) {
	img, err := r.cat.ImageByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.single(ctx, img)
}

// ResolveByToken is the single-candidate variant of Resolve.
func (r *Resolver) ResolveByToken(ctx context.Context, token string) (*Hit, error) {
	img, err := r.cat.ImageByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return r.single(ctx, img)
}

func (r *Resolver) single(ctx context.Context, img *models.Image) (*Hit, error) {
	if img == nil {
		return nil, ErrNotFound
	}
	if hit, ok := r.tryCandidate(ctx, img); ok {
		return hit, nil
	}
	return nil, ErrNotFound
}

// tryCandidate checks one candidate's backing file. On a miss the record is
// discarded; I/O faults are logged and treated as a miss so the resolve loop
// keeps going.
func (r *Resolver) tryCandidate(ctx context.Context, img *models.Image) (*Hit, bool) {
	exists, err := r.blobs.Exists(img.StoredName)
	if err != nil {
		log.Printf("existence check failed for %s: %v", img.StoredName, err)
		return nil, false
	}
	if !exists {
		r.discard(ctx, img)
		return nil, false
	}

	data, ok := r.bytes.Get(img.StoredName)
	if !ok {
		data, err = r.blobs.Read(img.StoredName)
		if err != nil {
			log.Printf("read failed for %s: %v", img.StoredName, err)
			return nil, false
		}
		r.bytes.Set(img.StoredName, data)
	}
	return &Hit{Image: img, Data: data}, true
}

// Remove deletes an image completely: backing file, cached bytes, catalog
// record and (via the catalog's cascade) its tag links. Callers doing
// explicit deletes share this exact path with the lazy cleanup.
func (r *Resolver) Remove(ctx context.Context, img *models.Image) error {
	if err := r.blobs.Remove(img.StoredName); err != nil {
		log.Printf("file remove failed for %s: %v", img.StoredName, err)
	}
	r.bytes.Remove(img.StoredName)
	return r.cat.DeleteImage(ctx, img.ID)
}

// discard is the lazy-delete side effect: best effort, never escalated, so a
// cleanup failure cannot block returning a result to the caller.
func (r *Resolver) discard(ctx context.Context, img *models.Image) {
	log.Printf("image %d lost its backing file %s, dropping record", img.ID, img.StoredName)
	if err := r.Remove(ctx, img); err != nil {
		log.Printf("lazy delete of image %d failed: %v", img.ID, err)
	}
}
