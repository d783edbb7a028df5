package ingest

import (
	"bytes"
	"context"
	"image"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AzumiYumei/Azumi-Image-Hosting/blobstore"
	"github.com/AzumiYumei/Azumi-Image-Hosting/models"
)

type fakeCatalog struct {
	nextImageID int64
	nextTagID   int64
	images      map[int64]*models.Image
	tagIDs      map[string]int64
	attached    map[int64][]string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		images:   make(map[int64]*models.Image),
		tagIDs:   make(map[string]int64),
		attached: make(map[int64][]string),
	}
}

func (f *fakeCatalog) CreateImage(_ context.Context, img *models.Image) error {
	f.nextImageID++
	img.ID = f.nextImageID
	img.Token = "tok"
	f.images[img.ID] = img
	return nil
}

func (f *fakeCatalog) EnsureTags(_ context.Context, names []string) ([]models.Tag, error) {
	out := make([]models.Tag, 0, len(names))
	for _, name := range names {
		id, ok := f.tagIDs[name]
		if !ok {
			f.nextTagID++
			id = f.nextTagID
			f.tagIDs[name] = id
		}
		out = append(out, models.Tag{ID: id, Name: name})
	}
	return out, nil
}

func (f *fakeCatalog) AttachTags(_ context.Context, imageID int64, tagIDs []int64) error {
	byID := make(map[int64]string)
	for name, id := range f.tagIDs {
		byID[id] = name
	}
	for _, id := range tagIDs {
		f.attached[imageID] = append(f.attached[imageID], byID[id])
	}
	return nil
}

func noiseImage(w, h int) *image.NRGBA {
	rng := rand.New(rand.NewSource(7))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	return img
}

func TestIngestFileReencodesAndTags(t *testing.T) {
	blobs, err := blobstore.New(t.TempDir())
	require.NoError(t, err)
	cat := newFakeCatalog()

	const budget = 40000
	p := NewPipeline(cat, blobs, budget)

	storedName := NewStoredName(".jpg")
	require.NoError(t, imaging.Save(noiseImage(500, 500), blobs.Path(storedName), imaging.JPEGQuality(95)))

	img, err := p.IngestFile(context.Background(), nil, storedName, "photo.jpg", []string{"a", "b"})
	require.NoError(t, err)

	assert.LessOrEqual(t, img.SizeBytes, int64(budget))
	assert.Equal(t, "image/jpeg", img.ContentType)
	assert.Equal(t, []string{"a", "b"}, cat.attached[img.ID])

	// The recorded size must match the disk after re-encoding.
	data, err := blobs.Read(storedName)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), img.SizeBytes)
}

func TestIngestFileKeepsOwner(t *testing.T) {
	blobs, err := blobstore.New(t.TempDir())
	require.NoError(t, err)
	cat := newFakeCatalog()
	p := NewPipeline(cat, blobs, 1<<20)

	storedName := NewStoredName(".jpg")
	require.NoError(t, imaging.Save(noiseImage(40, 40), blobs.Path(storedName)))

	owner := int64(7)
	img, err := p.IngestFile(context.Background(), &owner, storedName, "mine.jpg", nil)
	require.NoError(t, err)
	require.NotNil(t, img.OwnerID)
	assert.Equal(t, int64(7), *img.OwnerID)
}

func TestFetchURLStoresImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, noiseImage(80, 80), imaging.JPEG, imaging.JPEGQuality(85)))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	blobs, err := blobstore.New(t.TempDir())
	require.NoError(t, err)
	cat := newFakeCatalog()
	p := NewPipeline(cat, blobs, 1<<20)

	img, err := p.FetchURL(context.Background(), nil, srv.URL+"/pics/kitten.jpg", []string{"cat"})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(img.StoredName, ".jpg"))
	assert.Equal(t, "kitten.jpg", img.DisplayName)
	assert.Equal(t, "image/jpeg", img.ContentType)
	assert.Equal(t, srv.URL+"/pics/kitten.jpg", img.SourceURL)
	assert.Equal(t, []string{"cat"}, cat.attached[img.ID])

	exists, err := blobs.Exists(img.StoredName)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFetchURLNonImageFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>not an image</body></html>"))
	}))
	defer srv.Close()

	blobs, err := blobstore.New(t.TempDir())
	require.NoError(t, err)
	p := NewPipeline(newFakeCatalog(), blobs, 1<<20)

	img, err := p.FetchURL(context.Background(), nil, srv.URL+"/page", nil)
	require.NoError(t, err)

	// Non-image bodies are stored anyway, under the generic extension, and
	// the record keeps the reported MIME type.
	assert.True(t, strings.HasSuffix(img.StoredName, ".bin"))
	assert.Equal(t, "text/html", img.ContentType)
	// "/page" has no extension, so the stored name doubles as display name.
	assert.Equal(t, img.StoredName, img.DisplayName)
}

func TestFetchURLPropagatesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	blobs, err := blobstore.New(t.TempDir())
	require.NoError(t, err)
	p := NewPipeline(newFakeCatalog(), blobs, 1<<20)

	_, err = p.FetchURL(context.Background(), nil, srv.URL+"/gone.jpg", nil)
	assert.Error(t, err)
}

func TestFetchURLRejectsBadSchemes(t *testing.T) {
	blobs, err := blobstore.New(t.TempDir())
	require.NoError(t, err)
	p := NewPipeline(newFakeCatalog(), blobs, 1<<20)

	_, err = p.FetchURL(context.Background(), nil, "ftp://example.com/a.jpg", nil)
	assert.Error(t, err)
}
