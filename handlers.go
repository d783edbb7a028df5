package main

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AzumiYumei/Azumi-Image-Hosting/ingest"
	"github.com/AzumiYumei/Azumi-Image-Hosting/models"
	"github.com/AzumiYumei/Azumi-Image-Hosting/resolver"
	"github.com/AzumiYumei/Azumi-Image-Hosting/tags"
)

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"queue_size": fetchPool.QueueSize(),
		"cache_size": imageCache.Len(),
	})
}

// GET /image?tags=a,b&mode=newest|random
func handleQueryImage(c *gin.Context) {
	filter := tags.Normalize(tags.SplitList(c.Query("tags")))

	mode := resolver.Mode(c.DefaultQuery("mode", "newest"))
	if mode != resolver.ModeNewest && mode != resolver.ModeRandom {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be newest or random"})
		return
	}

	hit, err := res.Resolve(c.Request.Context(), filter, mode)
	serveResolved(c, hit, err)
}

// GET /i/:token is the public URL form.
func handleImageByToken(c *gin.Context) {
	hit, err := res.ResolveByToken(c.Request.Context(), c.Param("token"))
	serveResolved(c, hit, err)
}

// GET /images/:id
func handleImageByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image id"})
		return
	}
	hit, err := res.ResolveByID(c.Request.Context(), id)
	serveResolved(c, hit, err)
}

func serveResolved(c *gin.Context, hit *resolver.Hit, err error) {
	if errors.Is(err, resolver.ErrNotFound) {
		c.String(http.StatusNotFound, "no matching image found")
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}

	name := ingest.EnsureExt(ingest.Sanitize(hit.Image.DisplayName), hit.Image.ContentType)
	c.Header("Content-Disposition", ingest.ContentDisposition(name))
	c.Data(http.StatusOK, hit.Image.ContentType, hit.Data)
}

// GET /images?tags=a,b returns metadata only. Records whose file is gone are
// silently skipped here, not deleted; healing happens on the serving paths.
func handleListImages(c *gin.Context) {
	filter := tags.Normalize(tags.SplitList(c.Query("tags")))

	records, err := cat.ListByTags(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}

	infos := make([]models.ImageInfo, 0, len(records))
	for _, img := range records {
		exists, err := blobs.Exists(img.StoredName)
		if err != nil || !exists {
			continue
		}
		tagNames, err := cat.TagsOf(c.Request.Context(), img.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
			return
		}
		infos = append(infos, models.ImageInfo{
			ID:         img.ID,
			StoredName: img.StoredName,
			Tags:       tagNames,
			URL:        publicURL(img),
			CreatedAt:  img.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"images": infos, "total": len(infos)})
}

func handleListTags(c *gin.Context) {
	tagList, err := cat.AllTags(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tagList, "total": len(tagList)})
}

// POST /upload takes multipart input: repeated "images" files plus "tags" fields.
// Items fail independently; the response carries a mixed result list.
func handleUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}
	files := form.File["images"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no image files provided"})
		return
	}
	tagNames := collectTagFields(c.PostFormArray("tags"))
	owner := ownerFromContext(c)

	results := make([]gin.H, 0, len(files))
	for _, file := range files {
		displayName := ingest.Sanitize(file.Filename)
		storedName := ingest.NewStoredName(filepath.Ext(displayName))

		if err := c.SaveUploadedFile(file, blobs.Path(storedName)); err != nil {
			results = append(results, gin.H{"filename": displayName, "error": err.Error()})
			continue
		}
		img, err := pipeline.IngestFile(c.Request.Context(), owner, storedName, displayName, tagNames)
		if err != nil {
			results = append(results, gin.H{"filename": displayName, "error": err.Error()})
			continue
		}
		results = append(results, gin.H{"id": img.ID, "url": publicURL(img)})
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// POST /fetch takes {"urls": [...], "tags": [...]}. The batch runs on the fetch
// pool; one bad URL is a per-item error, never a batch failure.
func handleFetch(c *gin.Context) {
	var req struct {
		URLs []string `json:"urls"`
		Tags []string `json:"tags"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.URLs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no urls provided"})
		return
	}
	owner := ownerFromContext(c)

	fetched := fetchPool.FetchAll(c.Request.Context(), owner, req.URLs, collectTagFields(req.Tags))

	results := make([]gin.H, 0, len(fetched))
	for _, fr := range fetched {
		if fr.Err != nil {
			results = append(results, gin.H{"source": fr.URL, "error": fr.Err.Error()})
			continue
		}
		results = append(results, gin.H{"source": fr.URL, "id": fr.Image.ID, "url": publicURL(fr.Image)})
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// DELETE /images/:id requires the owner or an admin. Shares the removal path with the
// resolver's lazy cleanup.
func handleDelete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image id"})
		return
	}

	img, err := cat.ImageByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}
	if img == nil {
		c.String(http.StatusNotFound, "no such image")
		return
	}

	owner := ownerFromContext(c)
	isOwner := owner != nil && img.OwnerID != nil && *owner == *img.OwnerID
	if c.GetString("role") != "admin" && !isOwner {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the owner"})
		return
	}

	if err := res.Remove(c.Request.Context(), img); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func handleWorkerStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"workers":        fetchPool.WorkerCount(),
		"queue_size":     fetchPool.QueueSize(),
		"queue_capacity": fetchPool.QueueCapacity(),
		"completed_jobs": fetchPool.CompletedJobs(),
		"failed_jobs":    fetchPool.FailedJobs(),
	})
}

func handleCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, imageCache.GetStats())
}

func publicURL(img *models.Image) string {
	return cfg.PublicBaseURL + "/i/" + img.Token
}

// collectTagFields accepts both repeated fields and comma-separated lists.
func collectTagFields(fields []string) []string {
	var names []string
	for _, f := range fields {
		names = append(names, tags.SplitList(f)...)
	}
	return names
}

func ownerFromContext(c *gin.Context) *int64 {
	v, ok := c.Get("user_id")
	if !ok {
		return nil
	}
	id, ok := v.(int64)
	if !ok {
		return nil
	}
	return &id
}
