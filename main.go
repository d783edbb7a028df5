package main

import (
	"context"
	"database/sql"
	"log"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"github.com/AzumiYumei/Azumi-Image-Hosting/blobstore"
	"github.com/AzumiYumei/Azumi-Image-Hosting/cache"
	"github.com/AzumiYumei/Azumi-Image-Hosting/catalog"
	"github.com/AzumiYumei/Azumi-Image-Hosting/config"
	"github.com/AzumiYumei/Azumi-Image-Hosting/ingest"
	"github.com/AzumiYumei/Azumi-Image-Hosting/middlewares"
	"github.com/AzumiYumei/Azumi-Image-Hosting/resolver"
	"github.com/AzumiYumei/Azumi-Image-Hosting/worker"
)

var (
	cfg        config.Config
	cat        *catalog.Catalog
	blobs      *blobstore.Store
	imageCache *cache.ImageCache
	res        *resolver.Resolver
	pipeline   *ingest.Pipeline
	fetchPool  *worker.Pool
)

func main() {
	cfg = config.Load()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	cat = catalog.New(db)
	if err := cat.Init(context.Background()); err != nil {
		log.Fatal("Failed to initialize schema:", err)
	}

	blobs, err = blobstore.New(cfg.StorageDir)
	if err != nil {
		log.Fatal("Failed to open storage directory:", err)
	}

	imageCache = cache.New(cfg.CacheEntries, 30*time.Minute)
	res = resolver.New(cat, blobs, imageCache)
	pipeline = ingest.NewPipeline(cat, blobs, cfg.MaxImageBytes)

	fetchPool = worker.NewPool(cfg.FetchWorkers, pipeline)
	fetchPool.Start()
	defer fetchPool.Stop()

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return strings.HasPrefix(origin, "http://localhost:") ||
				strings.HasPrefix(origin, "http://127.0.0.1:")
		},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middlewares.Identity(cfg.JWTSecret))

	r.GET("/health", handleHealth)
	r.GET("/image", handleQueryImage)
	r.GET("/i/:token", handleImageByToken)
	r.GET("/images", handleListImages)
	r.GET("/images/:id", handleImageByID)
	r.GET("/tags", handleListTags)
	r.POST("/upload", handleUpload)
	r.POST("/fetch", handleFetch)
	r.DELETE("/images/:id", middlewares.RequireAuth(cfg.JWTSecret), handleDelete)
	r.GET("/workers/stats", handleWorkerStats)
	r.GET("/cache/stats", handleCacheStats)

	log.Println("Server starting on", cfg.Addr)
	r.Run(cfg.Addr)
}
