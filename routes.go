package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"wikicite/config"
	"wikicite/models"
	"wikicite/services"
	"wikicite/storage"
)

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func newRouter(cfg *config.Config, db *gorm.DB, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// Health bleibt ohne API-Key erreichbar
	router.GET("/health", func(c *gin.Context) {
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "wikicite"})
	})

	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	store := storage.NewCitationStore(db)
	setupCitationRoutes(router, cfg, store, log)
	setupArticleRoutes(router, cfg, store, log)
	return router
}

// citationDetail ist die Antwort für ein bekanntes Zitat.
type citationDetail struct {
	Normalized *models.NormalizedCitation `json:"normalized"`
	Variants   []models.Citation          `json:"variants"`
	History    []models.CitationHistory   `json:"history"`
}

func loadCitationDetail(c *gin.Context, store *storage.CitationStore, recordKey string) (*citationDetail, error) {
	ctx := c.Request.Context()
	norm, err := store.Normalized(ctx, recordKey)
	if err != nil {
		return nil, err
	}
	variants, err := store.Variants(ctx, recordKey)
	if err != nil {
		return nil, err
	}
	history, err := store.History(ctx, recordKey)
	if err != nil {
		return nil, err
	}
	return &citationDetail{Normalized: norm, Variants: variants, History: history}, nil
}

func setupCitationRoutes(router *gin.Engine, cfg *config.Config, store *storage.CitationStore, log *zap.Logger) {
	rg := router.Group("/citations")

	// POST - Kanonische Form und Schlüssel eines Zitats, ohne zu speichern
	rg.POST("/canonicalize", func(c *gin.Context) {
		var request struct {
			Text string `json:"text" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'text' field is required."})
			return
		}

		canonical := services.Canonicalize(request.Text)
		c.JSON(http.StatusOK, gin.H{
			"canonical_text": canonical,
			"canonical_key":  services.CanonicalKey(canonical),
			"raw_key":        services.RawKey(request.Text),
			"reference_name": services.RefName(request.Text),
			"subreferences":  services.Subreferences(canonical),
		})
	})

	// POST - Wurde dieses Zitat auf dem Artikel schon gesehen?
	rg.POST("/lookup", func(c *gin.Context) {
		var request struct {
			Domain string `json:"domain"`
			PageID int64  `json:"page_id" binding:"required"`
			Text   string `json:"text" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'page_id' and 'text' are required."})
			return
		}
		if request.Domain == "" {
			request.Domain = cfg.WikiDomain
		}

		canonical := services.Canonicalize(request.Text)
		recordKey := services.RecordKey(request.Domain, request.PageID, canonical)
		response := gin.H{
			"record_key":     recordKey,
			"canonical_key":  services.CanonicalKey(canonical),
			"canonical_text": canonical,
			"raw_key":        services.RawKey(request.Text),
			"seen":           false,
		}

		detail, err := loadCitationDetail(c, store, recordKey)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusOK, response)
			return
		case err != nil:
			log.Error("Citation lookup failed", zap.String("record_key", recordKey), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		response["seen"] = true
		response["normalized"] = detail.Normalized
		response["variants"] = detail.Variants
		response["history"] = detail.History
		c.JSON(http.StatusOK, response)
	})

	// GET - Zitat mit allen Varianten und der Revisionshistorie
	rg.GET("/:record_key", func(c *gin.Context) {
		recordKey := c.Param("record_key")
		detail, err := loadCitationDetail(c, store, recordKey)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "citation not found"})
				return
			}
			log.Error("DB error loading citation", zap.String("record_key", recordKey), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, detail)
	})
}

func setupArticleRoutes(router *gin.Engine, cfg *config.Config, store *storage.CitationStore, log *zap.Logger) {
	rg := router.Group("/articles")

	// GET - Alle kanonischen Zitate eines Artikels
	rg.GET("/:page_id/citations", func(c *gin.Context) {
		pageID, err := strconv.ParseInt(c.Param("page_id"), 10, 64)
		if err != nil || pageID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page_id"})
			return
		}
		domain := c.DefaultQuery("domain", cfg.WikiDomain)
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

		doc, err := store.FindArticle(c.Request.Context(), domain, pageID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
				return
			}
			log.Error("DB error loading article", zap.Int64("page_id", pageID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		citations, err := store.ArticleCitations(c.Request.Context(), doc.ConceptID, limit)
		if err != nil {
			log.Error("DB error loading article citations", zap.Int64("page_id", pageID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"domain":     domain,
			"page_id":    pageID,
			"article_id": doc.ConceptID,
			"citations":  citations,
		})
	})
}
