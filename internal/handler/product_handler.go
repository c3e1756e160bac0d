package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Rijughosh14/EShop/internal/catalog"
	"github.com/Rijughosh14/EShop/internal/service"
	"github.com/Rijughosh14/EShop/pkg/logger"
	"github.com/Rijughosh14/EShop/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ProductHandler proxies the product catalog
type ProductHandler struct {
	catalog service.CatalogService
	log     *logger.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(catalog service.CatalogService, log *logger.Logger) *ProductHandler {
	if log == nil {
		log = logger.Get()
	}
	return &ProductHandler{catalog: catalog, log: log}
}

// List handles GET /api/products?limit=&skip=
func (h *ProductHandler) List(c *gin.Context) {
	limit, ok := queryInt(c, "limit", service.DefaultProductLimit)
	if !ok {
		return
	}
	skip, ok := queryInt(c, "skip", 0)
	if !ok {
		return
	}

	h.serve(c, "Failed to fetch products", func(ctx context.Context) (json.RawMessage, error) {
		return h.catalog.ListProducts(ctx, limit, skip)
	})
}

// Get handles GET /api/products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	id := c.Param("id")
	h.serve(c, "Failed to fetch product", func(ctx context.Context) (json.RawMessage, error) {
		return h.catalog.GetProduct(ctx, id)
	})
}

// Search handles GET /api/products/search/:query
func (h *ProductHandler) Search(c *gin.Context) {
	query := c.Param("query")
	h.serve(c, "Failed to search products", func(ctx context.Context) (json.RawMessage, error) {
		return h.catalog.SearchProducts(ctx, query)
	})
}

// ByCategory handles GET /api/products/category/:category
func (h *ProductHandler) ByCategory(c *gin.Context) {
	category := c.Param("category")
	h.serve(c, "Failed to fetch category products", func(ctx context.Context) (json.RawMessage, error) {
		return h.catalog.ProductsByCategory(ctx, category)
	})
}

// Categories handles GET /api/products/categories/all
func (h *ProductHandler) Categories(c *gin.Context) {
	h.serve(c, "Failed to fetch categories", h.catalog.Categories)
}

func (h *ProductHandler) serve(c *gin.Context, failure string, fetch func(context.Context) (json.RawMessage, error)) {
	raw, err := fetch(c.Request.Context())
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			response.NotFound(c, "Product not found")
			return
		}
		h.log.WarnContext(c.Request.Context(), failure, zap.String("path", c.Request.URL.Path), zap.Error(err))
		response.Error(c, http.StatusBadGateway, "UPSTREAM_ERROR", failure, err.Error())
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		response.BadRequest(c, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
