package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// CatalogHandler provides generic HTTP handlers for catalog entities.
type CatalogHandler[T domain.Coded, Req any] struct {
	*BaseHandler
	service    *domain.CatalogService[T]
	entityName string

	mapCreate func(req *Req) T
	mapUpdate func(req *Req, existing T) T
	versionOf func(req *Req) int
}

// CatalogHandlerConfig configures the catalog handler.
type CatalogHandlerConfig[T domain.Coded, Req any] struct {
	Service    *domain.CatalogService[T]
	EntityName string
	MapCreate  func(req *Req) T
	MapUpdate  func(req *Req, existing T) T
	VersionOf  func(req *Req) int
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler[T domain.Coded, Req any](
	base *BaseHandler,
	cfg CatalogHandlerConfig[T, Req],
) *CatalogHandler[T, Req] {
	return &CatalogHandler[T, Req]{
		BaseHandler: base,
		service:     cfg.Service,
		entityName:  cfg.EntityName,
		mapCreate:   cfg.MapCreate,
		mapUpdate:   cfg.MapUpdate,
		versionOf:   cfg.VersionOf,
	}
}

// List handles GET /{entity} - list with filtering and pagination.
func (h *CatalogHandler[T, Req]) List(c *gin.Context) {
	filter := domain.DefaultListFilter()
	filter.Search = c.Query("search")
	filter.OrderBy = c.DefaultQuery("orderBy", "name")
	filter.IncludeDeleted = c.Query("includeDeleted") == "true"

	var page dto.PageQuery
	if !h.BindQuery(c, &page) {
		return
	}
	if page.Limit > 0 {
		filter.Limit = page.Limit
	}
	filter.Offset = page.Offset

	ids, err := dto.ParseIDList("ids", c.Query("ids"))
	if err != nil {
		h.Error(c, err)
		return
	}
	filter.IDs = ids

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListData(result, nil))
}

// Get handles GET /{entity}/:id.
func (h *CatalogHandler[T, Req]) Get(c *gin.Context) {
	entityID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	item, err := h.service.GetByID(c.Request.Context(), entityID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, item)
}

// GetByCode handles GET /{entity}/by-code/:code.
func (h *CatalogHandler[T, Req]) GetByCode(c *gin.Context) {
	item, err := h.service.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, item)
}

// Create handles POST /{entity}.
func (h *CatalogHandler[T, Req]) Create(c *gin.Context) {
	var req Req
	if !h.BindJSON(c, &req) {
		return
	}

	item := h.mapCreate(&req)
	if err := h.service.Create(c.Request.Context(), item); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, item)
}

// Update handles PUT /{entity}/:id. The body must carry the version the
// client read.
func (h *CatalogHandler[T, Req]) Update(c *gin.Context) {
	ctx := c.Request.Context()

	entityID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	var req Req
	if !h.BindJSON(c, &req) {
		return
	}
	if v := h.versionOf(&req); v < 1 {
		h.Error(c, apperror.NewValidation("version is required").
			WithDetail("field", "version").
			WithDetail("value", strconv.Itoa(v)))
		return
	}

	existing, err := h.service.GetByID(ctx, entityID)
	if err != nil {
		h.Error(c, err)
		return
	}

	updated := h.mapUpdate(&req, existing)
	if err := h.service.Update(ctx, updated); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, updated)
}

// Delete handles DELETE /{entity}/:id - soft delete entity.
func (h *CatalogHandler[T, Req]) Delete(c *gin.Context) {
	entityID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), entityID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
