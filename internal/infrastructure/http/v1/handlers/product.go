package handlers

import (
	"github.com/gin-gonic/gin"

	"landedcost/internal/domain/catalogs/product"
	"landedcost/internal/domain/registers/stock"
	"landedcost/internal/infrastructure/http/v1/dto"
)

// ProductHandler handles product endpoints.
type ProductHandler struct {
	*BaseHandler
	service *product.Service
	stock   *stock.Service
}

// NewProductHandler creates a product handler.
func NewProductHandler(base *BaseHandler, service *product.Service, stockService *stock.Service) *ProductHandler {
	return &ProductHandler{
		BaseHandler: base,
		service:     service,
		stock:       stockService,
	}
}

// List handles GET /products
func (h *ProductHandler) List(c *gin.Context) {
	var q dto.ListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	res, err := h.service.List(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(res, dto.FromProduct))
}

// Create handles POST /products
func (h *ProductHandler) Create(c *gin.Context) {
	var req dto.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), p); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromProduct(p))
}

// Get handles GET /products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	productID, ok := h.ParseID(c)
	if !ok {
		return
	}

	p, err := h.service.GetByID(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromProduct(p))
}

// Movements handles GET /products/:id/movements
func (h *ProductHandler) Movements(c *gin.Context) {
	ctx := c.Request.Context()

	productID, ok := h.ParseID(c)
	if !ok {
		return
	}
	if _, err := h.service.GetByID(ctx, productID); err != nil {
		h.Error(c, err)
		return
	}

	limit := 100
	var q dto.ListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	if q.Limit > 0 {
		limit = q.Limit
	}

	movements, err := h.stock.ProductHistory(ctx, productID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": dto.FromStockMovements(movements)})
}
