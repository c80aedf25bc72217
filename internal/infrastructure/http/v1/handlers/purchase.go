package handlers

import (
	"github.com/gin-gonic/gin"

	"landedcost/internal/core/security"
	"landedcost/internal/domain/audit"
	"landedcost/internal/domain/documents/purchase"
	"landedcost/internal/domain/registers/stock"
	"landedcost/internal/infrastructure/http/v1/dto"
)

// PurchaseHandler handles purchase endpoints.
type PurchaseHandler struct {
	*BaseHandler
	service    *purchase.Service
	stock      *stock.Service
	history    audit.Reader
	authorizer security.Authorizer
}

// NewPurchaseHandler creates a purchase handler. history may be nil, in
// which case the history endpoint returns an empty list.
func NewPurchaseHandler(
	base *BaseHandler,
	service *purchase.Service,
	stockService *stock.Service,
	history audit.Reader,
	authorizer security.Authorizer,
) *PurchaseHandler {
	return &PurchaseHandler{
		BaseHandler: base,
		service:     service,
		stock:       stockService,
		history:     history,
		authorizer:  authorizer,
	}
}

// List handles GET /purchases
func (h *PurchaseHandler) List(c *gin.Context) {
	var q dto.PurchaseListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(res, func(p *purchase.Purchase) dto.PurchaseResponse {
		return dto.FromPurchaseSummary(p, h.service.Allocation(p))
	}))
}

// Create handles POST /purchases
func (h *PurchaseHandler) Create(c *gin.Context) {
	var req dto.PurchaseRequest
	if !h.BindJSON(c, &req) {
		return
	}
	p, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Create(c.Request.Context(), p); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromPurchase(p, h.service.Allocation(p)))
}

// Get handles GET /purchases/:id
func (h *PurchaseHandler) Get(c *gin.Context) {
	purchaseID, ok := h.ParseID(c)
	if !ok {
		return
	}

	p, err := h.service.GetByID(c.Request.Context(), purchaseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPurchase(p, h.service.Allocation(p)))
}

// Update handles PUT /purchases/:id
func (h *PurchaseHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	purchaseID, ok := h.ParseID(c)
	if !ok {
		return
	}

	var req dto.UpdatePurchaseRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := h.service.GetByID(ctx, purchaseID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := req.ApplyTo(p); err != nil {
		h.Error(c, err)
		return
	}
	p.Version = req.Version

	if err := h.service.Update(ctx, p); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPurchase(p, h.service.Allocation(p)))
}

// Delete handles DELETE /purchases/:id
func (h *PurchaseHandler) Delete(c *gin.Context) {
	purchaseID, ok := h.ParseID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), purchaseID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// Preview handles POST /purchases/preview: the allocation of raw purchase
// fields. Nothing is stored.
func (h *PurchaseHandler) Preview(c *gin.Context) {
	if err := h.authorizer.Authorize(c.Request.Context(), security.PermissionPurchaseRead); err != nil {
		h.Error(c, err)
		return
	}

	var req dto.PurchaseRequest
	if !h.BindJSON(c, &req) {
		return
	}
	p, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.service.Preview(c.Request.Context(), p)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, res)
}

// Allocation handles GET /purchases/:id/allocation
func (h *PurchaseHandler) Allocation(c *gin.Context) {
	purchaseID, ok := h.ParseID(c)
	if !ok {
		return
	}

	res, err := h.service.PreviewStored(c.Request.Context(), purchaseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, res)
}

// SetStatus handles POST /purchases/:id/status
func (h *PurchaseHandler) SetStatus(c *gin.Context) {
	purchaseID, ok := h.ParseID(c)
	if !ok {
		return
	}

	var req dto.SetStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	target, err := purchase.ParseStatus(req.Status)
	if err != nil {
		h.Error(c, err)
		return
	}

	p, err := h.service.SetStatus(c.Request.Context(), purchaseID, target)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPurchase(p, h.service.Allocation(p)))
}

// Complete handles POST /purchases/:id/complete
func (h *PurchaseHandler) Complete(c *gin.Context) {
	purchaseID, ok := h.ParseID(c)
	if !ok {
		return
	}

	p, err := h.service.Complete(c.Request.Context(), purchaseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPurchase(p, h.service.Allocation(p)))
}

// Cancel handles POST /purchases/:id/cancel
func (h *PurchaseHandler) Cancel(c *gin.Context) {
	purchaseID, ok := h.ParseID(c)
	if !ok {
		return
	}

	p, err := h.service.Cancel(c.Request.Context(), purchaseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPurchase(p, h.service.Allocation(p)))
}

// Movements handles GET /purchases/:id/movements: the stock receipts
// written by completion.
func (h *PurchaseHandler) Movements(c *gin.Context) {
	ctx := c.Request.Context()

	purchaseID, ok := h.ParseID(c)
	if !ok {
		return
	}
	// Resolves the purchase first so unknown ids are 404 and access is checked.
	if _, err := h.service.GetByID(ctx, purchaseID); err != nil {
		h.Error(c, err)
		return
	}

	movements, err := h.stock.MovementsByRecorder(ctx, purchaseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": dto.FromStockMovements(movements)})
}

// History handles GET /purchases/:id/history
func (h *PurchaseHandler) History(c *gin.Context) {
	ctx := c.Request.Context()

	purchaseID, ok := h.ParseID(c)
	if !ok {
		return
	}
	if _, err := h.service.GetByID(ctx, purchaseID); err != nil {
		h.Error(c, err)
		return
	}

	entries := []audit.Entry{}
	if h.history != nil {
		found, err := h.history.History(ctx, "purchase", purchaseID, 100)
		if err != nil {
			h.Error(c, err)
			return
		}
		if found != nil {
			entries = found
		}
	}

	h.OK(c, gin.H{"items": entries})
}
