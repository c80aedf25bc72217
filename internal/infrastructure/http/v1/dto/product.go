package dto

import (
	"time"

	"landedcost/internal/core/entity"
	"landedcost/internal/core/types"
	"landedcost/internal/domain/catalogs/product"
)

// CreateProductRequest registers a product. Stock starts at the given
// opening quantity; later changes come only from completed purchases.
type CreateProductRequest struct {
	Code         string       `json:"code" binding:"required,max=50"`
	Name         string       `json:"name" binding:"required,max=255"`
	OpeningStock int64        `json:"openingStock" binding:"min=0"`
	OpeningCost  *types.Money `json:"openingCost,omitempty" binding:"omitempty,nonneg"`
}

// ToEntity converts request to domain entity.
func (r *CreateProductRequest) ToEntity() *product.Product {
	p := product.New(r.Code, r.Name)
	p.Stock = r.OpeningStock
	if r.OpeningCost != nil {
		p.Cost = *r.OpeningCost
	}
	return p
}

// ProductResponse is the API representation of a product.
type ProductResponse struct {
	ID      string      `json:"id"`
	Code    string      `json:"code"`
	Name    string      `json:"name"`
	Stock   int64       `json:"stock"`
	Cost    types.Money `json:"cost"`
	Version int         `json:"version"`
}

// FromProduct maps a product.
func FromProduct(p *product.Product) ProductResponse {
	return ProductResponse{
		ID:      p.ID.String(),
		Code:    p.Code,
		Name:    p.Name,
		Stock:   p.Stock,
		Cost:    p.Cost,
		Version: p.Version,
	}
}

// StockMovementResponse is one stock register row.
type StockMovementResponse struct {
	ID           string      `json:"id"`
	Period       time.Time   `json:"period"`
	RecorderID   string      `json:"recorderId"`
	RecorderType string      `json:"recorderType"`
	RecordType   string      `json:"recordType"`
	ProductID    string      `json:"productId"`
	Quantity     int64       `json:"quantity"`
	UnitCost     types.Money `json:"unitCost"`
	Amount       types.Money `json:"amount"`
}

// FromStockMovements maps register rows.
func FromStockMovements(ms []entity.StockMovement) []StockMovementResponse {
	out := make([]StockMovementResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, StockMovementResponse{
			ID:           m.LineID.String(),
			Period:       m.Period,
			RecorderID:   m.RecorderID.String(),
			RecorderType: m.RecorderType,
			RecordType:   string(m.RecordType),
			ProductID:    m.ProductID.String(),
			Quantity:     m.Quantity,
			UnitCost:     m.UnitCost,
			Amount:       m.Amount,
		})
	}
	return out
}
