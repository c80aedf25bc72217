package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"landedcost/internal/core/id"
	"landedcost/internal/core/types"
)

// RecordType defines movement direction for accumulation registers.
type RecordType string

const (
	// RecordTypeReceipt increases balance
	RecordTypeReceipt RecordType = "receipt"
	// RecordTypeExpense decreases balance
	RecordTypeExpense RecordType = "expense"
)

// MovementBase contains common fields for all register movements.
// Movements are immutable.
type MovementBase struct {
	LineID id.ID `db:"line_id" json:"lineId"`

	// RecorderID is the document that created this movement
	RecorderID id.ID `db:"recorder_id" json:"recorderId"`

	// RecorderType is the document type (e.g. "purchase")
	RecorderType string `db:"recorder_type" json:"recorderType"`

	Period     time.Time  `db:"period" json:"period"`
	RecordType RecordType `db:"record_type" json:"recordType"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

// NewMovementBase creates a new movement base with generated LineID.
func NewMovementBase(recorderID id.ID, recorderType string, period time.Time, recordType RecordType) MovementBase {
	return MovementBase{
		LineID:       id.New(),
		RecorderID:   recorderID,
		RecorderType: recorderType,
		Period:       period,
		RecordType:   recordType,
		CreatedAt:    time.Now().UTC(),
	}
}

// StockMovement is a line of the stock register: a quantity of a product
// received (or issued) at a unit cost.
type StockMovement struct {
	MovementBase

	ProductID id.ID `db:"product_id" json:"productId"`

	Quantity int64       `db:"quantity" json:"quantity"`
	UnitCost types.Money `db:"unit_cost" json:"unitCost"`
	Amount   types.Money `db:"amount" json:"amount"`
}

// NewStockReceipt builds a receipt movement valued at unitCost.
func NewStockReceipt(recorderID id.ID, recorderType string, period time.Time, productID id.ID, qty int64, unitCost types.Money) StockMovement {
	return StockMovement{
		MovementBase: NewMovementBase(recorderID, recorderType, period, RecordTypeReceipt),
		ProductID:    productID,
		Quantity:     qty,
		UnitCost:     unitCost,
		Amount:       types.Round2(unitCost.Mul(decimal.NewFromInt(qty))),
	}
}
