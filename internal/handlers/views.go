package handlers

import (
	"github.com/diewo77/go-pharmacy/internal/adjustment"
	"github.com/diewo77/go-pharmacy/internal/conversion"
	"github.com/diewo77/go-pharmacy/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// lineView is a LineItem as the API returns it. The unit quantity is null
// when the drug has no pack types.
type lineView struct {
	ID                uuid.UUID              `json:"id"`
	Drug              conversion.Drug        `json:"drug"`
	OrderQuantity     decimal.Decimal        `json:"order_quantity"`
	PackType          *conversion.Conversion `json:"pack_type"`
	OrderUnitQuantity *decimal.Decimal       `json:"order_unit_quantity"`
	UnitPrice         decimal.Decimal        `json:"unit_price"`
	Amount            decimal.Decimal        `json:"amount"`
	BatchNumber       string                 `json:"batch_number,omitempty"`
}

func lineViews(items []*conversion.LineItem) []lineView {
	out := make([]lineView, 0, len(items))
	for _, li := range items {
		v := lineView{
			ID:            li.ID,
			Drug:          li.Drug,
			OrderQuantity: li.OrderQuantity,
			PackType:      li.PackType,
			UnitPrice:     li.UnitPrice,
			Amount:        li.Amount(),
			BatchNumber:   li.BatchNumber,
		}
		if li.UnitQuantityAvailable() {
			q := li.OrderUnitQuantity
			v.OrderUnitQuantity = &q
		}
		out = append(out, v)
	}
	return out
}

type purchaseView struct {
	*models.PurchaseRequest
	Total decimal.Decimal `json:"total"`
}

func purchaseViews(list []models.PurchaseRequest) []purchaseView {
	out := make([]purchaseView, len(list))
	for i := range list {
		out[i] = purchaseView{&list[i], list[i].Total()}
	}
	return out
}

type billView struct {
	*models.ReturnBill
	Total decimal.Decimal `json:"total"`
}

func billViews(list []models.ReturnBill) []billView {
	out := make([]billView, len(list))
	for i := range list {
		out[i] = billView{&list[i], list[i].Total()}
	}
	return out
}

type adjustmentView struct {
	Adjustment *adjustment.Adjustment `json:"adjustment"`
}
