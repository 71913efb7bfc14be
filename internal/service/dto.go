package service

import (
	"time"

	"github.com/abgdnv/inventory/internal/store"
)

// ProductDto represents the data transfer object for a product.
type ProductDto struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Quantity int32  `json:"quantity"`
}

// ProductCreateDto carries the fields accepted when creating or updating a product.
type ProductCreateDto struct {
	Name     string
	Quantity int32
}

// SaleItemDto is one requested line of a sale.
type SaleItemDto struct {
	ProductID int64 `json:"productId"`
	Quantity  int32 `json:"quantity"`
}

// SaleLineDto is one flattened row of a sale and its items.
type SaleLineDto struct {
	SaleID    int64     `json:"saleId"`
	Date      time.Time `json:"date"`
	ProductID int64     `json:"productId"`
	Quantity  int32     `json:"quantity"`
}

// SaleCreatedDto echoes the items of a created sale.
type SaleCreatedDto struct {
	SaleID    int64         `json:"saleId"`
	ItemsSold []SaleItemDto `json:"itemsSold"`
}

// SaleUpdatedDto echoes the items of an updated sale.
type SaleUpdatedDto struct {
	SaleID      int64         `json:"saleId"`
	ItemUpdated []SaleItemDto `json:"itemUpdated"`
}

func toProductDto(p store.Product) ProductDto {
	return ProductDto{ID: p.ID, Name: p.Name, Quantity: p.Quantity}
}

func toSaleLineDtos(lines []store.SaleLine) []SaleLineDto {
	dtos := make([]SaleLineDto, len(lines))
	for i, l := range lines {
		dtos[i] = SaleLineDto{SaleID: l.SaleID, Date: l.Date, ProductID: l.ProductID, Quantity: l.Quantity}
	}
	return dtos
}
