// Package events holds the domain events emitted after a sale transaction commits.
package events

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/abgdnv/inventory/pkg/messaging"
)

// SaleItem is one line of a sale as carried in events.
type SaleItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int32 `json:"quantity"`
}

// SaleEvent is the common payload of every sale event.
// Carrier holds the propagated trace context of the originating request.
type SaleEvent struct {
	Carrier    map[string]string `json:"carrier,omitempty"`
	SaleID     int64             `json:"sale_id"`
	Items      []SaleItem        `json:"items"`
	OccurredAt time.Time         `json:"occurred_at"`
}

func (e SaleEvent) Key() string {
	return strconv.FormatInt(e.SaleID, 10)
}

func (e SaleEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

type SaleCreatedEvent struct{ SaleEvent }

func (SaleCreatedEvent) Subject() string { return messaging.SalesCreatedSubject }

type SaleUpdatedEvent struct{ SaleEvent }

func (SaleUpdatedEvent) Subject() string { return messaging.SalesUpdatedSubject }

type SaleDeletedEvent struct{ SaleEvent }

func (SaleDeletedEvent) Subject() string { return messaging.SalesDeletedSubject }
