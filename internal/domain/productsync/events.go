package productsync

import (
	"github.com/erp/catalogsync/internal/domain/shared"
	"github.com/google/uuid"
)

const (
	// AggregateTypeSyncRun is the aggregate type of sync run events
	AggregateTypeSyncRun = "SyncRun"

	// AggregateTypeProduct is the aggregate type of product events
	AggregateTypeProduct = "Product"

	// EventTypeProductsSynced is published once per dispatched page
	EventTypeProductsSynced = "productsync.products_synced"

	// EventTypeProductRemoved is published when an ERP product is deleted
	EventTypeProductRemoved = "productsync.product_removed"
)

// ProductsSyncedEvent carries the products committed by one page of a run.
type ProductsSyncedEvent struct {
	shared.BaseDomainEvent
	RunID   uuid.UUID          `json:"run_id"`
	Page    int                `json:"page"`
	Created []CommittedProduct `json:"created"`
	Updated []CommittedProduct `json:"updated"`
}

// NewProductsSyncedEvent creates the event for page of run
func NewProductsSyncedEvent(runID uuid.UUID, page int, created, updated []CommittedProduct) *ProductsSyncedEvent {
	return &ProductsSyncedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductsSynced, AggregateTypeSyncRun, runID),
		RunID:           runID,
		Page:            page,
		Created:         created,
		Updated:         updated,
	}
}

// Products returns created and updated products together.
func (e *ProductsSyncedEvent) Products() []CommittedProduct {
	all := make([]CommittedProduct, 0, len(e.Created)+len(e.Updated))
	all = append(all, e.Created...)
	return append(all, e.Updated...)
}

// ProductRemovedEvent names the catalog products of a deleted ERP product,
// so downstream copies can be dropped.
type ProductRemovedEvent struct {
	shared.BaseDomainEvent
	ExternalID string   `json:"external_id"`
	ProductIDs []string `json:"product_ids"`
}

// NewProductRemovedEvent creates the event for the ERP product externalID
func NewProductRemovedEvent(externalID string, productIDs []string) *ProductRemovedEvent {
	aggID := uuid.NewSHA1(uuid.NameSpaceOID, []byte("erp-product:"+externalID))
	return &ProductRemovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductRemoved, AggregateTypeProduct, aggID),
		ExternalID:      externalID,
		ProductIDs:      productIDs,
	}
}
