package productsync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Session is the ERP authentication state returned by Authenticate and
// threaded through subsequent calls.
type Session struct {
	UID             int64
	AuthenticatedAt time.Time
}

// IsZero reports whether the session has not been authenticated yet.
func (s Session) IsZero() bool {
	return s.UID == 0
}

// ERPClient reads product master data from the ERP.
type ERPClient interface {
	// Authenticate opens a new session.
	Authenticate(ctx context.Context) (Session, error)

	// ListProducts returns one page of product templates with their variants.
	// A zero session is authenticated lazily. The returned session replaces
	// the one passed in (it changes after a re-authentication).
	ListProducts(ctx context.Context, session Session, filter Filter, page Pagination) ([]ExternalProduct, Session, error)
}

// CatalogQuery finds catalog products previously imported from the ERP.
type CatalogQuery interface {
	QueryProducts(ctx context.Context, externalIDs []string) ([]ExistingProduct, error)
}

// StoreConfigQuery returns the store-level references attached to products.
type StoreConfigQuery interface {
	StoreRefs(ctx context.Context) (StoreRefs, error)
}

// ProductIngestion commits product batches to the catalog.
type ProductIngestion interface {
	CreateProducts(ctx context.Context, products []DomainProduct) ([]CommittedProduct, error)
	UpdateProducts(ctx context.Context, products []DomainProduct) ([]CommittedProduct, error)
}

// Catalog is the full set of catalog capabilities the pipeline needs.
type Catalog interface {
	CatalogQuery
	StoreConfigQuery
	ProductIngestion
}

// MediaUploader stores ERP image payloads and returns their public URLs.
type MediaUploader interface {
	UploadProductImages(ctx context.Context, product ExternalProduct) ([]string, error)
}

// ---------------------------------------------------------------------------
// Run repository
// ---------------------------------------------------------------------------

// RunReader provides read access to persisted sync runs
type RunReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Run, error)
	Latest(ctx context.Context) (*Run, error)
	List(ctx context.Context, page, pageSize int) ([]*Run, int64, error)
}

// RunWriter persists sync runs
type RunWriter interface {
	Save(ctx context.Context, run *Run) error
}

// RunRepository combines read and write access to sync runs
type RunRepository interface {
	RunReader
	RunWriter
}
