package productsync

import (
	"context"
	"fmt"
)

// Resolution is the create/update partition of one page, both lists in
// input order.
type Resolution struct {
	ToCreate []DomainProduct
	ToUpdate []DomainProduct
}

// Resolver correlates ERP products with catalog products by external id.
type Resolver struct {
	catalog CatalogQuery
}

// NewResolver creates a resolver backed by the given catalog query
func NewResolver(catalog CatalogQuery) *Resolver {
	return &Resolver{catalog: catalog}
}

// Resolve queries the catalog once for the whole batch and maps every
// product onto the create or update path.
func (r *Resolver) Resolve(ctx context.Context, batch []ExternalProduct, refs StoreRefs) (*Resolution, error) {
	res := &Resolution{
		ToCreate: make([]DomainProduct, 0, len(batch)),
		ToUpdate: make([]DomainProduct, 0),
	}
	if len(batch) == 0 {
		return res, nil
	}

	ids := externalIDs(batch)
	existing, err := r.catalog.QueryProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogQuery, err)
	}

	byExternalID := make(map[string]*ExistingProduct, len(existing))
	for i := range existing {
		byExternalID[existing[i].ExternalID] = &existing[i]
	}

	for _, ext := range batch {
		match := byExternalID[ext.ExternalID()]
		product, err := MapProduct(ext, match, refs)
		if err != nil {
			return nil, err
		}
		if match != nil {
			res.ToUpdate = append(res.ToUpdate, product)
		} else {
			res.ToCreate = append(res.ToCreate, product)
		}
	}
	return res, nil
}

// externalIDs returns the distinct correlation keys of the batch in order.
func externalIDs(batch []ExternalProduct) []string {
	seen := make(map[string]struct{}, len(batch))
	ids := make([]string, 0, len(batch))
	for _, p := range batch {
		id := p.ExternalID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
