package algolia

import "github.com/erp/catalogsync/internal/domain/productsync"

// productRecord is the indexed shape of a product.
type productRecord struct {
	ObjectID    string              `json:"objectID"`
	ExternalID  string              `json:"external_id"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Handle      string              `json:"handle,omitempty"`
	Status      string              `json:"status,omitempty"`
	Thumbnail   string              `json:"thumbnail,omitempty"`
	Options     map[string][]string `json:"options,omitempty"`
	SKUs        []string            `json:"skus,omitempty"`
	Variants    []variantRecord     `json:"variants,omitempty"`
}

type variantRecord struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	SKU   string `json:"sku,omitempty"`
}

func newProductRecord(p productsync.CommittedProduct) productRecord {
	r := productRecord{
		ObjectID:    p.ID,
		ExternalID:  p.ExternalID,
		Title:       p.Title,
		Description: p.Description,
		Handle:      p.Handle,
		Status:      p.Status.String(),
		Thumbnail:   p.Thumbnail,
	}
	if len(p.Options) > 0 {
		r.Options = make(map[string][]string, len(p.Options))
		for _, o := range p.Options {
			for _, v := range o.Values {
				r.Options[o.Title] = append(r.Options[o.Title], v.Value)
			}
		}
	}
	for _, v := range p.Variants {
		r.Variants = append(r.Variants, variantRecord{ID: v.ID, Title: v.Title, SKU: v.SKU})
		if v.SKU != "" {
			r.SKUs = append(r.SKUs, v.SKU)
		}
	}
	return r
}

type batchRequest struct {
	Requests []batchOperation `json:"requests"`
}

type batchOperation struct {
	Action string        `json:"action"`
	Body   productRecord `json:"body"`
}

type batchResponse struct {
	TaskID    int64    `json:"taskID"`
	ObjectIDs []string `json:"objectIDs"`
}

type errorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}
