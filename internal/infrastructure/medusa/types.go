package medusa

import (
	"encoding/json"

	"github.com/erp/catalogsync/internal/domain/productsync"
)

// ---------------------------------------------------------------------------
// Requests
// ---------------------------------------------------------------------------

type priceInput struct {
	Amount       json.Number `json:"amount"`
	CurrencyCode string      `json:"currency_code"`
}

type variantInput struct {
	ID              string            `json:"id,omitempty"`
	Title           string            `json:"title"`
	SKU             string            `json:"sku,omitempty"`
	Options         map[string]string `json:"options"`
	Prices          []priceInput      `json:"prices"`
	ManageInventory bool              `json:"manage_inventory"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

type optionInput struct {
	Title  string   `json:"title"`
	Values []string `json:"values"`
}

type idRef struct {
	ID string `json:"id"`
}

type imageInput struct {
	URL string `json:"url"`
}

type productInput struct {
	ID                string         `json:"id,omitempty"`
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	Status            string         `json:"status"`
	Handle            string         `json:"handle,omitempty"`
	HSCode            string         `json:"hs_code,omitempty"`
	ExternalID        string         `json:"external_id"`
	Options           []optionInput  `json:"options"`
	Variants          []variantInput `json:"variants"`
	ShippingProfileID string         `json:"shipping_profile_id,omitempty"`
	SalesChannels     []idRef        `json:"sales_channels,omitempty"`
	Thumbnail         string         `json:"thumbnail,omitempty"`
	Images            []imageInput   `json:"images,omitempty"`
}

type batchRequest struct {
	Create []productInput `json:"create,omitempty"`
	Update []productInput `json:"update,omitempty"`
}

func toProductInput(p productsync.DomainProduct) productInput {
	in := productInput{
		ID:                p.ID,
		Title:             p.Title,
		Description:       p.Description,
		Status:            p.Status.String(),
		Handle:            p.Handle,
		HSCode:            p.HSCode,
		ExternalID:        p.ExternalID,
		ShippingProfileID: p.ShippingProfileID,
		Thumbnail:         p.Thumbnail,
	}
	for _, o := range p.Options {
		in.Options = append(in.Options, optionInput{Title: o.Title, Values: o.Values})
	}
	for _, v := range p.Variants {
		vi := variantInput{
			ID:              v.ID,
			Title:           v.Title,
			SKU:             v.SKU,
			Options:         v.Options,
			ManageInventory: v.ManageInventory,
			Metadata:        v.Metadata,
		}
		for _, pr := range v.Prices {
			vi.Prices = append(vi.Prices, priceInput{Amount: json.Number(pr.Amount.String()), CurrencyCode: pr.CurrencyCode})
		}
		in.Variants = append(in.Variants, vi)
	}
	for _, id := range p.SalesChannelIDs {
		in.SalesChannels = append(in.SalesChannels, idRef{ID: id})
	}
	for _, url := range p.Images {
		in.Images = append(in.Images, imageInput{URL: url})
	}
	return in
}

// ---------------------------------------------------------------------------
// Responses
// ---------------------------------------------------------------------------

type optionValueDTO struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

type optionDTO struct {
	ID     string           `json:"id"`
	Title  string           `json:"title"`
	Values []optionValueDTO `json:"values"`
}

type variantDTO struct {
	ID      string           `json:"id"`
	Title   string           `json:"title"`
	SKU     *string          `json:"sku"`
	Options []optionValueDTO `json:"options"`
}

type productDTO struct {
	ID          string       `json:"id"`
	ExternalID  *string      `json:"external_id"`
	Title       string       `json:"title"`
	Description *string      `json:"description"`
	Handle      string       `json:"handle"`
	Status      string       `json:"status"`
	Thumbnail   *string      `json:"thumbnail"`
	Options     []optionDTO  `json:"options"`
	Variants    []variantDTO `json:"variants"`
}

type productListResponse struct {
	Products []productDTO `json:"products"`
	Count    int          `json:"count"`
}

type batchResponse struct {
	Created []productDTO `json:"created"`
	Updated []productDTO `json:"updated"`
}

type storeListResponse struct {
	Stores []struct {
		ID                    string  `json:"id"`
		DefaultSalesChannelID *string `json:"default_sales_channel_id"`
	} `json:"stores"`
}

type shippingProfileListResponse struct {
	ShippingProfiles []struct {
		ID string `json:"id"`
	} `json:"shipping_profiles"`
}

type errorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (p productDTO) toExisting() productsync.ExistingProduct {
	out := productsync.ExistingProduct{ID: p.ID, ExternalID: deref(p.ExternalID)}
	for _, v := range p.Variants {
		out.Variants = append(out.Variants, productsync.ExistingVariant{ID: v.ID, SKU: deref(v.SKU)})
	}
	return out
}

func (p productDTO) toCommitted() productsync.CommittedProduct {
	out := productsync.CommittedProduct{
		ID:          p.ID,
		ExternalID:  deref(p.ExternalID),
		Title:       p.Title,
		Description: deref(p.Description),
		Handle:      p.Handle,
		Status:      productsync.ProductStatus(p.Status),
		Thumbnail:   deref(p.Thumbnail),
	}
	for _, o := range p.Options {
		co := productsync.CommittedOption{ID: o.ID, Title: o.Title}
		for _, v := range o.Values {
			co.Values = append(co.Values, productsync.CommittedOptionValue{ID: v.ID, Value: v.Value})
		}
		out.Options = append(out.Options, co)
	}
	for _, v := range p.Variants {
		cv := productsync.CommittedVariant{ID: v.ID, Title: v.Title, SKU: deref(v.SKU)}
		for _, ov := range v.Options {
			cv.OptionValueIDs = append(cv.OptionValueIDs, ov.ID)
		}
		out.Variants = append(out.Variants, cv)
	}
	return out
}
