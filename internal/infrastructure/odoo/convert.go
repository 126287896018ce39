package odoo

import (
	"github.com/erp/catalogsync/internal/domain/productsync"
)

func toCurrency(m many2one) productsync.CurrencyRef {
	return productsync.CurrencyRef{
		ID:          m.ID,
		Code:        m.Name,
		DisplayName: m.DisplayName,
	}
}

func toVariant(rec variantRecord) productsync.ExternalVariant {
	v := productsync.ExternalVariant{
		ID:          rec.ID,
		DisplayName: string(rec.DisplayName),
		Price:       rec.Price.Decimal,
		SKU:         string(rec.DefaultCode),
		Currency:    toCurrency(rec.Currency),
		Active:      rec.Active,
	}
	for _, val := range rec.Values {
		v.Assignments = append(v.Assignments, productsync.AttributeValue{
			Attribute: val.Attribute.DisplayName,
			Value:     string(val.Name),
		})
	}
	return v
}

// toProduct converts a template record; variants are attached in the order
// the template lists them. Variant ids missing from the lookup are skipped.
func toProduct(rec templateRecord, variants map[int64]variantRecord) productsync.ExternalProduct {
	p := productsync.ExternalProduct{
		ID:              rec.ID,
		DisplayName:     string(rec.DisplayName),
		Name:            string(rec.Name),
		IsPublished:     rec.IsPublished,
		WebsiteURL:      string(rec.WebsiteURL),
		Price:           rec.ListPrice.Decimal,
		Description:     string(rec.Description),
		SaleDescription: string(rec.DescriptionSale),
		QtyAvailable:    rec.QtyAvailable.Decimal,
		TaxIDs:          []int64(rec.TaxIDs),
		HSCode:          string(rec.HSCode),
		Images: productsync.ProductImages{
			Image1920: string(rec.Image1920),
			Image1024: string(rec.Image1024),
			Image512:  string(rec.Image512),
			Image256:  string(rec.Image256),
			Image128:  string(rec.Image128),
		},
		Currency: toCurrency(rec.Currency),
		Active:   rec.Active,
	}

	for _, line := range rec.AttributeLines {
		al := productsync.AttributeLine{Name: line.Attribute.DisplayName}
		for _, v := range line.Values {
			al.Values = append(al.Values, string(v.DisplayName))
		}
		p.AttributeLines = append(p.AttributeLines, al)
	}

	for _, id := range rec.VariantIDs {
		if v, ok := variants[id]; ok {
			p.Variants = append(p.Variants, toVariant(v))
		}
	}
	return p
}
