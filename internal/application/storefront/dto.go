package storefront

// Content sources of a ProductView
const (
	SourceCMS     = "cms"
	SourceCatalog = "catalog"
)

// ProductView is a catalog product with display content for one locale.
type ProductView struct {
	ID          string        `json:"id"`
	Handle      string        `json:"handle"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Thumbnail   string        `json:"thumbnail,omitempty"`
	Locale      string        `json:"locale,omitempty"`
	Source      string        `json:"source"`
	Options     []OptionView  `json:"options"`
	Variants    []VariantView `json:"variants"`
}

// OptionView is a product option and its values.
type OptionView struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Values []string `json:"values"`
}

// VariantView is a purchasable variant.
type VariantView struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	SKU   string `json:"sku,omitempty"`
}
