package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/erp/catalogsync/internal/application/storefront"
)

// StorefrontService resolves localized product views
type StorefrontService interface {
	Product(ctx context.Context, handle, locale, acceptLanguage string) (*storefront.ProductView, error)
	Locales(ctx context.Context) ([]storefront.Locale, error)
}

// StorefrontHandler handles the public storefront endpoints
type StorefrontHandler struct {
	BaseHandler
	service StorefrontService
}

// NewStorefrontHandler creates a new StorefrontHandler
func NewStorefrontHandler(service StorefrontService) *StorefrontHandler {
	return &StorefrontHandler{service: service}
}

// ProductRequest selects the locale of a product view
type ProductRequest struct {
	Locale string `form:"locale" binding:"omitempty,max=35"`
}

// GetProduct godoc
// @Summary      Localized product
// @Description  Return the product with the given handle in the negotiated locale
// @Tags         store
// @Produce      json
// @Param        handle          path   string true  "Product handle"
// @Param        locale          query  string false "Preferred locale"
// @Param        Accept-Language header string false "Fallback locale preferences"
// @Success      200 {object} dto.Response{data=storefront.ProductView}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /store/products/{handle} [get]
func (h *StorefrontHandler) GetProduct(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	view, err := h.service.Product(c.Request.Context(), c.Param("handle"), req.Locale, c.GetHeader("Accept-Language"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if view.Locale != "" {
		c.Header("Content-Language", view.Locale)
	}
	c.Header("Vary", "Accept-Language")
	h.Success(c, view)
}

// ListLocales godoc
// @Summary      Content locales
// @Description  Return the locales the CMS serves
// @Tags         store
// @Produce      json
// @Success      200 {object} dto.Response{data=[]storefront.Locale}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /store/locales [get]
func (h *StorefrontHandler) ListLocales(c *gin.Context) {
	locales, err := h.service.Locales(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if locales == nil {
		locales = []storefront.Locale{}
	}
	h.Success(c, locales)
}
