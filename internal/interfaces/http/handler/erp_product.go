package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	erpapp "github.com/erp/catalogsync/internal/application/erpadmin"
)

// ERPProductService manages product templates in the ERP
type ERPProductService interface {
	List(ctx context.Context) (*erpapp.ProductListResponse, error)
	Get(ctx context.Context, id int64) (*erpapp.ProductResponse, error)
	Create(ctx context.Context, req erpapp.CreateProductRequest) (*erpapp.ProductResponse, error)
	Update(ctx context.Context, id int64, req erpapp.UpdateProductRequest) (*erpapp.ProductResponse, error)
	Delete(ctx context.Context, id int64) error
}

// ERPProductHandler handles the ERP product template admin endpoints
type ERPProductHandler struct {
	BaseHandler
	service ERPProductService
}

// NewERPProductHandler creates a new ERPProductHandler
func NewERPProductHandler(service ERPProductService) *ERPProductHandler {
	return &ERPProductHandler{service: service}
}

// parseProductID reads the numeric :id path parameter. It writes the error
// response and returns false when the ID is not a positive integer.
func (h *ERPProductHandler) parseProductID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.BadRequest(c, "Invalid product ID")
		return 0, false
	}
	return id, true
}

// List godoc
// @Summary      List ERP products
// @Description  List every product template in the ERP
// @Tags         erp-products
// @Produce      json
// @Success      200 {object} dto.Response{data=erpadmin.ProductListResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/odoo-rest/products [get]
func (h *ERPProductHandler) List(c *gin.Context) {
	result, err := h.service.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Get godoc
// @Summary      Get ERP product
// @Description  Return a product template by ID
// @Tags         erp-products
// @Produce      json
// @Param        id path int true "Product template ID"
// @Success      200 {object} dto.Response{data=erpadmin.ProductResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/odoo-rest/products/{id} [get]
func (h *ERPProductHandler) Get(c *gin.Context) {
	id, ok := h.parseProductID(c)
	if !ok {
		return
	}
	product, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// Create godoc
// @Summary      Create ERP product
// @Description  Create a product template; name is required
// @Tags         erp-products
// @Accept       json
// @Produce      json
// @Param        request body erpadmin.CreateProductRequest true "Product template"
// @Success      201 {object} dto.Response{data=erpadmin.ProductResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/odoo-rest/products [post]
func (h *ERPProductHandler) Create(c *gin.Context) {
	var req erpapp.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	product, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, product)
}

// Update godoc
// @Summary      Update ERP product
// @Description  Write the given fields of a product template; at least one is required
// @Tags         erp-products
// @Accept       json
// @Produce      json
// @Param        id      path int                           true "Product template ID"
// @Param        request body erpadmin.UpdateProductRequest true "Fields to write"
// @Success      200 {object} dto.Response{data=erpadmin.ProductResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/odoo-rest/products/{id} [put]
func (h *ERPProductHandler) Update(c *gin.Context) {
	id, ok := h.parseProductID(c)
	if !ok {
		return
	}
	var req erpapp.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	product, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// Delete godoc
// @Summary      Delete ERP product
// @Description  Delete a product template and drop its CMS and search copies
// @Tags         erp-products
// @Param        id path int true "Product template ID"
// @Success      204
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/odoo-rest/products/{id} [delete]
func (h *ERPProductHandler) Delete(c *gin.Context) {
	id, ok := h.parseProductID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
