package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/catalogsync/internal/interfaces/http/dto"
)

type productPayload struct {
	Name string `json:"name" binding:"required,max=5"`
	Type string `json:"type" binding:"omitempty,oneof=product consu"`
}

func newValidationRouter() *gin.Engine {
	SetupValidator()

	router := gin.New()
	router.Use(RequestID())
	router.POST("/test", func(c *gin.Context) {
		var req productPayload
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return router
}

func TestHandleValidationError(t *testing.T) {
	router := newValidationRouter()

	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"name":"too long name","type":"kit"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, "req-v")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-v", resp.Error.RequestID)
	require.Len(t, resp.Error.Details, 2)

	byField := map[string]dto.ValidationDetail{}
	for _, d := range resp.Error.Details {
		byField[d.Field] = d
	}
	assert.Equal(t, "Must be at most 5 characters", byField["name"].Message)
	assert.Equal(t, dto.ErrCodeValidationLength, byField["name"].Code)
	assert.Equal(t, "Must be one of: product consu", byField["type"].Message)
	assert.Equal(t, dto.ErrCodeValidationFormat, byField["type"].Code)
}

func TestHandleValidationError_Required(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newValidationRouter().ServeHTTP(w, req)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "name", resp.Error.Details[0].Field)
	assert.Equal(t, dto.ErrCodeValidationRequired, resp.Error.Details[0].Code)
}

func TestFormatValidationErrors_NonValidatorError(t *testing.T) {
	resp := FormatValidationErrors(assert.AnError, "req-1")
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Empty(t, resp.Error.Details)
}
