package address

import (
	"net/http"

	"delivery-marketplace/pkg/errutil"
	"delivery-marketplace/pkg/httpapi"

	"github.com/gin-gonic/gin"
)

type validateRequest struct {
	PostalCode string `json:"postalCode"`
	City       string `json:"city"`
}

type Handler struct {
	validator *Validator
}

func NewHandler(v *Validator) *Handler {
	return &Handler{validator: v}
}

func RegisterRoutes(r *httpapi.Router, h *Handler) {
	r.Public.POST("/address/validate", h.validate)
}

// validate answers 200 for both outcomes; valid=false is a result, not an error.
func (h *Handler) validate(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.ValidationFailed("invalid request body", err))
		return
	}

	c.JSON(http.StatusOK, h.validator.Validate(req.PostalCode, req.City))
}
