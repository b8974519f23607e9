package loyalty

import (
	"net/http"

	"delivery-marketplace/pkg/auth"
	"delivery-marketplace/pkg/errutil"
	"delivery-marketplace/pkg/httpapi"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func RegisterRoutes(r *httpapi.Router, h *Handler) {
	r.Private.GET("/customers/:id/loyalty", h.summary)
	r.Private.POST("/customers/:id/loyalty/redeem", h.redeem)
	r.Private.GET("/admin/customers/:id/loyalty/verify", h.verify)
}

// customerFromPath allows admins to read any customer, everyone else only
// themselves.
func customerFromPath(c *gin.Context) (string, error) {
	p, ok := auth.FromContext(c.Request.Context())
	if !ok {
		return "", errutil.Unauthorized("authentication required", nil)
	}

	id := c.Param("id")
	if id != p.UserID && !p.IsAdmin() {
		return "", errutil.Forbidden("cannot access another customer's loyalty account", nil)
	}
	return id, nil
}

func (h *Handler) summary(c *gin.Context) {
	id, err := customerFromPath(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	s, err := h.svc.Summary(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, s)
}

type redeemRequest struct {
	Points int64 `json:"points" binding:"required"`
}

func (h *Handler) redeem(c *gin.Context) {
	p, _ := auth.FromContext(c.Request.Context())
	if c.Param("id") != p.UserID {
		_ = c.Error(errutil.Forbidden("cannot redeem for another customer", nil))
		return
	}

	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.ValidationFailed("invalid request body", err))
		return
	}

	entry, err := h.svc.Redeem(c.Request.Context(), p.UserID, req.Points)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) verify(c *gin.Context) {
	report, err := h.svc.VerifyBalance(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, report)
}
