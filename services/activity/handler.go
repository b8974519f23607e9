package activity

import (
	"net/http"

	"delivery-marketplace/pkg/db/pagination"
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
	r.Private.GET("/admin/activity-logs", h.list)
}

func (h *Handler) list(c *gin.Context) {
	var f Filter
	var p pagination.Pagination
	if err := c.ShouldBindQuery(&f); err != nil {
		_ = c.Error(errutil.ValidationFailed("invalid filter", err))
		return
	}
	if err := c.ShouldBindQuery(&p); err != nil {
		_ = c.Error(errutil.ValidationFailed("invalid pagination", err))
		return
	}

	page, err := h.svc.List(c.Request.Context(), f, p)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, page)
}
