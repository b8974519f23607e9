package driver

import (
	"net/http"

	"delivery-marketplace/pkg/auth"
	"delivery-marketplace/pkg/db/pagination"
	"delivery-marketplace/pkg/errutil"
	"delivery-marketplace/pkg/httpapi"
	"delivery-marketplace/services/approval"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func RegisterRoutes(r *httpapi.Router, h *Handler) {
	g := r.Private.Group("/admin/drivers")
	g.GET("", h.list)
	g.PATCH("/:id/:action", h.applyAction)
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

func (h *Handler) applyAction(c *gin.Context) {
	actor, _ := auth.FromContext(c.Request.Context())
	if !actor.IsAdmin() {
		_ = c.Error(errutil.Forbidden("admin role required", nil))
		return
	}

	action, err := approval.ParseAction(c.Param("action"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	d, err := h.svc.ApplyAction(c.Request.Context(), actor, c.Param("id"), action, c.ClientIP())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, d)
}
