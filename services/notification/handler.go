package notification

import (
	"net/http"

	"delivery-marketplace/pkg/auth"
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
	g := r.Private.Group("/notifications")
	g.GET("", h.list)
	g.POST("/read-all", h.markAllRead)
	g.PATCH("/:id/read", h.markRead)
	g.DELETE("/:id", h.delete)
}

type listQuery struct {
	UnreadOnly bool `form:"unreadOnly"`
	pagination.Pagination
}

func (h *Handler) list(c *gin.Context) {
	p, _ := auth.FromContext(c.Request.Context())

	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		_ = c.Error(errutil.ValidationFailed("invalid query", err))
		return
	}

	page, err := h.svc.List(c.Request.Context(), p.UserID, q.UnreadOnly, q.Pagination)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) markRead(c *gin.Context) {
	p, _ := auth.FromContext(c.Request.Context())
	if err := h.svc.MarkRead(c.Request.Context(), p.UserID, c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) markAllRead(c *gin.Context) {
	p, _ := auth.FromContext(c.Request.Context())
	n, err := h.svc.MarkAllRead(c.Request.Context(), p.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (h *Handler) delete(c *gin.Context) {
	p, _ := auth.FromContext(c.Request.Context())
	if err := h.svc.Delete(c.Request.Context(), p.UserID, c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
