package order

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
	r.Private.POST("/orders", h.checkout)
	r.Private.GET("/orders/:id", h.get)
	r.Private.POST("/orders/:id/events", h.applyEvent)
	r.Private.GET("/customers/:id/orders", h.listForCustomer)
}

func (h *Handler) checkout(c *gin.Context) {
	actor, _ := auth.FromContext(c.Request.Context())

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.ValidationFailed("invalid request body", err))
		return
	}

	o, err := h.svc.Checkout(c.Request.Context(), actor, req, c.ClientIP())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *Handler) get(c *gin.Context) {
	actor, _ := auth.FromContext(c.Request.Context())

	o, err := h.svc.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type eventRequest struct {
	Event  string `json:"event" binding:"required"`
	Reason string `json:"reason"`
}

func (h *Handler) applyEvent(c *gin.Context) {
	actor, _ := auth.FromContext(c.Request.Context())

	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.ValidationFailed("invalid request body", err))
		return
	}

	event, err := ParseEvent(req.Event)
	if err != nil {
		_ = c.Error(err)
		return
	}
	// Payment events only come from verified processor webhooks.
	if event == EventPaymentSucceeded || event == EventPaymentFailed {
		_ = c.Error(errutil.Forbidden("payment events cannot be submitted by clients", nil))
		return
	}

	res, err := h.svc.Apply(c.Request.Context(), actor, c.Param("id"), Command{
		Event:     event,
		Reason:    req.Reason,
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) listForCustomer(c *gin.Context) {
	actor, _ := auth.FromContext(c.Request.Context())

	var p pagination.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		_ = c.Error(errutil.ValidationFailed("invalid pagination", err))
		return
	}

	page, err := h.svc.ListForCustomer(c.Request.Context(), actor, c.Param("id"), p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}
