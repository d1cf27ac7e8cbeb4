package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mentorbridge/internal/domain/payment"
	"github.com/yungbote/mentorbridge/internal/http/response"
	"github.com/yungbote/mentorbridge/internal/platform/ctxutil"
	"github.com/yungbote/mentorbridge/internal/services"
)

type CheckoutHandler struct {
	purchases services.PurchaseService
}

func NewCheckoutHandler(purchases services.PurchaseService) *CheckoutHandler {
	return &CheckoutHandler{purchases: purchases}
}

// POST /api/checkout/:type/:id/order
// Returns the hosted checkout options once the order exists.
func (h *CheckoutHandler) Start(c *gin.Context) {
	bt, ok := payment.ParseBookingType(c.Param("type"))
	if !ok {
		response.RespondError(c, http.StatusBadRequest, "invalid_booking_type", errors.New("booking type must be course or cohort"))
		return
	}
	ctx := c.Request.Context()
	start, err := h.purchases.Start(ctx, ctxutil.SessionID(ctx), bt, c.Param("id"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"checkout": start})
}

// POST /api/checkout/callback
// body: the hosted checkout success payload.
func (h *CheckoutHandler) Callback(c *gin.Context) {
	var req payment.Result
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ctx := c.Request.Context()
	res, err := h.purchases.Complete(ctx, ctxutil.SessionID(ctx), req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	// A failed verification is still a completed handshake; the result says so.
	response.RespondOK(c, gin.H{"result": res})
}
