package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/stripesync/internal/payment/domain"
)

// Stripe caps event payloads well below this.
const maxWebhookBodyBytes = 1 << 20

type createCheckoutSessionRequest struct {
	PriceID   string `json:"price_id" binding:"required"`
	OwnerType string `json:"owner_type"`
	OwnerID   string `json:"owner_id"`
}

// @Summary      Create Checkout Session
// @Description  Open a hosted checkout for the caller or a billing owner they manage
// @Tags         checkout
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body createCheckoutSessionRequest true "Checkout Request"
// @Success      200  {object}  DataResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /checkout [post]
func (s *Server) CreateCheckoutSession(c *gin.Context) {
	var req createCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidFieldError("price_id"))
		return
	}

	ownerType := strings.TrimSpace(req.OwnerType)
	ownerID := strings.TrimSpace(req.OwnerID)
	if (ownerType == "") != (ownerID == "") {
		field := "owner_id"
		if ownerType == "" {
			field = "owner_type"
		}
		AbortWithError(c, invalidFieldError(field))
		return
	}

	result, err := s.checkoutSvc.CreateSession(c.Request.Context(), domain.CheckoutRequest{
		ActorUserID: userIDFromContext(c),
		PriceID:     req.PriceID,
		OwnerType:   ownerType,
		OwnerID:     ownerID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, result)
}

// @Summary      Create Customer Portal Session
// @Tags         checkout
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  DataResponse
// @Router       /customer-portal [post]
func (s *Server) CreatePortalSession(c *gin.Context) {
	session, err := s.portalSvc.CreateSession(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, session)
}

// StripeWebhook
// POST /api/webhooks/stripe
func (s *Server) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			AbortWithError(c, domain.ErrInvalidPayload)
			return
		}
		AbortWithError(c, err)
		return
	}

	if err := s.webhookSvc.IngestWebhook(c.Request.Context(), payload, c.Request.Header); err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, gin.H{"received": true})
}
