package server

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// currentOnly reads ?current, which defaults to true.
func currentOnly(c *gin.Context) (bool, error) {
	raw, ok := c.GetQuery("current")
	if !ok || raw == "" {
		return true, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, invalidFieldError("current")
	}
	return v, nil
}

// @Summary      List Subscriptions
// @Description  Subscriptions of the caller and of the billing accounts they manage
// @Tags         subscriptions
// @Produce      json
// @Security     BearerAuth
// @Param        current  query  bool  false  "Only active and trialing (default true)"
// @Success      200  {object}  DataResponse
// @Router       /subscriptions [get]
func (s *Server) ListSubscriptions(c *gin.Context) {
	current, err := currentOnly(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	subs, err := s.subscriptionSvc.ListUserSubscriptions(c.Request.Context(), userIDFromContext(c), current)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, subs)
}

// @Summary      List Subscription Items
// @Tags         subscriptions
// @Produce      json
// @Security     BearerAuth
// @Param        current  query  bool  false  "Only active and trialing (default true)"
// @Success      200  {object}  DataResponse
// @Router       /subscription-items [get]
func (s *Server) ListSubscriptionItems(c *gin.Context) {
	current, err := currentOnly(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.subscriptionSvc.ListUserSubscriptionItems(c.Request.Context(), userIDFromContext(c), current)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, items)
}
