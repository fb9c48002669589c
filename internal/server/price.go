package server

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// @Summary      List Prices
// @Description  Active prices of active products
// @Tags         prices
// @Produce      json
// @Param        expand  query  string  false  "Pass feature to include product features"
// @Success      200  {object}  DataResponse
// @Router       /prices [get]
func (s *Server) ListPrices(c *gin.Context) {
	expand := false
	for _, v := range c.QueryArray("expand") {
		if strings.TrimSpace(v) == "feature" {
			expand = true
		}
	}

	prices, err := s.priceSvc.ListAvailablePrices(c.Request.Context(), expand)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, prices)
}

// @Summary      List Subscribable Prices
// @Description  Available prices minus products the caller already subscribes to
// @Tags         prices
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  DataResponse
// @Router       /prices/subscribable [get]
func (s *Server) ListSubscribablePrices(c *gin.Context) {
	prices, err := s.priceSvc.ListSubscribablePrices(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, prices)
}
