package geo

import (
	"net/http"

	"delivery-marketplace/pkg/errutil"
	"delivery-marketplace/pkg/httpapi"

	"github.com/gin-gonic/gin"
)

type estimateQuery struct {
	FromLat *float64 `form:"fromLat" binding:"required,gte=-90,lte=90"`
	FromLon *float64 `form:"fromLon" binding:"required,gte=-180,lte=180"`
	ToLat   *float64 `form:"toLat" binding:"required,gte=-90,lte=90"`
	ToLon   *float64 `form:"toLon" binding:"required,gte=-180,lte=180"`
}

func RegisterRoutes(r *httpapi.Router) {
	r.Public.GET("/delivery/estimate", estimate)
}

func estimate(c *gin.Context) {
	var q estimateQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		_ = c.Error(errutil.ValidationFailed("fromLat, fromLon, toLat and toLon are required coordinates", err))
		return
	}

	c.JSON(http.StatusOK, EstimateDelivery(
		Point{Lat: *q.FromLat, Lon: *q.FromLon},
		Point{Lat: *q.ToLat, Lon: *q.ToLon},
	))
}
