package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/search"
	"staybook/internal/app/queries"
)

const dateLayout = "2006-01-02"

type SearchHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

// Search handles GET /search?guest_number&checkin_date&checkout_date&lat&lon&distance.
func (h SearchHandler) Search(c *gin.Context) {
	guests, err := strconv.Atoi(c.Query("guest_number"))
	if err != nil {
		badRequest(c, "guest_number must be an integer")
		return
	}
	checkIn, err := parseDate(c.Query("checkin_date"))
	if err != nil {
		badRequest(c, "checkin_date must be YYYY-MM-DD")
		return
	}
	checkOut, err := parseDate(c.Query("checkout_date"))
	if err != nil {
		badRequest(c, "checkout_date must be YYYY-MM-DD")
		return
	}
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		badRequest(c, "lat must be a number")
		return
	}
	lon, err := strconv.ParseFloat(c.Query("lon"), 64)
	if err != nil {
		badRequest(c, "lon must be a number")
		return
	}
	var radius float64
	if raw := strings.TrimSpace(c.Query("distance")); raw != "" {
		if radius, err = strconv.ParseFloat(raw, 64); err != nil {
			badRequest(c, "distance must be a number of kilometres")
			return
		}
	}
	q := search.SearchStaysQuery{
		GuestNumber: guests,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		Lat:         lat,
		Lon:         lon,
		RadiusKm:    radius,
	}
	result, err := queries.Ask[search.SearchStaysQuery, dto.StayCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseDate(raw string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, strings.TrimSpace(raw), time.UTC)
}

var _ SearchHTTP = SearchHandler{}
