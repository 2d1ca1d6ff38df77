package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	appreservations "staybook/internal/app/handlers/reservations"
	"staybook/internal/app/middleware"
	"staybook/internal/app/queries"
)

type ReservationHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type bookRequest struct {
	StayID       string `json:"stay_id" binding:"required"`
	CheckInDate  string `json:"checkin_date" binding:"required"`
	CheckOutDate string `json:"checkout_date" binding:"required"`
}

func (h ReservationHandler) Book(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	checkIn, err := parseDate(req.CheckInDate)
	if err != nil {
		badRequest(c, "checkin_date must be YYYY-MM-DD")
		return
	}
	checkOut, err := parseDate(req.CheckOutDate)
	if err != nil {
		badRequest(c, "checkout_date must be YYYY-MM-DD")
		return
	}
	cmd := appreservations.BookStayCommand{
		StayID:          req.StayID,
		GuestID:         actorID(c),
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[appreservations.BookStayCommand, *dto.Reservation](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h ReservationHandler) Cancel(c *gin.Context) {
	cmd := appreservations.CancelReservationCommand{ReservationID: c.Param("id"), GuestID: actorID(c)}
	if _, err := commands.Dispatch[appreservations.CancelReservationCommand, *dto.Reservation](c.Request.Context(), h.Commands, cmd); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h ReservationHandler) ListMine(c *gin.Context) {
	guest := actorID(c)
	if guest == "" {
		writeError(c, h.Logger, middleware.ErrUnauthenticated)
		return
	}
	q := appreservations.ListGuestReservationsQuery{GuestID: guest}
	result, err := queries.Ask[appreservations.ListGuestReservationsQuery, dto.ReservationCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ ReservationHTTP = ReservationHandler{}
