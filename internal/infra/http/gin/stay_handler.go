package ginserver

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	appreservations "staybook/internal/app/handlers/reservations"
	appstays "staybook/internal/app/handlers/stays"
	"staybook/internal/app/middleware"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
)

const maxImagesPerStay = 10

type StayHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

func (h StayHandler) List(c *gin.Context) {
	q := appstays.ListHostStaysQuery{HostID: actorID(c)}
	result, err := queries.Ask[appstays.ListHostStaysQuery, dto.StayCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h StayHandler) Get(c *gin.Context) {
	q := appstays.GetHostStayQuery{HostID: actorID(c), StayID: c.Param("id")}
	result, err := queries.Ask[appstays.GetHostStayQuery, dto.Stay](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Create handles a multipart form: name, description, address, guest_number,
// optional lat and lon, and any number of "images" files.
func (h StayHandler) Create(c *gin.Context) {
	if actorID(c) == "" {
		writeError(c, h.Logger, middleware.ErrUnauthenticated)
		return
	}
	capacity, err := strconv.Atoi(strings.TrimSpace(c.PostForm("guest_number")))
	if err != nil {
		badRequest(c, "guest_number must be an integer")
		return
	}
	lat, lon, err := optionalCoordinates(c.PostForm("lat"), c.PostForm("lon"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	var files []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil && form != nil {
		files = form.File["images"]
	}
	if len(files) > maxImagesPerStay {
		badRequest(c, "too many images")
		return
	}
	uploads := make([]policies.ImageUpload, 0, len(files))
	defer func() {
		for _, u := range uploads {
			if closer, ok := u.Body.(multipart.File); ok {
				_ = closer.Close()
			}
		}
	}()
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			badRequest(c, "unreadable image "+fh.Filename)
			return
		}
		uploads = append(uploads, policies.ImageUpload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}
	cmd := appstays.CreateStayCommand{
		HostID:      actorID(c),
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		Address:     c.PostForm("address"),
		Capacity:    capacity,
		Lat:         lat,
		Lon:         lon,
		Images:      uploads,
	}
	result, err := commands.Dispatch[appstays.CreateStayCommand, *dto.Stay](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h StayHandler) Delete(c *gin.Context) {
	cmd := appstays.DeleteStayCommand{HostID: actorID(c), StayID: c.Param("id")}
	if _, err := commands.Dispatch[appstays.DeleteStayCommand, *appstays.DeleteStayResult](c.Request.Context(), h.Commands, cmd); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h StayHandler) Reservations(c *gin.Context) {
	q := appreservations.ListStayReservationsQuery{StayID: c.Param("id"), HostID: actorID(c)}
	result, err := queries.Ask[appreservations.ListStayReservationsQuery, dto.ReservationCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h StayHandler) Calendar(c *gin.Context) {
	q := appstays.GetStayCalendarQuery{HostID: actorID(c), StayID: c.Param("id")}
	result, err := queries.Ask[appstays.GetStayCalendarQuery, dto.StayCalendar](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func optionalCoordinates(rawLat, rawLon string) (*float64, *float64, error) {
	rawLat, rawLon = strings.TrimSpace(rawLat), strings.TrimSpace(rawLon)
	if rawLat == "" && rawLon == "" {
		return nil, nil, nil
	}
	if rawLat == "" || rawLon == "" {
		return nil, nil, errors.New("lat and lon must be supplied together")
	}
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil {
		return nil, nil, errors.New("lat must be a number")
	}
	lon, err := strconv.ParseFloat(rawLon, 64)
	if err != nil {
		return nil, nil, errors.New("lon must be a number")
	}
	return &lat, &lon, nil
}

var _ StayHTTP = StayHandler{}
