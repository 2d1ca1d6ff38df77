package dto

import (
	"sort"
	"time"

	"staybook/internal/domain/availability"
	"staybook/internal/domain/reservations"
	"staybook/internal/domain/stays"
)

const dateLayout = "2006-01-02"

type Reservation struct {
	ID           string    `json:"id"`
	StayID       string    `json:"stay_id"`
	GuestID      string    `json:"guest_id"`
	CheckInDate  string    `json:"checkin_date"`
	CheckOutDate string    `json:"checkout_date"`
	Nights       int       `json:"nights"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

type ReservationCollection struct {
	Items []Reservation `json:"items"`
}

type Stay struct {
	ID          string    `json:"id"`
	HostID      string    `json:"host_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Address     string    `json:"address"`
	Capacity    int       `json:"capacity"`
	Images      []string  `json:"images"`
	CreatedAt   time.Time `json:"created_at"`
}

type StayCollection struct {
	Items []Stay `json:"items"`
}

type ReservedNight struct {
	Date          string `json:"date"`
	ReservationID string `json:"reservation_id,omitempty"`
}

type StayCalendar struct {
	StayID string          `json:"stay_id"`
	Nights []ReservedNight `json:"nights"`
}

type LedgerRepair struct {
	Stays    int `json:"stays"`
	Inserted int `json:"inserted"`
	Deleted  int `json:"deleted"`
}

func MapReservation(r *reservations.Reservation) Reservation {
	return Reservation{
		ID:           string(r.ID),
		StayID:       string(r.StayID),
		GuestID:      r.GuestID,
		CheckInDate:  r.Range.CheckIn.Format(dateLayout),
		CheckOutDate: r.Range.CheckOut.Format(dateLayout),
		Nights:       r.Range.Nights(),
		Status:       string(r.State),
		CreatedAt:    r.CreatedAt,
	}
}

// MapReservations orders by check-in, then id.
func MapReservations(items []*reservations.Reservation) ReservationCollection {
	out := make([]Reservation, 0, len(items))
	for _, r := range items {
		out = append(out, MapReservation(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CheckInDate != out[j].CheckInDate {
			return out[i].CheckInDate < out[j].CheckInDate
		}
		return out[i].ID < out[j].ID
	})
	return ReservationCollection{Items: out}
}

func MapStay(s *stays.Stay) Stay {
	images := append([]string(nil), s.Images...)
	if images == nil {
		images = []string{}
	}
	return Stay{
		ID:          string(s.ID),
		HostID:      string(s.Host),
		Name:        s.Name,
		Description: s.Description,
		Address:     s.Address,
		Capacity:    s.Capacity,
		Images:      images,
		CreatedAt:   s.CreatedAt,
	}
}

// MapStays orders by id so search results are stable.
func MapStays(items []*stays.Stay) StayCollection {
	out := make([]Stay, 0, len(items))
	for _, s := range items {
		out = append(out, MapStay(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return StayCollection{Items: out}
}

func MapCalendar(id stays.StayID, nights []availability.ReservedNight) StayCalendar {
	out := make([]ReservedNight, 0, len(nights))
	for _, n := range nights {
		out = append(out, ReservedNight{Date: n.Date.UTC().Format(dateLayout), ReservationID: n.ReservationID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return StayCalendar{StayID: string(id), Nights: out}
}
