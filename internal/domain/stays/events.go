package stays

import "time"

type StayListed struct {
	StayID   StayID
	Host     HostID
	Capacity int
	Lat      float64
	Lon      float64
	At       time.Time
}

func (e StayListed) EventName() string     { return "stay.listed" }
func (e StayListed) AggregateID() string   { return string(e.StayID) }
func (e StayListed) OccurredAt() time.Time { return e.At }

type StayDelisted struct {
	StayID StayID
	Host   HostID
	At     time.Time
}

func (e StayDelisted) EventName() string     { return "stay.delisted" }
func (e StayDelisted) AggregateID() string   { return string(e.StayID) }
func (e StayDelisted) OccurredAt() time.Time { return e.At }
