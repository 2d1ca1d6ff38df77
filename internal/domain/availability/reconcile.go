package availability

import (
	"sort"
	"time"

	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/stays"
)

// Occupancy is the input to Diff: one active reservation's nights.
type Occupancy struct {
	ReservationID string
	Range         daterange.DateRange
}

// Patch lists the ledger rows to add and remove so that the ledger matches
// the active reservations of a stay.
type Patch struct {
	Insert map[string][]time.Time
	Delete []time.Time
}

func (p Patch) Empty() bool {
	return len(p.Insert) == 0 && len(p.Delete) == 0
}

func (p Patch) Inserted() int {
	n := 0
	for _, dates := range p.Insert {
		n += len(dates)
	}
	return n
}

// Diff compares the current ledger rows of a stay with the nights its active
// reservations occupy. Rows owned by a different reservation than expected
// are rewritten.
func Diff(stayID stays.StayID, current []ReservedNight, active []Occupancy) Patch {
	expected := make(map[time.Time]string)
	for _, occ := range active {
		for _, d := range occ.Range.Dates() {
			expected[d] = occ.ReservationID
		}
	}
	patch := Patch{Insert: map[string][]time.Time{}}
	present := make(map[time.Time]struct{}, len(current))
	for _, row := range current {
		if row.StayID != stayID {
			continue
		}
		d := daterange.Day(row.Date)
		owner, ok := expected[d]
		if !ok || (row.ReservationID != "" && owner != row.ReservationID) {
			patch.Delete = append(patch.Delete, d)
			continue
		}
		present[d] = struct{}{}
	}
	for d, owner := range expected {
		if _, ok := present[d]; ok {
			continue
		}
		patch.Insert[owner] = append(patch.Insert[owner], d)
	}
	for owner := range patch.Insert {
		dates := patch.Insert[owner]
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	}
	if len(patch.Insert) == 0 {
		patch.Insert = nil
	}
	sort.Slice(patch.Delete, func(i, j int) bool { return patch.Delete[i].Before(patch.Delete[j]) })
	return patch
}
