package availability

import (
	"time"

	"staybook/internal/domain/stays"
)

// LedgerRepaired is recorded when reconciliation changed a stay's rows.
type LedgerRepaired struct {
	StayID   string
	Inserted int
	Deleted  int
	At       time.Time
}

func (e LedgerRepaired) EventName() string     { return "ledger.repaired" }
func (e LedgerRepaired) AggregateID() string   { return e.StayID }
func (e LedgerRepaired) OccurredAt() time.Time { return e.At }

func LedgerRepairedEvent(id stays.StayID, inserted, deleted int, at time.Time) LedgerRepaired {
	return LedgerRepaired{StayID: string(id), Inserted: inserted, Deleted: deleted, At: at.UTC()}
}
