package recurrence

import "cloud.google.com/go/civil"

// State names a lineage variant.
type State string

const (
	StateActive     State = "active"
	StatePaused     State = "paused"
	StateCancelled  State = "cancelled"
	StateSuperseded State = "superseded"
)

// Lineage is the lifecycle position of a rule: Active, Paused, Cancelled
// or Superseded.
type Lineage interface {
	State() State
	isLineage()
}

type Active struct{}

type Paused struct{}

// Cancelled rules never generate occurrences dated after Date.
type Cancelled struct {
	Date civil.Date
}

// Superseded rules were replaced by SuccessorID from EffectiveDate on.
type Superseded struct {
	SuccessorID   string
	EffectiveDate civil.Date
}

func (Active) State() State     { return StateActive }
func (Paused) State() State     { return StatePaused }
func (Cancelled) State() State  { return StateCancelled }
func (Superseded) State() State { return StateSuperseded }

func (Active) isLineage()     {}
func (Paused) isLineage()     {}
func (Cancelled) isLineage()  {}
func (Superseded) isLineage() {}

// Projection is the persisted column form of a lineage.
type Projection struct {
	Active           bool
	CancellationDate *civil.Date
	SuccessorID      *string
}

// Project flattens l into its columns.
func Project(l Lineage) Projection {
	switch v := l.(type) {
	case Paused:
		return Projection{}
	case Cancelled:
		d := v.Date
		return Projection{CancellationDate: &d}
	case Superseded:
		d := v.EffectiveDate
		id := v.SuccessorID
		return Projection{CancellationDate: &d, SuccessorID: &id}
	}
	return Projection{Active: true}
}

// Lineage rebuilds the variant from its columns. An inactive rule with no
// cancellation date is paused.
func (p Projection) Lineage() Lineage {
	switch {
	case p.SuccessorID != nil && *p.SuccessorID != "":
		var d civil.Date
		if p.CancellationDate != nil {
			d = *p.CancellationDate
		}
		return Superseded{SuccessorID: *p.SuccessorID, EffectiveDate: d}
	case p.CancellationDate != nil:
		return Cancelled{Date: *p.CancellationDate}
	case p.Active:
		return Active{}
	}
	return Paused{}
}
