// Realtime change feed for the back-office UI. Every mutation publishes a
// typed event over a closed set of entities; connected dashboards apply the
// events to their local copy instead of re-fetching.
package realtime

import (
	"time"

	"github.com/google/uuid"

	"microlend/internal/domain"
)

type Entity string

const (
	EntityClient  Entity = "clients"
	EntityLoan    Entity = "loans"
	EntityRequest Entity = "loan_requests"
	EntityEntry   Entity = "accounting_entries"
	EntityMeta    Entity = "app_meta"
)

type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event carries one change. Exactly one payload pointer is set for created
// and updated events; deleted events carry only the entity and id.
type Event struct {
	Entity Entity    `json:"entity"`
	Type   EventType `json:"type"`
	ID     string    `json:"id"`
	At     time.Time `json:"at"`

	Client  *domain.Client          `json:"client,omitempty"`
	Loan    *domain.Loan            `json:"loan,omitempty"`
	Request *domain.LoanRequest     `json:"request,omitempty"`
	Entry   *domain.AccountingEntry `json:"entry,omitempty"`
	Meta    *domain.AppMeta         `json:"meta,omitempty"`
}

func ClientCreated(c *domain.Client) Event {
	return Event{Entity: EntityClient, Type: EventCreated, ID: c.ID.String(), At: time.Now().UTC(), Client: c}
}

func ClientUpdated(c *domain.Client) Event {
	return Event{Entity: EntityClient, Type: EventUpdated, ID: c.ID.String(), At: time.Now().UTC(), Client: c}
}

func ClientDeleted(id uuid.UUID) Event {
	return Event{Entity: EntityClient, Type: EventDeleted, ID: id.String(), At: time.Now().UTC()}
}

func LoanCreated(l *domain.Loan) Event {
	return Event{Entity: EntityLoan, Type: EventCreated, ID: l.ID.String(), At: time.Now().UTC(), Loan: l}
}

func LoanUpdated(l *domain.Loan) Event {
	return Event{Entity: EntityLoan, Type: EventUpdated, ID: l.ID.String(), At: time.Now().UTC(), Loan: l}
}

func LoanDeleted(id uuid.UUID) Event {
	return Event{Entity: EntityLoan, Type: EventDeleted, ID: id.String(), At: time.Now().UTC()}
}

func RequestCreated(r *domain.LoanRequest) Event {
	return Event{Entity: EntityRequest, Type: EventCreated, ID: r.ID.String(), At: time.Now().UTC(), Request: r}
}

func RequestUpdated(r *domain.LoanRequest) Event {
	return Event{Entity: EntityRequest, Type: EventUpdated, ID: r.ID.String(), At: time.Now().UTC(), Request: r}
}

func RequestDeleted(id uuid.UUID) Event {
	return Event{Entity: EntityRequest, Type: EventDeleted, ID: id.String(), At: time.Now().UTC()}
}

func EntryCreated(e *domain.AccountingEntry) Event {
	return Event{Entity: EntityEntry, Type: EventCreated, ID: e.ID.String(), At: time.Now().UTC(), Entry: e}
}

func EntryUpdated(e *domain.AccountingEntry) Event {
	return Event{Entity: EntityEntry, Type: EventUpdated, ID: e.ID.String(), At: time.Now().UTC(), Entry: e}
}

func EntryDeleted(id uuid.UUID) Event {
	return Event{Entity: EntityEntry, Type: EventDeleted, ID: id.String(), At: time.Now().UTC()}
}

func MetaUpdated(m *domain.AppMeta) Event {
	return Event{Entity: EntityMeta, Type: EventUpdated, ID: m.Key, At: time.Now().UTC(), Meta: m}
}
