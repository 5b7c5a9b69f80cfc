package realtime

import (
	"sort"
	"sync"

	"microlend/internal/domain"
)

// Store is the in-memory mirror of the operational tables. It is seeded
// from the database at startup and kept current by applying feed events,
// so dashboard reads never touch the database.
type Store struct {
	mu       sync.RWMutex
	clients  map[string]domain.Client
	loans    map[string]domain.Loan
	requests map[string]domain.LoanRequest
	entries  map[string]domain.AccountingEntry
	meta     map[string]domain.AppMeta
}

func NewStore() *Store {
	return &Store{
		clients:  make(map[string]domain.Client),
		loans:    make(map[string]domain.Loan),
		requests: make(map[string]domain.LoanRequest),
		entries:  make(map[string]domain.AccountingEntry),
		meta:     make(map[string]domain.AppMeta),
	}
}

// Seed replaces the store contents with full table snapshots.
func (s *Store) Seed(clients []domain.Client, loans []domain.Loan, requests []domain.LoanRequest, entries []domain.AccountingEntry, meta []domain.AppMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients = make(map[string]domain.Client, len(clients))
	for _, c := range clients {
		s.clients[c.ID.String()] = c
	}
	s.loans = make(map[string]domain.Loan, len(loans))
	for _, l := range loans {
		s.loans[l.ID.String()] = l
	}
	s.requests = make(map[string]domain.LoanRequest, len(requests))
	for _, r := range requests {
		s.requests[r.ID.String()] = r
	}
	s.entries = make(map[string]domain.AccountingEntry, len(entries))
	for _, e := range entries {
		s.entries[e.ID.String()] = e
	}
	s.meta = make(map[string]domain.AppMeta, len(meta))
	for _, m := range meta {
		s.meta[m.Key] = m
	}
}

// Apply folds one event into the store. Events with a missing payload are
// ignored rather than clearing state.
func (s *Store) Apply(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Entity {
	case EntityClient:
		if ev.Type == EventDeleted {
			delete(s.clients, ev.ID)
		} else if ev.Client != nil {
			s.clients[ev.ID] = *ev.Client
		}
	case EntityLoan:
		if ev.Type == EventDeleted {
			delete(s.loans, ev.ID)
		} else if ev.Loan != nil {
			s.loans[ev.ID] = *ev.Loan
		}
	case EntityRequest:
		if ev.Type == EventDeleted {
			delete(s.requests, ev.ID)
		} else if ev.Request != nil {
			s.requests[ev.ID] = *ev.Request
		}
	case EntityEntry:
		if ev.Type == EventDeleted {
			delete(s.entries, ev.ID)
		} else if ev.Entry != nil {
			s.entries[ev.ID] = *ev.Entry
		}
	case EntityMeta:
		if ev.Type == EventDeleted {
			delete(s.meta, ev.ID)
		} else if ev.Meta != nil {
			s.meta[ev.ID] = *ev.Meta
		}
	}
}

func (s *Store) Clients() []domain.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) Loans() []domain.Loan {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Loan, 0, len(s.loans))
	for _, l := range s.loans {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out
}

func (s *Store) Requests() []domain.LoanRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.LoanRequest, 0, len(s.requests))
	for _, r := range s.requests {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestDate.After(out[j].RequestDate) })
	return out
}

func (s *Store) Entries() []domain.AccountingEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AccountingEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryDate.After(out[j].EntryDate) })
	return out
}

func (s *Store) Meta(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.meta[key]
	if !ok {
		return "", false
	}
	return m.Value, true
}
