package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the in-memory action collection shared by enqueue callers and
// the delivery scheduler. Callers only insert; dispatch state is changed
// through Claim, Release and Remove, which the scheduler alone calls.
type Store struct {
	mu     sync.Mutex
	now    func() time.Time
	newID  func() string
	queues map[Kind][]*Action
	byID   map[string]*Action
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides time.Now for submission timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithIDs overrides the id generator.
func WithIDs(fn func() string) StoreOption {
	return func(s *Store) { s.newID = fn }
}

// NewStore creates an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
		queues: make(map[Kind][]*Action),
		byID:   make(map[string]*Action),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// EnqueueWebhook queues a webhook call and returns its id.
func (s *Store) EnqueueWebhook(url, payload string, perishSeconds int) string {
	return s.Enqueue(Action{
		Kind:          KindWebhook,
		Webhook:       &Webhook{URL: url, Payload: payload},
		PerishSeconds: perishSeconds,
	})
}

// EnqueueEmail queues an email and returns its id.
func (s *Store) EnqueueEmail(recipients []string, subject, body string, perishSeconds int) string {
	return s.Enqueue(Action{
		Kind: KindEmail,
		Email: &Email{
			Recipients: recipients,
			Subject:    subject,
			Body:       body,
		},
		PerishSeconds: perishSeconds,
	})
}

// Enqueue inserts a new action, immediately due. A missing or already used
// id is replaced by a generated one and the dispatch fields are reset.
// Every call adds a new entry.
func (s *Store) Enqueue(a Action) string {
	a = a.clone()
	if a.PerishSeconds < 0 {
		a.PerishSeconds = 0
	}
	a.SubmittedAt = s.now()
	a.NextAttemptAt = time.Time{}
	a.Attempts = 0
	a.Dispatching = false

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byID[a.ID]; a.ID == "" || taken {
		a.ID = s.newID()
	}
	s.queues[a.Kind] = append(s.queues[a.Kind], &a)
	s.byID[a.ID] = &a
	return a.ID
}

// Claim selects the first due action of kind, in insertion order, and marks
// it for dispatch: Dispatching is set, NextAttemptAt becomes now plus
// backoff(Attempts), and Attempts is incremented. It returns a copy of the
// claimed action.
func (s *Store) Claim(kind Kind, now time.Time, backoff func(attempts int) time.Duration) (Action, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.queues[kind] {
		if !a.Due(now) {
			continue
		}
		a.Dispatching = true
		a.NextAttemptAt = now.Add(backoff(a.Attempts))
		a.Attempts++
		return a.clone(), true
	}
	return Action{}, false
}

// Release makes a claimed action eligible again once NextAttemptAt passes.
// Unknown ids are ignored.
func (s *Store) Release(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return false
	}
	a.Dispatching = false
	return true
}

// Remove drops an action. Unknown ids are ignored.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return false
	}
	delete(s.byID, id)
	q := s.queues[a.Kind]
	for i, x := range q {
		if x.ID == id {
			s.queues[a.Kind] = append(q[:i:i], q[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a copy of an action.
func (s *Store) Get(id string) (Action, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return Action{}, false
	}
	return a.clone(), true
}

// List returns copies of the actions of kind in insertion order.
func (s *Store) List(kind Kind) []Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Action, 0, len(s.queues[kind]))
	for _, a := range s.queues[kind] {
		out = append(out, a.clone())
	}
	return out
}

// Pending returns the number of stored actions per kind.
func (s *Store) Pending() map[Kind]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Kind]int, len(Kinds))
	for _, k := range Kinds {
		out[k] = len(s.queues[k])
	}
	return out
}

// Len returns the total number of stored actions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
