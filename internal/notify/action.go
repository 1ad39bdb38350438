// Package notify holds pending outbound notification actions (webhook calls
// and emails) in memory until the delivery scheduler sends or abandons them.
package notify

import "time"

// Kind is the type of an action. Each kind is dispatched independently.
type Kind string

const (
	KindWebhook Kind = "webhook"
	KindEmail   Kind = "email"
)

// Kinds lists every action kind in dispatch order.
var Kinds = []Kind{KindWebhook, KindEmail}

// DefaultPerishSeconds is the retry budget used when a caller gives none.
const DefaultPerishSeconds = 120

// Webhook is an HTTP call. A non-empty Payload is POSTed, otherwise the URL
// is fetched with GET.
type Webhook struct {
	URL     string `json:"url"`
	Payload string `json:"payload,omitempty"`
}

// Email is a plain-text message.
type Email struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
}

// Action is one pending notification. Exactly one of Webhook and Email is
// set, matching Kind.
type Action struct {
	ID      string   `json:"id"`
	Kind    Kind     `json:"kind"`
	Webhook *Webhook `json:"webhook,omitempty"`
	Email   *Email   `json:"email,omitempty"`

	SubmittedAt   time.Time `json:"submitted_at"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
	Attempts      int       `json:"attempts"`
	PerishSeconds int       `json:"perish_seconds"`
	Dispatching   bool      `json:"dispatching"`
}

// Due reports whether the action may be dispatched at now.
func (a *Action) Due(now time.Time) bool {
	return !a.Dispatching && !a.NextAttemptAt.After(now)
}

// Deadline is the last moment a retry may be scheduled for.
func (a *Action) Deadline() time.Time {
	return a.SubmittedAt.Add(time.Duration(a.PerishSeconds) * time.Second)
}

// Perished reports whether the currently scheduled retry falls outside the
// action's retry budget.
func (a *Action) Perished() bool {
	return a.NextAttemptAt.After(a.Deadline())
}

// Target is a short human description of where the action goes.
func (a *Action) Target() string {
	switch {
	case a.Webhook != nil:
		return a.Webhook.URL
	case a.Email != nil && len(a.Email.Recipients) > 0:
		if len(a.Email.Recipients) == 1 {
			return a.Email.Recipients[0]
		}
		return a.Email.Recipients[0] + ",..."
	}
	return ""
}

func (a *Action) clone() Action {
	c := *a
	if a.Webhook != nil {
		w := *a.Webhook
		c.Webhook = &w
	}
	if a.Email != nil {
		e := *a.Email
		e.Recipients = append([]string(nil), a.Email.Recipients...)
		c.Email = &e
	}
	return c
}
