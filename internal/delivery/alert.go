package delivery

import (
	"fmt"

	"github.com/containrrr/shoutrrr"

	"github.com/sweeney/beacon/internal/notify"
)

// ShoutrrrAlerter reports perished actions to a shoutrrr service URL.
type ShoutrrrAlerter struct {
	url  string
	send func(url, message string) error
}

// NewShoutrrrAlerter creates an alerter for url, e.g. "telegram://token@telegram?chats=1".
func NewShoutrrrAlerter(url string) *ShoutrrrAlerter {
	return &ShoutrrrAlerter{url: url, send: shoutrrr.Send}
}

// Alert sends one best-effort message about a.
func (s *ShoutrrrAlerter) Alert(a notify.Action, cause error) error {
	return s.send(s.url, AlertMessage(a, cause))
}

// AlertMessage formats the perish notice for a.
func AlertMessage(a notify.Action, cause error) string {
	msg := fmt.Sprintf("beacon: %s action %s to %s perished after %d attempts",
		a.Kind, a.ID, a.Target(), a.Attempts)
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return msg
}
