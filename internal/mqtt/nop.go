package mqtt

import (
	"github.com/sweeney/beacon/internal/blink"
	"github.com/sweeney/beacon/internal/delivery"
)

// NopPublisher discards everything. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishLevel(blink.LevelChange) error { return nil }
func (NopPublisher) PublishDelivery(delivery.Outcome) error { return nil }
func (NopPublisher) PublishSystem(SystemEvent) error { return nil }
func (NopPublisher) SubscribeCommands(CommandHandler) error { return nil }
func (NopPublisher) IsConnected() bool { return false }
func (NopPublisher) Close() error { return nil }
