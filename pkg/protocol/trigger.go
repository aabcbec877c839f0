package protocol

import (
	"github.com/dukex/orderflow/pkg/events"
	"github.com/dukex/orderflow/pkg/models"
)

// TriggerFactory describes one trigger kind and decides which inbound
// events start workflows configured with it.
type TriggerFactory interface {
	ID() string
	Name() string
	Description() string
	Schema() map[string]any
	Validate(config map[string]any) error
	Match(trigger models.Trigger, event events.TriggerEvent) bool
}
