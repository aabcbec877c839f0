// Package builtin registers the native trigger and action kinds.
package builtin

import (
	"github.com/dukex/orderflow/pkg/actions/assignuser"
	"github.com/dukex/orderflow/pkg/actions/email"
	"github.com/dukex/orderflow/pkg/actions/httpcall"
	"github.com/dukex/orderflow/pkg/actions/sms"
	"github.com/dukex/orderflow/pkg/actions/updaterecord"
	"github.com/dukex/orderflow/pkg/actions/wait"
	"github.com/dukex/orderflow/pkg/assignment"
	"github.com/dukex/orderflow/pkg/catalog"
	"github.com/dukex/orderflow/pkg/notify"
	"github.com/dukex/orderflow/pkg/protocol"
	"github.com/dukex/orderflow/pkg/records"
	"github.com/dukex/orderflow/pkg/triggers/manual"
	"github.com/dukex/orderflow/pkg/triggers/record"
	"github.com/dukex/orderflow/pkg/triggers/schedule"
	"github.com/dukex/orderflow/pkg/triggers/webhook"
)

// Dependencies are the collaborators the native actions talk to.
type Dependencies struct {
	Recorder assignment.Recorder
	Updater  records.Updater
	Sender   notify.Sender
}

func Triggers() []protocol.TriggerFactory {
	return []protocol.TriggerFactory{
		record.NewCreatedFactory(),
		record.NewStatusChangedFactory(),
		record.NewPaymentConfirmedFactory(),
		schedule.NewFactory(),
		manual.NewFactory(),
		webhook.NewFactory(),
	}
}

func Actions(deps Dependencies) []protocol.ActionFactory {
	return []protocol.ActionFactory{
		assignuser.NewActionFactory(deps.Recorder, deps.Updater),
		email.NewActionFactory(deps.Sender),
		sms.NewActionFactory(deps.Sender),
		updaterecord.NewActionFactory(deps.Updater),
		wait.NewActionFactory(),
		httpcall.NewActionFactory(),
	}
}

// Register adds every native kind to c.
func Register(c *catalog.Catalog, deps Dependencies) error {
	for _, factory := range Triggers() {
		if err := c.RegisterTrigger(factory); err != nil {
			return err
		}
	}

	for _, factory := range Actions(deps) {
		if err := c.RegisterAction(factory); err != nil {
			return err
		}
	}

	return nil
}
