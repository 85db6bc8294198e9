package smm

import (
	"net/http"
	"strings"

	"smm-orders/internal/core/requestdef"
	"smm-orders/internal/features/orders/domain"
)

// Action is the discriminator sent with every request.
type Action string

const (
	ActionAdd     Action = "add"
	ActionStatus  Action = "status"
	ActionCancel  Action = "cancel"
	ActionBalance Action = "balance"
)

// endpoint holds what every definition of this provider shares.
type endpoint struct {
	requestdef.Defaults
	host string
	key  string
}

func (e endpoint) Method() string { return http.MethodPost }
func (e endpoint) URL() string { return e.host }

func (e endpoint) base(action Action) map[string]any {
	return map[string]any{
		"key":    e.key,
		"action": string(action),
	}
}

var baseRules = map[string]string{
	"key":    "required",
	"action": "required,oneof=add status cancel",
}

func withBaseRules(extra map[string]string) map[string]string {
	out := make(map[string]string, len(baseRules)+len(extra))
	for k, v := range baseRules {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// AddDefinition submits a single order.
type AddDefinition struct {
	endpoint
	order    *domain.Order
	interval domain.Interval
}

func (d AddDefinition) Name() string { return "smm.add" }

func (d AddDefinition) Payload() map[string]any {
	p := d.base(ActionAdd)

	if d.order.ServiceID != nil {
		p["service"] = *d.order.ServiceID
	} else {
		p["service"] = nil
	}
	p["link"] = d.order.Link
	p["quantity"] = d.order.Quantity

	if minutes, ok := d.interval.Value(); ok {
		p["interval"] = minutes
	}
	return p
}

func (d AddDefinition) Rules() requestdef.Rules {
	return requestdef.Rules{Fields: withBaseRules(map[string]string{
		"service":  "required,integer",
		"link":     "required,url",
		"quantity": "required,integer",
		"interval": "omitempty,integer",
	})}
}

// targetPayload adds "order" for a single target and a comma joined
// "orders" for a batch. Unsubmitted orders contribute nothing.
func targetPayload(p map[string]any, target domain.Target) map[string]any {
	ids := target.ExternalIDs()
	if len(ids) == 0 {
		return p
	}
	if target.IsBatch() {
		p["orders"] = strings.Join(ids, ",")
	} else {
		p["order"] = ids[0]
	}
	return p
}

var targetRules = requestdef.Rules{
	Fields:     baseRules,
	ExactlyOne: [][]string{{"order", "orders"}},
}

// StatusDefinition asks for the state of the targeted orders.
type StatusDefinition struct {
	endpoint
	target domain.Target
}

func (d StatusDefinition) Name() string { return "smm.status" }

func (d StatusDefinition) Payload() map[string]any {
	return targetPayload(d.base(ActionStatus), d.target)
}

func (d StatusDefinition) Rules() requestdef.Rules { return targetRules }

// CancelDefinition asks the provider to cancel the targeted orders.
type CancelDefinition struct {
	endpoint
	target domain.Target
}

func (d CancelDefinition) Name() string { return "smm.cancel" }

func (d CancelDefinition) Payload() map[string]any {
	return targetPayload(d.base(ActionCancel), d.target)
}

func (d CancelDefinition) Rules() requestdef.Rules { return targetRules }

// BalanceDefinition reads the account balance. It doubles as a health check.
type BalanceDefinition struct {
	endpoint
}

func (d BalanceDefinition) Name() string { return "smm.balance" }

func (d BalanceDefinition) Payload() map[string]any { return d.base(ActionBalance) }

func (d BalanceDefinition) Rules() requestdef.Rules {
	return requestdef.Rules{Fields: map[string]string{
		"key":    "required",
		"action": "required,eq=balance",
	}}
}
