package smm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"smm-orders/internal/core/logger"
	"smm-orders/internal/features/orders/domain"
	"smm-orders/internal/features/orders/ports"

	"go.uber.org/zap"
)

// Provider implements ports.Provider for one target.
type Provider struct {
	client *Client
	target domain.Target
	store  ports.OrderStore
}

// NewProvider binds the client to target, writing through store.
func NewProvider(client *Client, target domain.Target, store ports.OrderStore) (*Provider, error) {
	if client == nil {
		return nil, errors.New("smm client is required")
	}
	if store == nil {
		return nil, errors.New("order store is required")
	}
	if target.Len() == 0 {
		return nil, domain.ErrEmptyTarget
	}

	return &Provider{client: client, target: target, store: store}, nil
}

// ID returns ProviderID.
func (p *Provider) ID() int { return ProviderID }

// Submit places the targeted order and stores the provider's order id.
// Nothing is written unless the provider returned an order id.
func (p *Provider) Submit(ctx context.Context, interval domain.Interval) error {
	if p.target.IsBatch() {
		return domain.ErrBatchSubmit
	}
	order := p.target.Order()
	if order == nil {
		return domain.ErrEmptyTarget
	}

	resp, err := p.client.sender.Send(ctx, p.client.Add(order, interval))
	if err != nil {
		return err
	}
	if err := resp.Throw(); err != nil {
		return err
	}

	var body map[string]json.RawMessage
	if err := resp.JSON(&body); err != nil {
		return &ProtocolError{Action: ActionAdd, Message: "response is not a JSON object", Body: string(resp.Body)}
	}

	externalID, ok := truthyID(body["order"])
	if !ok {
		return &ProtocolError{Action: ActionAdd, Message: "model not found/created", Body: string(resp.Body)}
	}

	providerID := p.ID()
	changes := domain.Changes{ExternalID: &externalID, ServiceID: &providerID}
	if err := p.store.UpdateFields(ctx, order.ID, changes); err != nil {
		return fmt.Errorf("failed to store external id for order %d: %w", order.ID, err)
	}
	order.Apply(changes)

	logger.Named("smm").Info("Order submitted",
		zap.Uint("order_id", order.ID),
		zap.String("external_id", externalID),
	)
	return nil
}

// FetchStatuses pulls the provider's view of every targeted order and stores it.
// Each record is written independently; failed writes are joined into the
// returned error after the whole response has been processed.
func (p *Provider) FetchStatuses(ctx context.Context) error {
	log := logger.Named("smm")

	resp, err := p.client.sender.Send(ctx, p.client.Status(p.target))
	if err != nil {
		return err
	}
	if err := resp.Throw(); err != nil {
		return err
	}

	var records map[string]json.RawMessage
	if err := resp.JSON(&records); err != nil {
		return &ProtocolError{Action: ActionStatus, Message: "response is not a JSON object", Body: string(resp.Body)}
	}

	// A single order may be answered with the bare record instead of a keyed map.
	if _, flat := records["status"]; flat && !p.target.IsBatch() {
		if ids := p.target.ExternalIDs(); len(ids) == 1 {
			records = map[string]json.RawMessage{ids[0]: resp.Body}
		}
	}

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []error
	for _, externalID := range ids {
		changes, ok := parseStatusRecord(records[externalID])
		if !ok {
			log.Debug("Skipping status record without status", zap.String("external_id", externalID))
			continue
		}

		order, err := p.store.FindByExternalID(ctx, externalID)
		if err != nil {
			errs = append(errs, fmt.Errorf("lookup %s: %w", externalID, err))
			continue
		}
		if order == nil {
			log.Debug("No local order for status record", zap.String("external_id", externalID))
			continue
		}

		if err := p.store.UpdateFields(ctx, order.ID, changes); err != nil {
			errs = append(errs, fmt.Errorf("update order %d: %w", order.ID, err))
			continue
		}

		p.applyLocal(externalID, changes)
		if p.client.metrics != nil {
			p.client.metrics.StatusUpdates.WithLabelValues(string(*changes.Status)).Inc()
		}
	}

	return errors.Join(errs...)
}

// Cancel requests cancellation and marks the confirmed orders cancelled in one write.
func (p *Provider) Cancel(ctx context.Context) error {
	log := logger.Named("smm")

	resp, err := p.client.sender.Send(ctx, p.client.Cancel(p.target))
	if err != nil {
		return err
	}
	if err := resp.Throw(); err != nil {
		return err
	}

	var records []cancelRecord
	if err := resp.JSON(&records); err != nil {
		return &ProtocolError{Action: ActionCancel, Message: "response is not a JSON array", Body: string(resp.Body)}
	}

	confirmed := make([]string, 0, len(records))
	for _, r := range records {
		id, ok := scalarString(r.Order)
		if !ok {
			continue
		}
		if r.confirmed() {
			confirmed = append(confirmed, id)
			continue
		}
		log.Warn("Provider refused cancellation",
			zap.String("external_id", id),
			zap.String("response", string(r.Cancel)),
		)
	}

	if len(confirmed) == 0 {
		return nil
	}

	changes := domain.StatusChange(domain.StatusCancelled)
	if err := p.store.BulkUpdateWhereExternalIDIn(ctx, confirmed, changes); err != nil {
		return fmt.Errorf("failed to mark %d orders cancelled: %w", len(confirmed), err)
	}
	for _, id := range confirmed {
		p.applyLocal(id, changes)
	}
	return nil
}

// applyLocal keeps the caller's order values in step with what was stored.
func (p *Provider) applyLocal(externalID string, changes domain.Changes) {
	for _, o := range p.target.Orders() {
		if o != nil && o.ExternalID != nil && *o.ExternalID == externalID {
			o.Apply(changes)
		}
	}
}

type cancelRecord struct {
	Order  json.RawMessage `json:"order"`
	Cancel json.RawMessage `json:"cancel"`
}

func (r cancelRecord) confirmed() bool {
	v, ok := scalarString(r.Cancel)
	return ok && (v == "1" || v == "true")
}

// parseStatusRecord returns false for records without a string status.
// Missing or malformed counters default to 0.
func parseStatusRecord(raw json.RawMessage) (domain.Changes, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.Changes{}, false
	}

	var providerStatus string
	if err := json.Unmarshal(fields["status"], &providerStatus); err != nil {
		return domain.Changes{}, false
	}

	status := MapStatus(providerStatus)
	startCount := intField(fields["start_count"])
	remains := intField(fields["remains"])

	return domain.Changes{
		Status:     &status,
		StartCount: &startCount,
		Remains:    &remains,
	}, true
}

// intField accepts JSON numbers and numeric strings.
func intField(raw json.RawMessage) int {
	s, ok := scalarString(raw)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(f)
}

// truthyID extracts a non-empty, non-zero order id.
func truthyID(raw json.RawMessage) (string, bool) {
	s, ok := scalarString(raw)
	if !ok {
		return "", false
	}
	switch s {
	case "", "0", "false":
		return "", false
	}
	return s, true
}

// scalarString renders a JSON string, number or bool as text.
func scalarString(raw json.RawMessage) (string, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b), true
	}
	return "", false
}
