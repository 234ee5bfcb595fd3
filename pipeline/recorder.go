package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"zapihook/db"
	"zapihook/logger"
	"zapihook/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const CHANNEL_OFF_HOURS = "off-hours"
const CHANNEL_TRAFFIC = "traffic"

const ORIGIN_CUSTOMER = "customer"
const ORIGIN_ATTENDANT = "attendant"
const ORIGIN_AUTOMATION = "automation"

const PAYLOAD_MESSAGE_TEXT = "messageText"

const SKIP_MISSING_PHONE = "missing_phone"
const SKIP_INVALID_PHONE = "invalid_phone"
const SKIP_ERROR = "error"

// CrmSyncResult resume a sincronização do evento recebido com o CRM.
type CrmSyncResult struct {
	CustomerID    string
	Created       bool
	ProfileSynced bool
	Attendant     bool
	Echo          bool
	Skipped       string
}

func (r CrmSyncResult) MarshalJSON() ([]byte, error) {
	if r.Skipped != "" {
		return json.Marshal(map[string]string{"skipped": r.Skipped})
	}
	return json.Marshal(map[string]any{
		"customerId":    r.CustomerID,
		"created":       r.Created,
		"profileSynced": r.ProfileSynced,
		"attendant":     r.Attendant,
		"echo":          r.Echo,
	})
}

// Recorder writes inbound and outbound messages to the customer timeline.
// Every write is keyed by ExternalID, so retries never duplicate events.
type Recorder struct {
	store CustomerStore
	state *State
	echo  *EchoDetector
	ttl   time.Duration
}

func NewRecorder(store CustomerStore, state *State, echo *EchoDetector, profileSyncTTL time.Duration) *Recorder {
	return &Recorder{store: store, state: state, echo: echo, ttl: profileSyncTTL}
}

// RecordReceived garante o cliente, sincroniza o perfil (no máximo uma vez por
// TTL por telefone) e registra a mensagem. Mensagens do atendente (fromMe ou
// eco de um envio nosso) viram WHATSAPP_SENT.
func (r *Recorder) RecordReceived(ctx context.Context, ev MessageEvent) CrmSyncResult {
	if ev.Phone == "" {
		return CrmSyncResult{Skipped: SKIP_MISSING_PHONE}
	}
	if ev.PhoneE164 == "" {
		return CrmSyncResult{Skipped: SKIP_INVALID_PHONE}
	}

	sync := !r.state.ProfileSync.ShouldSkip(ev.PhoneE164, r.ttl)
	customer, created, err := r.store.FindOrCreateCustomer(ctx, ev.PhoneE164, db.ProfileFields{
		Name:  ev.ContactName,
		Photo: ev.ContactPhoto,
		Sync:  sync,
	})
	if err != nil && customer != nil && errors.Is(err, db.ErrProfileImage) {
		// cliente e nome já gravados; a foto fica para o próximo sync
		r.state.ProfileSync.Forget(ev.PhoneE164)
		logger.Warn("crm profile photo sync failed",
			zap.String("correlation_id", ev.CorrelationID),
			zap.String("customer_id", customer.ID),
			zap.Error(err))
		sync = false
		err = nil
	}
	if err != nil {
		if sync {
			r.state.ProfileSync.Forget(ev.PhoneE164)
		}
		logger.Error("crm sync failed",
			zap.String("correlation_id", ev.CorrelationID),
			zap.Error(err))
		return CrmSyncResult{Skipped: SKIP_ERROR}
	}

	echo := !ev.FromMe && r.echo != nil && r.echo.IsEcho(ctx, customer.ID, ev.MessageText)
	attendant := ev.FromMe || echo

	eventType := models.CUSTOMER_EVENT_RECEIVED
	origin := ORIGIN_CUSTOMER
	if attendant {
		eventType = models.CUSTOMER_EVENT_SENT
		origin = ORIGIN_ATTENDANT
	}

	externalID := ev.CorrelationID
	if externalID == "" {
		externalID = uuid.NewString()
	}

	now := r.state.Clock.Now().UTC()
	event := &models.CrmCustomerEvent{
		CustomerID: customer.ID,
		EventType:  eventType,
		Source:     models.CUSTOMER_EVENT_SOURCE_WEBHOOK,
		ExternalID: externalID,
		Payload: models.EventPayload{
			"origin":             origin,
			PAYLOAD_MESSAGE_TEXT: ev.MessageText,
			"messageType":        ev.MessageType,
			"messageId":          ev.MessageID,
			"instanceId":         ev.InstanceID,
			"contactName":        ev.ContactName,
			"fromMe":             ev.FromMe,
			"echo":               echo,
			"correlationId":      ev.CorrelationID,
		},
		CreatedAt: &now,
	}
	if _, err := r.store.AppendEvent(ctx, event); err != nil {
		logger.Error("append received event failed",
			zap.String("correlation_id", ev.CorrelationID),
			zap.String("customer_id", customer.ID),
			zap.Error(err))
	}

	return CrmSyncResult{
		CustomerID:    customer.ID,
		Created:       created,
		ProfileSynced: sync,
		Attendant:     attendant,
		Echo:          echo,
	}
}

// RecordSent registra uma resposta automática enviada. O ExternalID é o
// correlation id com o sufixo do canal (":off-hours", ":traffic").
func (r *Recorder) RecordSent(ctx context.Context, ev MessageEvent, channel string, payload models.EventPayload) error {
	if ev.PhoneE164 == "" {
		return fmt.Errorf("record sent %s: invalid phone", channel)
	}
	customer, _, err := r.store.FindOrCreateCustomer(ctx, ev.PhoneE164, db.ProfileFields{})
	if err != nil {
		return err
	}

	source := models.CUSTOMER_EVENT_SOURCE_WEBHOOK
	switch channel {
	case CHANNEL_OFF_HOURS:
		source = models.CUSTOMER_EVENT_SOURCE_OFF_HOURS
	case CHANNEL_TRAFFIC:
		source = models.CUSTOMER_EVENT_SOURCE_TRAFFIC
	}

	body := models.EventPayload{
		"origin":        ORIGIN_AUTOMATION,
		"channel":       channel,
		"correlationId": ev.CorrelationID,
	}
	for k, v := range payload {
		body[k] = v
	}

	now := r.state.Clock.Now().UTC()
	_, err = r.store.AppendEvent(ctx, &models.CrmCustomerEvent{
		CustomerID: customer.ID,
		EventType:  models.CUSTOMER_EVENT_SENT,
		Source:     source,
		ExternalID: ev.CorrelationID + ":" + channel,
		Payload:    body,
		CreatedAt:  &now,
	})
	return err
}
