package pipeline

import (
	"context"
	"testing"
	"time"

	"zapihook/models"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func sentEvent(customerID, externalID string, at time.Time, payload models.EventPayload, raw string) models.CrmCustomerEvent {
	return models.CrmCustomerEvent{
		CustomerID: customerID,
		EventType:  models.CUSTOMER_EVENT_SENT,
		ExternalID: externalID,
		Payload:    payload,
		PayloadRaw: raw,
		CreatedAt:  &at,
	}
}

func TestIsEcho(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 3, 23, 0, 0, 0, time.UTC))
	store := newFakeStore()
	now := clock.Now()

	_, _ = store.AppendEvent(ctx, ptr(sentEvent("cus-1", "e1", now.Add(-time.Minute),
		models.EventPayload{PAYLOAD_MESSAGE_TEXT: "Estamos  fora do horário.\nVoltamos em breve!"}, "")))
	_, _ = store.AppendEvent(ctx, ptr(sentEvent("cus-1", "e2", now.Add(-2*time.Minute),
		nil, `{"messageText":"Segue o cardápio"}`)))
	_, _ = store.AppendEvent(ctx, ptr(sentEvent("cus-1", "e3", now.Add(-10*time.Minute),
		models.EventPayload{PAYLOAD_MESSAGE_TEXT: "mensagem antiga"}, "")))
	_, _ = store.AppendEvent(ctx, ptr(sentEvent("cus-1", "e4", now.Add(-time.Minute),
		nil, `not json`)))

	d := NewEchoDetector(store, clock, 5*time.Minute, 20)

	assert.True(t, d.IsEcho(ctx, "cus-1", "  estamos fora do HORÁRIO. voltamos em breve!  "), "whitespace and case are normalized")
	assert.True(t, d.IsEcho(ctx, "cus-1", "segue o cardápio"), "payload_raw fallback")
	assert.False(t, d.IsEcho(ctx, "cus-1", "mensagem antiga"), "outside the window")
	assert.False(t, d.IsEcho(ctx, "cus-2", "segue o cardápio"), "other customer")
	assert.False(t, d.IsEcho(ctx, "cus-1", "   "))
	assert.False(t, d.IsEcho(ctx, "cus-1", "outra coisa"))
}

func TestIsEchoLookbackLimit(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 3, 23, 0, 0, 0, time.UTC))
	store := newFakeStore()

	_, _ = store.AppendEvent(ctx, ptr(sentEvent("cus-1", "old", clock.Now(), models.EventPayload{PAYLOAD_MESSAGE_TEXT: "primeira"}, "")))
	_, _ = store.AppendEvent(ctx, ptr(sentEvent("cus-1", "new", clock.Now(), models.EventPayload{PAYLOAD_MESSAGE_TEXT: "segunda"}, "")))

	d := NewEchoDetector(store, clock, 5*time.Minute, 1)
	assert.True(t, d.IsEcho(ctx, "cus-1", "segunda"))
	assert.False(t, d.IsEcho(ctx, "cus-1", "primeira"), "only the latest N events are compared")
}

func TestIsEchoStoreError(t *testing.T) {
	store := newFakeStore()
	store.recentErr = errBoom
	d := NewEchoDetector(store, clockwork.NewFakeClock(), time.Minute, 20)
	assert.False(t, d.IsEcho(context.Background(), "cus-1", "oi"))
}

func TestSentText(t *testing.T) {
	text, ok := sentText(models.CrmCustomerEvent{Payload: models.EventPayload{PAYLOAD_MESSAGE_TEXT: "a"}, PayloadRaw: `{"messageText":"b"}`})
	assert.True(t, ok)
	assert.Equal(t, "a", text, "structured payload wins")

	_, ok = sentText(models.CrmCustomerEvent{Payload: models.EventPayload{"other": 1}})
	assert.False(t, ok)
}

func ptr[T any](v T) *T {
	return &v
}
