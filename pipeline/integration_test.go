package pipeline

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"zapihook/db"
	"zapihook/models"
	"zapihook/storehours"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fluxo completo com sqlite em memória e o provedor de horário real.
func TestPipelineWithDatabase(t *testing.T) {
	ctx := context.Background()
	database := db.NewTestDB(t)

	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	// segunda-feira 20h: fechado no horário padrão
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 3, 20, 0, 0, 0, loc))

	settingsRepo := db.NewSettingRepository(database)
	require.NoError(t, settingsRepo.Upsert(ctx, storehours.STORE_OPENING_CONTEXT, "off-hours-aggregation-seconds", "0"))
	require.NoError(t, settingsRepo.Upsert(ctx, TRAFFIC_CONTEXT, "trigger", "anuncio"))

	customers := db.NewCustomerRepository(database)
	sender := &fakeSender{}
	state := NewState(clock, 100)
	t.Cleanup(func() { state.Scheduler.Stop() })

	recorder := NewRecorder(customers, state, NewEchoDetector(customers, clock, 5*time.Minute, 20), 15*time.Minute)
	p := New(
		recorder,
		NewTrafficResponder(settingsRepo, sender, recorder, db.NewTrafficLogRepository(database), state, time.Hour),
		NewOffHoursResponder(storehours.NewProvider(settingsRepo, clock, loc), sender, recorder, state, time.Second),
		time.Second,
	)

	first := p.Handle(ctx, mustEvent(t, textPayload("5546999999999", "Oi"), "corr-1"))
	assert.Equal(t, REASON_TRIGGER_NOT_FOUND, first.TrafficResult.Reason)
	assert.True(t, first.OffHoursResult.Sent)
	assert.True(t, first.CrmSyncResult.Created)

	clock.Advance(time.Minute)
	second := p.Handle(ctx, mustEvent(t, textPayload("5546999999999", "Oi"), "corr-2"))
	assert.Equal(t, REASON_COOLDOWN, second.OffHoursResult.Reason)
	assert.False(t, second.CrmSyncResult.ProfileSynced)

	// Z-API devolve a nossa própria resposta como mensagem recebida
	clock.Advance(time.Minute)
	echo := p.Handle(ctx, mustEvent(t, textPayload("5546999999999", storehours.OFF_HOURS_MESSAGE_DEFAULT), "corr-3"))
	assert.True(t, echo.CrmSyncResult.Echo)
	assert.Equal(t, REASON_FROM_ME, echo.OffHoursResult.Reason)

	assert.Len(t, sender.messages(), 1)

	var events []models.CrmCustomerEvent
	require.NoError(t, database.Order("id asc").Find(&events).Error)
	require.Len(t, events, 4)
	assert.Equal(t, models.CUSTOMER_EVENT_RECEIVED, events[0].EventType)
	assert.Equal(t, "corr-1:off-hours", events[1].ExternalID)
	assert.Equal(t, models.CUSTOMER_EVENT_RECEIVED, events[2].EventType)
	assert.Equal(t, models.CUSTOMER_EVENT_SENT, events[3].EventType)
	assert.Equal(t, ORIGIN_ATTENDANT, events[3].Payload["origin"])

	var stored []models.CrmCustomer
	require.NoError(t, database.Find(&stored).Error)
	require.Len(t, stored, 1)
	assert.Equal(t, "+5546999999999", stored[0].PhoneE164)
	assert.Equal(t, "Maria", stored[0].Name)
}

func TestRecordReceivedSurvivesPhotoFailure(t *testing.T) {
	ctx := context.Background()
	database := db.NewTestDB(t)
	require.NoError(t, database.DropTable(&models.CrmCustomerImage{}).Error)

	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 3, 23, 0, 0, 0, time.UTC))
	customers := db.NewCustomerRepository(database)
	state := NewState(clock, 100)
	t.Cleanup(func() { state.Scheduler.Stop() })
	recorder := NewRecorder(customers, state, NewEchoDetector(customers, clock, 5*time.Minute, 20), 15*time.Minute)

	body := `{"phone":"5546999999999","senderName":"Maria","senderPhoto":"https://cdn/p.jpg","text":{"message":"Oi"}}`
	res := recorder.RecordReceived(ctx, mustEvent(t, body, "corr-photo"))
	assert.Empty(t, res.Skipped)
	assert.True(t, res.Created)
	assert.NotEmpty(t, res.CustomerID)
	assert.False(t, res.ProfileSynced)

	var events []models.CrmCustomerEvent
	require.NoError(t, database.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, models.CUSTOMER_EVENT_RECEIVED, events[0].EventType)
	assert.Equal(t, res.CustomerID, events[0].CustomerID)

	// a foto é tentada de novo na próxima mensagem
	assert.Zero(t, state.ProfileSync.Len())
}
