package pipeline

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"zapihook/db"
	"zapihook/models"
	"zapihook/storehours"
	"zapihook/tools"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu            sync.Mutex
	customers     map[string]*models.CrmCustomer
	events        []models.CrmCustomerEvent
	profileWrites int
	findErr       error
	recentErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{customers: map[string]*models.CrmCustomer{}}
}

func (s *fakeStore) FindOrCreateCustomer(ctx context.Context, phoneE164 string, profile db.ProfileFields) (*models.CrmCustomer, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, false, s.findErr
	}
	if profile.Sync {
		s.profileWrites++
	}
	if c, ok := s.customers[phoneE164]; ok {
		if profile.Sync && c.Name == "" {
			c.Name = profile.Name
		}
		cp := *c
		return &cp, false, nil
	}
	c := &models.CrmCustomer{ID: "cus-" + strconv.Itoa(len(s.customers)+1), PhoneE164: phoneE164, Name: profile.Name}
	s.customers[phoneE164] = c
	cp := *c
	return &cp, true, nil
}

func (s *fakeStore) AppendEvent(ctx context.Context, ev *models.CrmCustomerEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.events {
		if existing.ExternalID == ev.ExternalID {
			*ev = existing
			return false, nil
		}
	}
	ev.ID = int64(len(s.events) + 1)
	s.events = append(s.events, *ev)
	return true, nil
}

func (s *fakeStore) RecentSentEvents(ctx context.Context, customerID string, since time.Time, limit int) ([]models.CrmCustomerEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recentErr != nil {
		return nil, s.recentErr
	}
	var out []models.CrmCustomerEvent
	for _, ev := range s.events {
		if ev.CustomerID != customerID || ev.EventType != models.CUSTOMER_EVENT_SENT {
			continue
		}
		if ev.CreatedAt != nil && ev.CreatedAt.Before(since) {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) eventsOfType(eventType string) []models.CrmCustomerEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CrmCustomerEvent
	for _, ev := range s.events {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func (s *fakeStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profileWrites
}

type sentMessage struct {
	Kind    string
	Phone   string
	Message string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) record(kind, phone, message string) (*tools.SendMessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, sentMessage{Kind: kind, Phone: phone, Message: message})
	return &tools.SendMessageResponse{MessageID: "zaap-" + strconv.Itoa(len(f.sent))}, nil
}

func (f *fakeSender) SendText(ctx context.Context, req tools.SendTextRequest) (*tools.SendMessageResponse, error) {
	return f.record("text", req.Phone, req.Message)
}

func (f *fakeSender) SendVideo(ctx context.Context, req tools.SendVideoRequest) (*tools.SendMessageResponse, error) {
	return f.record("video", req.Phone, req.Video)
}

func (f *fakeSender) SendButtonActions(ctx context.Context, req tools.SendButtonActionsRequest) (*tools.SendMessageResponse, error) {
	return f.record("buttons", req.Phone, req.Message)
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type fakeSettings struct {
	values map[string]map[string]string
	err    error
}

func (f fakeSettings) FindAllByContext(ctx context.Context, settingContext string) (map[string]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.values[settingContext], nil
}

type fakeHours struct {
	mu      sync.Mutex
	open    bool
	cfg     storehours.AutoReplyConfig
	openErr error
	cfgErr  error
}

func (f *fakeHours) IsOpen(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open, f.openErr
}

func (f *fakeHours) OffHoursConfig(ctx context.Context) (storehours.AutoReplyConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg, f.cfgErr
}

func (f *fakeHours) setOpen(open bool) {
	f.mu.Lock()
	f.open = open
	f.mu.Unlock()
}

type fakeTrafficLogs struct {
	mu      sync.Mutex
	entries []models.MetaAdsLog
}

func (f *fakeTrafficLogs) Create(ctx context.Context, entry *models.MetaAdsLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *entry)
	return nil
}

var errBoom = errors.New("boom")

type harness struct {
	clock    *clockwork.FakeClock
	state    *State
	store    *fakeStore
	sender   *fakeSender
	settings fakeSettings
	hours    *fakeHours
	logs     *fakeTrafficLogs
	pipeline *Pipeline
}

func offHoursConfig(aggregationSeconds int) storehours.AutoReplyConfig {
	return storehours.AutoReplyConfig{
		Enabled:            true,
		Message:            storehours.OFF_HOURS_MESSAGE_DEFAULT,
		ResponseType:       storehours.RESPONSE_TYPE_TEXT,
		CooldownMinutes:    15,
		AggregationSeconds: aggregationSeconds,
	}
}

func newHarness(t *testing.T, aggregationSeconds int) *harness {
	t.Helper()
	h := &harness{
		clock:    clockwork.NewFakeClockAt(time.Date(2024, 6, 3, 23, 0, 0, 0, time.UTC)),
		store:    newFakeStore(),
		sender:   &fakeSender{},
		settings: fakeSettings{values: map[string]map[string]string{}},
		hours:    &fakeHours{cfg: offHoursConfig(aggregationSeconds)},
		logs:     &fakeTrafficLogs{},
	}
	h.state = NewState(h.clock, 100)
	t.Cleanup(func() { h.state.Scheduler.Stop() })
	h.build()
	return h
}

func (h *harness) build() {
	echo := NewEchoDetector(h.store, h.clock, 5*time.Minute, 20)
	recorder := NewRecorder(h.store, h.state, echo, 15*time.Minute)
	traffic := NewTrafficResponder(h.settings, h.sender, recorder, h.logs, h.state, time.Hour)
	offHours := NewOffHoursResponder(h.hours, h.sender, recorder, h.state, time.Second)
	h.pipeline = New(recorder, traffic, offHours, time.Second)
}

func mustEvent(t *testing.T, body, correlationID string) MessageEvent {
	t.Helper()
	res := Normalize([]byte(body), correlationID)
	ok, isOk := res.(Ok)
	require.True(t, isOk, "expected Ok, got %#v", res)
	return ok.Event
}

func textPayload(phone, text string) string {
	return `{"type":"ReceivedCallback","phone":"` + phone + `","fromMe":false,"senderName":"Maria","text":{"message":"` + text + `"}}`
}
