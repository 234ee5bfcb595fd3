package pipeline

import (
	"context"
	"strings"
	"time"

	"zapihook/logger"
	"zapihook/models"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const DEFAULT_ECHO_LOOKBACK = 20
const DEFAULT_ECHO_WINDOW = 5 * time.Minute

// EchoDetector recognizes webhook deliveries of messages this system just
// sent: the inbound text equals one of the customer's recent SENT events.
// It compares text only, so a customer repeating our message also matches.
type EchoDetector struct {
	store    CustomerStore
	clock    clockwork.Clock
	window   time.Duration
	lookback int
}

func NewEchoDetector(store CustomerStore, clock clockwork.Clock, window time.Duration, lookback int) *EchoDetector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if window <= 0 {
		window = DEFAULT_ECHO_WINDOW
	}
	if lookback <= 0 {
		lookback = DEFAULT_ECHO_LOOKBACK
	}
	return &EchoDetector{store: store, clock: clock, window: window, lookback: lookback}
}

// IsEcho never fails: store errors count as "not an echo".
func (d *EchoDetector) IsEcho(ctx context.Context, customerID, text string) bool {
	needle := normalizeEchoText(text)
	if needle == "" || customerID == "" {
		return false
	}

	since := d.clock.Now().Add(-d.window)
	events, err := d.store.RecentSentEvents(ctx, customerID, since, d.lookback)
	if err != nil {
		logger.Warn("echo check failed", zap.String("customer_id", customerID), zap.Error(err))
		return false
	}

	for _, ev := range events {
		candidate, ok := sentText(ev)
		if !ok {
			continue
		}
		if normalizeEchoText(candidate) == needle {
			return true
		}
	}
	return false
}

// sentText lê o texto enviado do payload estruturado e, na falta dele, do
// payload_raw serializado.
func sentText(ev models.CrmCustomerEvent) (string, bool) {
	if s, ok := ev.Payload[PAYLOAD_MESSAGE_TEXT].(string); ok {
		return s, true
	}
	if strings.TrimSpace(ev.PayloadRaw) == "" {
		return "", false
	}
	var raw map[string]any
	if err := payloadJSON.UnmarshalFromString(ev.PayloadRaw, &raw); err != nil {
		return "", false
	}
	s, ok := raw[PAYLOAD_MESSAGE_TEXT].(string)
	return s, ok
}

func normalizeEchoText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
