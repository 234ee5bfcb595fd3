package storehours

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

type Override string

const (
	OVERRIDE_AUTO   Override = "auto"
	OVERRIDE_OPEN   Override = "open"
	OVERRIDE_CLOSED Override = "closed"
)

const RESPONSE_TYPE_TEXT = "text"
const RESPONSE_TYPE_VIDEO = "video"

const OFF_HOURS_MESSAGE_DEFAULT = "Estamos fora do horário. Voltamos em breve! 🍕"
const OFF_HOURS_COOLDOWN_MINUTES_DEFAULT = 15
const OFF_HOURS_AGGREGATION_SECONDS_DEFAULT = 20

// AutoReplyConfig é a configuração da resposta automática fora do horário.
type AutoReplyConfig struct {
	Enabled            bool
	Message            string
	ResponseType       string
	Video              string
	Caption            string
	CooldownMinutes    int
	AggregationSeconds int
}

func (c AutoReplyConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownMinutes) * time.Minute
}

func (c AutoReplyConfig) Aggregation() time.Duration {
	return time.Duration(c.AggregationSeconds) * time.Second
}

type SettingsSource interface {
	FindAllByContext(ctx context.Context, settingContext string) (map[string]string, error)
}

// Provider answers opening-hours questions from the settings store.
// Settings are read on every call so admin changes apply without restart.
type Provider struct {
	settings SettingsSource
	clock    clockwork.Clock
	loc      *time.Location
}

func NewProvider(settings SettingsSource, clock clockwork.Clock, loc *time.Location) *Provider {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Provider{settings: settings, clock: clock, loc: loc}
}

// Status computes the schedule status and applies the manual override.
func (p *Provider) Status(ctx context.Context) (Status, Override, error) {
	byName, err := p.settings.FindAllByContext(ctx, STORE_OPENING_CONTEXT)
	if err != nil {
		return Status{}, OVERRIDE_AUTO, fmt.Errorf("store opening status: %w", err)
	}

	schedule := BuildSchedule(byName, DEFAULT_OPEN_DAYS, DEFAULT_START, DEFAULT_END)
	status := ComputeStatus(schedule, p.clock.Now(), p.loc)

	override := parseOverride(byName["override"])
	switch override {
	case OVERRIDE_OPEN:
		status.IsOpen = true
	case OVERRIDE_CLOSED:
		status.IsOpen = false
	}
	return status, override, nil
}

func (p *Provider) IsOpen(ctx context.Context) (bool, error) {
	status, _, err := p.Status(ctx)
	if err != nil {
		return false, err
	}
	return status.IsOpen, nil
}

// OffHoursConfig lê as settings off-hours-* do contexto de horário da loja.
func (p *Provider) OffHoursConfig(ctx context.Context) (AutoReplyConfig, error) {
	byName, err := p.settings.FindAllByContext(ctx, STORE_OPENING_CONTEXT)
	if err != nil {
		return AutoReplyConfig{}, fmt.Errorf("off-hours config: %w", err)
	}

	responseType := RESPONSE_TYPE_TEXT
	if strings.EqualFold(strings.TrimSpace(byName["off-hours-response-type"]), RESPONSE_TYPE_VIDEO) {
		responseType = RESPONSE_TYPE_VIDEO
	}

	cooldown := OFF_HOURS_COOLDOWN_MINUTES_DEFAULT
	if v, ok := parseNumber(byName["off-hours-cooldown-minutes"]); ok && v > 0 {
		cooldown = v
	}

	aggregation := OFF_HOURS_AGGREGATION_SECONDS_DEFAULT
	if v, ok := parseNumber(byName["off-hours-aggregation-seconds"]); ok && v >= 0 {
		aggregation = v
	}

	enabled := true
	if raw, ok := byName["off-hours-enabled"]; ok {
		enabled = strings.TrimSpace(raw) == "true"
	}

	message := strings.TrimSpace(byName["off-hours-message"])
	if message == "" {
		message = OFF_HOURS_MESSAGE_DEFAULT
	}

	return AutoReplyConfig{
		Enabled:            enabled,
		Message:            message,
		ResponseType:       responseType,
		Video:              strings.TrimSpace(byName["off-hours-video"]),
		Caption:            strings.TrimSpace(byName["off-hours-video-caption"]),
		CooldownMinutes:    cooldown,
		AggregationSeconds: aggregation,
	}, nil
}

func parseOverride(raw string) Override {
	switch Override(strings.ToLower(strings.TrimSpace(raw))) {
	case OVERRIDE_OPEN:
		return OVERRIDE_OPEN
	case OVERRIDE_CLOSED:
		return OVERRIDE_CLOSED
	}
	return OVERRIDE_AUTO
}

// parseNumber aceita inteiros e decimais ("7.9" vira 7).
func parseNumber(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(math.Floor(f)), true
}
