package pipeline

import (
	"bytes"
	"context"
	"strings"
	"time"

	"zapihook/logger"
	"zapihook/metrics"
	"zapihook/models"
	"zapihook/tools"

	"go.uber.org/zap"
)

const TRAFFIC_CONTEXT = "zapi-traffic-autoresponder"

const TRAFFIC_RESPONSE_TEXT = "text"
const TRAFFIC_RESPONSE_BUTTONS = "buttons"

const DEFAULT_TRAFFIC_COOLDOWN = 60 * time.Minute

// TrafficConfig configura a resposta para quem chega pelos anúncios (Meta ads).
type TrafficConfig struct {
	Enabled         bool
	Trigger         string
	ResponseType    string
	TextMessage     string
	ButtonMessage   string
	MenuURL         string
	MenuButtonText  string
	SizesButtonText string
}

func DefaultTrafficConfig() TrafficConfig {
	return TrafficConfig{
		Enabled:         true,
		Trigger:         "ads",
		ResponseType:    TRAFFIC_RESPONSE_TEXT,
		TextMessage:     "Oi! Eu sou do A Modo Mio. Queremos te ajudar rapido. Segue o cardapio e infos:",
		ButtonMessage:   "Oi! Eu sou do A Modo Mio. Queremos te ajudar rapido. Escolha uma opcao abaixo:",
		MenuURL:         "https://amodomio.com.br/cardapio",
		MenuButtonText:  "Ver o nosso cardapio",
		SizesButtonText: "Informacoes sobre tamanhos",
	}
}

// LoadTrafficConfig reads the traffic settings. Any load error yields the defaults.
func LoadTrafficConfig(ctx context.Context, settings SettingsSource) TrafficConfig {
	cfg := DefaultTrafficConfig()

	byName, err := settings.FindAllByContext(ctx, TRAFFIC_CONTEXT)
	if err != nil {
		logger.Warn("traffic config: failed to load settings, using defaults", zap.Error(err))
		return cfg
	}

	if v := strings.TrimSpace(byName["enabled"]); v != "" {
		v = strings.ToLower(v)
		cfg.Enabled = v == "true" || v == "1" || v == "on"
	}
	if v := strings.TrimSpace(byName["trigger"]); v != "" {
		cfg.Trigger = strings.ToLower(v)
	}
	cfg.MenuURL = firstNonEmpty(byName["menuUrl"], cfg.MenuURL)
	cfg.TextMessage = firstNonEmpty(byName["textMessage"], byName["message"], cfg.TextMessage)
	cfg.ButtonMessage = firstNonEmpty(byName["buttonMessage"], byName["message"], cfg.ButtonMessage)
	cfg.MenuButtonText = firstNonEmpty(byName["menuButtonText"], cfg.MenuButtonText)
	cfg.SizesButtonText = firstNonEmpty(byName["sizesButtonText"], cfg.SizesButtonText)
	if strings.EqualFold(strings.TrimSpace(byName["responseType"]), TRAFFIC_RESPONSE_BUTTONS) {
		cfg.ResponseType = TRAFFIC_RESPONSE_BUTTONS
	}
	return cfg
}

// Triggers splits the comma separated trigger list.
func (c TrafficConfig) Triggers() []string {
	var out []string
	for _, t := range strings.Split(c.Trigger, ",") {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// MatchesTrigger procura os gatilhos no texto e, se não achar, no payload bruto
// (o anúncio costuma vir em campos de referral, não no texto).
func MatchesTrigger(text string, raw []byte, triggers []string) bool {
	if len(triggers) == 0 {
		return false
	}
	lowerText := strings.ToLower(text)
	lowerRaw := bytes.ToLower(raw)
	for _, t := range triggers {
		if lowerText != "" && strings.Contains(lowerText, t) {
			return true
		}
		if bytes.Contains(lowerRaw, []byte(t)) {
			return true
		}
	}
	return false
}

type TrafficResponder struct {
	settings SettingsSource
	sender   Sender
	recorder *Recorder
	logs     TrafficLogger
	state    *State
	cooldown time.Duration
}

func NewTrafficResponder(settings SettingsSource, sender Sender, recorder *Recorder, logs TrafficLogger, state *State, cooldown time.Duration) *TrafficResponder {
	if cooldown <= 0 {
		cooldown = DEFAULT_TRAFFIC_COOLDOWN
	}
	return &TrafficResponder{
		settings: settings,
		sender:   sender,
		recorder: recorder,
		logs:     logs,
		state:    state,
		cooldown: cooldown,
	}
}

// Respond decide e envia a resposta de tráfego para ev.
func (t *TrafficResponder) Respond(ctx context.Context, ev MessageEvent) ReplyResult {
	cfg := LoadTrafficConfig(ctx, t.settings)
	if !cfg.Enabled {
		return t.result(ReplyResult{Reason: REASON_DISABLED})
	}

	if !MatchesTrigger(ev.MessageText, ev.Raw, cfg.Triggers()) {
		logger.Debug("traffic trigger not found",
			zap.String("correlation_id", ev.CorrelationID),
			zap.String("trigger", cfg.Trigger))
		return t.result(ReplyResult{Reason: REASON_TRIGGER_NOT_FOUND})
	}

	if ev.Phone == "" {
		logger.Warn("traffic: missing phone", zap.String("correlation_id", ev.CorrelationID))
		t.audit(ctx, ev, cfg, ReplyResult{Reason: REASON_PHONE_NOT_FOUND})
		return t.result(ReplyResult{Reason: REASON_PHONE_NOT_FOUND})
	}

	if t.state.TrafficCooldown.ShouldSkip(senderKey(ev), t.cooldown) {
		t.audit(ctx, ev, cfg, ReplyResult{Reason: REASON_COOLDOWN})
		return t.result(ReplyResult{Reason: REASON_COOLDOWN})
	}

	message, resp, err := t.send(ctx, ev.Phone, cfg)
	if err != nil {
		logger.Warn("traffic auto-reply failed",
			zap.String("correlation_id", ev.CorrelationID),
			zap.String("phone", tools.MaskPhone(ev.Phone)),
			zap.Error(err))
		t.audit(ctx, ev, cfg, ReplyResult{Reason: REASON_SEND_FAILED})
		return t.result(ReplyResult{Reason: REASON_SEND_FAILED})
	}

	t.audit(ctx, ev, cfg, ReplyResult{Sent: true})
	logger.Info("traffic auto-reply sent",
		zap.String("correlation_id", ev.CorrelationID),
		zap.String("phone", tools.MaskPhone(ev.Phone)),
		zap.String("response_type", cfg.ResponseType))

	if err := t.recorder.RecordSent(ctx, ev, CHANNEL_TRAFFIC, models.EventPayload{
		PAYLOAD_MESSAGE_TEXT: message,
		"responseType":       cfg.ResponseType,
		"zapiMessageId":      responseMessageID(resp),
	}); err != nil {
		logger.Error("record traffic reply failed",
			zap.String("correlation_id", ev.CorrelationID),
			zap.Error(err))
	}

	return t.result(ReplyResult{Sent: true})
}

func (t *TrafficResponder) send(ctx context.Context, phone string, cfg TrafficConfig) (string, *tools.SendMessageResponse, error) {
	if cfg.ResponseType != TRAFFIC_RESPONSE_BUTTONS {
		resp, err := t.sender.SendText(ctx, tools.SendTextRequest{Phone: phone, Message: cfg.TextMessage})
		return cfg.TextMessage, resp, err
	}
	resp, err := t.sender.SendButtonActions(ctx, tools.SendButtonActionsRequest{
		Phone:   phone,
		Message: cfg.ButtonMessage,
		ButtonActions: []tools.ButtonAction{
			{ID: "VIEW_MENU", Text: cfg.MenuButtonText, URL: cfg.MenuURL},
			{ID: "INFO_SIZES", Text: cfg.SizesButtonText},
		},
	})
	return cfg.ButtonMessage, resp, err
}

// audit grava o MetaAdsLog. Falha aqui só é logada.
func (t *TrafficResponder) audit(ctx context.Context, ev MessageEvent, cfg TrafficConfig, res ReplyResult) {
	if t.logs == nil {
		return
	}
	entry := &models.MetaAdsLog{
		CorrelationID:  ev.CorrelationID,
		Event:          ev.Event,
		Phone:          ev.Phone,
		Trigger:        cfg.Trigger,
		MessageText:    ev.MessageText,
		Sent:           res.Sent,
		Reason:         res.Reason,
		ResponseType:   cfg.ResponseType,
		PayloadPreview: PayloadPreview(ev.Raw),
	}
	if err := t.logs.Create(ctx, entry); err != nil {
		logger.Warn("traffic: failed to save meta ads log",
			zap.String("correlation_id", ev.CorrelationID),
			zap.Error(err))
	}
}

func (t *TrafficResponder) result(res ReplyResult) ReplyResult {
	label := res.Reason
	if res.Sent {
		label = "sent"
	}
	metrics.AutoReplies.WithLabelValues(CHANNEL_TRAFFIC, label).Inc()
	return res
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func responseMessageID(resp *tools.SendMessageResponse) string {
	if resp == nil {
		return ""
	}
	if resp.MessageID != "" {
		return resp.MessageID
	}
	return resp.ID
}
