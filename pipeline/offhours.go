package pipeline

import (
	"context"
	"time"

	"zapihook/logger"
	"zapihook/metrics"
	"zapihook/models"
	"zapihook/storehours"
	"zapihook/tools"

	"go.uber.org/zap"
)

// OffHoursResponder responde uma vez por cooldown a quem escreve com a loja
// fechada. Com agregação > 0 a resposta espera a rajada de mensagens acabar.
type OffHoursResponder struct {
	hours    HoursProvider
	sender   Sender
	recorder *Recorder
	state    *State
	timeout  time.Duration
}

func NewOffHoursResponder(hours HoursProvider, sender Sender, recorder *Recorder, state *State, timeout time.Duration) *OffHoursResponder {
	if timeout <= 0 {
		timeout = DEFAULT_EXTERNAL_TIMEOUT
	}
	return &OffHoursResponder{
		hours:    hours,
		sender:   sender,
		recorder: recorder,
		state:    state,
		timeout:  timeout,
	}
}

func (o *OffHoursResponder) Respond(ctx context.Context, ev MessageEvent, trafficSent bool) ReplyResult {
	if trafficSent {
		return o.result(ReplyResult{Reason: REASON_TRAFFIC_SENT})
	}

	cfg, err := o.hours.OffHoursConfig(ctx)
	if err != nil {
		logger.Error("off-hours config failed", zap.String("correlation_id", ev.CorrelationID), zap.Error(err))
		return o.result(ReplyResult{Reason: REASON_ERROR})
	}
	if !cfg.Enabled {
		return o.result(ReplyResult{Reason: REASON_DISABLED})
	}

	open, err := o.hours.IsOpen(ctx)
	if err != nil {
		logger.Error("store opening status failed", zap.String("correlation_id", ev.CorrelationID), zap.Error(err))
		return o.result(ReplyResult{Reason: REASON_ERROR})
	}
	if open {
		return o.result(ReplyResult{Reason: REASON_STORE_OPEN})
	}

	if ev.Phone == "" {
		return o.result(ReplyResult{Reason: REASON_MISSING_PHONE})
	}

	if cfg.AggregationSeconds > 0 {
		o.state.Scheduler.Schedule(senderKey(ev), cfg.Aggregation(), func() { o.fire(ev) })
		logger.Info("off-hours reply scheduled",
			zap.String("correlation_id", ev.CorrelationID),
			zap.String("phone", tools.MaskPhone(ev.Phone)),
			zap.Int("aggregation_seconds", cfg.AggregationSeconds))
		return o.result(ReplyResult{Reason: REASON_SCHEDULED})
	}

	return o.result(o.deliver(ctx, ev, cfg))
}

// fire roda no timer, fora do request: configuração e horário são lidos de novo.
func (o *OffHoursResponder) fire(ev MessageEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	cfg, err := o.hours.OffHoursConfig(ctx)
	if err != nil {
		logger.Error("scheduled off-hours: config failed", zap.String("correlation_id", ev.CorrelationID), zap.Error(err))
		o.result(ReplyResult{Reason: REASON_ERROR})
		return
	}
	if !cfg.Enabled {
		o.result(ReplyResult{Reason: REASON_DISABLED})
		return
	}
	open, err := o.hours.IsOpen(ctx)
	if err != nil {
		logger.Error("scheduled off-hours: opening status failed", zap.String("correlation_id", ev.CorrelationID), zap.Error(err))
		o.result(ReplyResult{Reason: REASON_ERROR})
		return
	}
	if open {
		o.result(ReplyResult{Reason: REASON_STORE_OPEN})
		return
	}

	res := o.result(o.deliver(ctx, ev, cfg))
	logger.Info("scheduled off-hours reply finished",
		zap.String("correlation_id", ev.CorrelationID),
		zap.Bool("sent", res.Sent),
		zap.String("reason", res.Reason))
}

// deliver aplica o cooldown e envia. O cooldown é reservado antes do envio:
// uma falha de envio não libera o slot.
func (o *OffHoursResponder) deliver(ctx context.Context, ev MessageEvent, cfg storehours.AutoReplyConfig) ReplyResult {
	if o.state.OffHoursCooldown.ShouldSkip(senderKey(ev), cfg.Cooldown()) {
		return ReplyResult{Reason: REASON_COOLDOWN}
	}

	var (
		resp    *tools.SendMessageResponse
		err     error
		payload models.EventPayload
	)
	if cfg.ResponseType == storehours.RESPONSE_TYPE_VIDEO && cfg.Video != "" {
		resp, err = o.sender.SendVideo(ctx, tools.SendVideoRequest{Phone: ev.Phone, Video: cfg.Video, Caption: cfg.Caption})
		payload = models.EventPayload{
			PAYLOAD_MESSAGE_TEXT: cfg.Caption,
			"responseType":       storehours.RESPONSE_TYPE_VIDEO,
			"video":              cfg.Video,
		}
	} else {
		resp, err = o.sender.SendText(ctx, tools.SendTextRequest{Phone: ev.Phone, Message: cfg.Message})
		payload = models.EventPayload{
			PAYLOAD_MESSAGE_TEXT: cfg.Message,
			"responseType":       storehours.RESPONSE_TYPE_TEXT,
		}
	}
	if err != nil {
		logger.Warn("off-hours auto-reply failed",
			zap.String("correlation_id", ev.CorrelationID),
			zap.String("phone", tools.MaskPhone(ev.Phone)),
			zap.Error(err))
		return ReplyResult{Reason: REASON_SEND_FAILED}
	}
	payload["zapiMessageId"] = responseMessageID(resp)

	if err := o.recorder.RecordSent(ctx, ev, CHANNEL_OFF_HOURS, payload); err != nil {
		logger.Error("record off-hours reply failed",
			zap.String("correlation_id", ev.CorrelationID),
			zap.Error(err))
	}
	return ReplyResult{Sent: true}
}

func (o *OffHoursResponder) result(res ReplyResult) ReplyResult {
	label := res.Reason
	if res.Sent {
		label = "sent"
	}
	metrics.AutoReplies.WithLabelValues(CHANNEL_OFF_HOURS, label).Inc()
	return res
}

// senderKey identifica o remetente nos caches e no agendador.
func senderKey(ev MessageEvent) string {
	if ev.PhoneE164 != "" {
		return ev.PhoneE164
	}
	return ev.Phone
}
