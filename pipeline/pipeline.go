package pipeline

import (
	"context"
	"time"

	"zapihook/logger"

	"go.uber.org/zap"
)

const DEFAULT_EXTERNAL_TIMEOUT = 10 * time.Second

// Motivos de não envio (ReplyResult.Reason).
const (
	REASON_FROM_ME           = "from_me"
	REASON_TRAFFIC_SENT      = "traffic_sent"
	REASON_DISABLED          = "disabled"
	REASON_ERROR             = "error"
	REASON_STORE_OPEN        = "store_open"
	REASON_MISSING_PHONE     = "missing_phone"
	REASON_SCHEDULED         = "scheduled"
	REASON_COOLDOWN          = "cooldown"
	REASON_SEND_FAILED       = "send_failed"
	REASON_TRIGGER_NOT_FOUND = "trigger_not_found"
	REASON_PHONE_NOT_FOUND   = "phone_not_found"
)

type ReplyResult struct {
	Sent   bool   `json:"sent"`
	Reason string `json:"reason,omitempty"`
}

// Result is the webhook response body of a processed event.
type Result struct {
	OK             bool          `json:"ok"`
	TrafficResult  ReplyResult   `json:"trafficResult"`
	OffHoursResult ReplyResult   `json:"offHoursResult"`
	CrmSyncResult  CrmSyncResult `json:"crmSyncResult"`
}

type Pipeline struct {
	recorder *Recorder
	traffic  *TrafficResponder
	offHours *OffHoursResponder
	timeout  time.Duration
}

func New(recorder *Recorder, traffic *TrafficResponder, offHours *OffHoursResponder, timeout time.Duration) *Pipeline {
	if timeout <= 0 {
		timeout = DEFAULT_EXTERNAL_TIMEOUT
	}
	return &Pipeline{recorder: recorder, traffic: traffic, offHours: offHours, timeout: timeout}
}

// Handle processa um evento normalizado: registra no CRM, descarta mensagens
// do próprio atendente e decide as respostas automáticas (tráfego antes do
// fora de horário). Cada etapa falha isolada.
func (p *Pipeline) Handle(ctx context.Context, ev MessageEvent) Result {
	// o provedor pode desconectar; os efeitos colaterais seguem até o fim
	ctx = context.WithoutCancel(ctx)

	res := Result{OK: true}

	stageCtx, cancel := context.WithTimeout(ctx, p.timeout)
	res.CrmSyncResult = p.recorder.RecordReceived(stageCtx, ev)
	cancel()

	if ev.FromMe || res.CrmSyncResult.Echo {
		res.TrafficResult = ReplyResult{Reason: REASON_FROM_ME}
		res.OffHoursResult = ReplyResult{Reason: REASON_FROM_ME}
		logger.Info("webhook: attendant message, skipping auto replies",
			zap.String("correlation_id", ev.CorrelationID),
			zap.Bool("echo", res.CrmSyncResult.Echo))
		return res
	}

	stageCtx, cancel = context.WithTimeout(ctx, p.timeout)
	res.TrafficResult = p.traffic.Respond(stageCtx, ev)
	cancel()

	stageCtx, cancel = context.WithTimeout(ctx, p.timeout)
	res.OffHoursResult = p.offHours.Respond(stageCtx, ev, res.TrafficResult.Sent)
	cancel()

	logger.Info("webhook processed",
		zap.String("correlation_id", ev.CorrelationID),
		zap.String("preview", ev.LogPreview()),
		zap.Bool("traffic_sent", res.TrafficResult.Sent),
		zap.String("traffic_reason", res.TrafficResult.Reason),
		zap.Bool("off_hours_sent", res.OffHoursResult.Sent),
		zap.String("off_hours_reason", res.OffHoursResult.Reason))
	return res
}
