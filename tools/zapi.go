package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"zapihook/metrics"

	"github.com/sony/gobreaker"
)

const DEFAULT_ZAPI_TIMEOUT = 15 * time.Second
const errorBodyPreview = 400

// ErrValidation marca requisições rejeitadas antes de chamar a Z-API.
var ErrValidation = errors.New("invalid z-api request")

// ZApiError is returned when Z-API answers with a non-2xx status, times out or
// cannot be reached.
type ZApiError struct {
	Status int
	Body   string
	Path   string
	Err    error
}

func (e *ZApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("z-api request failed (%d) %s: %v", e.Status, e.Path, e.Err)
	}
	body := e.Body
	if len(body) > errorBodyPreview {
		body = body[:errorBodyPreview]
	}
	if body == "" {
		body = "no body"
	}
	return fmt.Sprintf("z-api request failed (%d) %s: %s", e.Status, e.Path, body)
}

func (e *ZApiError) Unwrap() error {
	return e.Err
}

type SendTextRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type SendVideoRequest struct {
	Phone        string `json:"phone"`
	Video        string `json:"video"`
	Caption      string `json:"caption,omitempty"`
	DelayMessage *int   `json:"delayMessage,omitempty"`
	ViewOnce     *bool  `json:"viewOnce,omitempty"`
}

type ButtonAction struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"label"`
	URL  string `json:"url,omitempty"`
}

type SendButtonActionsRequest struct {
	Phone         string         `json:"phone"`
	Message       string         `json:"message"`
	ButtonActions []ButtonAction `json:"buttonActions"`
	FooterText    string         `json:"footerText,omitempty"`
}

type SendMessageResponse struct {
	ZaapID    string `json:"zaapId"`
	MessageID string `json:"messageId"`
	ID        string `json:"id"`
}

// ZApiClient is a thin client for the Z-API instance endpoints.
// Calls go through a circuit breaker so a dead gateway fails fast.
type ZApiClient struct {
	BaseURL       string
	InstanceID    string
	InstanceToken string
	ClientToken   string
	Timeout       time.Duration
	HTTPClient    *http.Client

	breaker *gobreaker.CircuitBreaker
}

func NewZApiClient(baseURL, instanceID, instanceToken, clientToken string, timeout time.Duration) *ZApiClient {
	if timeout <= 0 {
		timeout = DEFAULT_ZAPI_TIMEOUT
	}
	return &ZApiClient{
		BaseURL:       strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		InstanceID:    strings.TrimSpace(instanceID),
		InstanceToken: strings.TrimSpace(instanceToken),
		ClientToken:   strings.TrimSpace(clientToken),
		Timeout:       timeout,
		HTTPClient:    &http.Client{},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "zapi",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// 4xx é erro do pedido, não indisponibilidade da Z-API
			IsSuccessful: func(err error) bool {
				var zerr *ZApiError
				if errors.As(err, &zerr) {
					return zerr.Status > 0 && zerr.Status < 500
				}
				return err == nil || errors.Is(err, ErrValidation)
			},
		}),
	}
}

func (c *ZApiClient) instancePath() string {
	return "/instances/" + url.PathEscape(c.InstanceID) + "/token/" + url.PathEscape(c.InstanceToken)
}

func (c *ZApiClient) post(ctx context.Context, path string, body any) (*SendMessageResponse, error) {
	fullPath := c.instancePath() + path
	start := time.Now()

	result, err := c.breaker.Execute(func() (any, error) {
		return c.do(ctx, http.MethodPost, fullPath, body)
	})

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ExternalCallDuration.WithLabelValues("zapi", status).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &ZApiError{Status: http.StatusServiceUnavailable, Path: path, Err: err}
		}
		return nil, err
	}
	return result.(*SendMessageResponse), nil
}

func (c *ZApiClient) do(ctx context.Context, method, path string, body any) (*SendMessageResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.ClientToken != "" {
		req.Header.Set("Client-Token", c.ClientToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &ZApiError{Status: http.StatusGatewayTimeout, Path: path, Err: fmt.Errorf("timed out after %s", c.Timeout)}
		}
		return nil, &ZApiError{Status: http.StatusInternalServerError, Path: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		return nil, &ZApiError{Status: status, Body: string(raw), Path: path, Err: fmt.Errorf("read response (status %d): %w", resp.StatusCode, err)}
	}
	if resp.StatusCode >= 300 {
		return nil, &ZApiError{Status: resp.StatusCode, Body: string(raw), Path: path}
	}

	var out SendMessageResponse
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, &ZApiError{Status: resp.StatusCode, Body: string(raw), Path: path, Err: err}
		}
	}
	return &out, nil
}

// SendText envia uma mensagem de texto simples.
func (c *ZApiClient) SendText(ctx context.Context, req SendTextRequest) (*SendMessageResponse, error) {
	phone, err := assertPhone(req.Phone)
	if err != nil {
		return nil, err
	}
	message, err := assertMessage(req.Message)
	if err != nil {
		return nil, err
	}
	return c.post(ctx, "/send-text", SendTextRequest{Phone: phone, Message: message})
}

// SendVideo envia um vídeo por URL com legenda opcional.
func (c *ZApiClient) SendVideo(ctx context.Context, req SendVideoRequest) (*SendMessageResponse, error) {
	phone, err := assertPhone(req.Phone)
	if err != nil {
		return nil, err
	}
	video, err := assertHTTPURL(req.Video, "video url")
	if err != nil {
		return nil, err
	}
	if req.DelayMessage != nil && *req.DelayMessage < 0 {
		return nil, fmt.Errorf("%w: delayMessage must be a positive number", ErrValidation)
	}
	body := SendVideoRequest{
		Phone:        phone,
		Video:        video,
		Caption:      strings.TrimSpace(req.Caption),
		DelayMessage: req.DelayMessage,
		ViewOnce:     req.ViewOnce,
	}
	return c.post(ctx, "/send-video", body)
}

// SendButtonActions envia uma mensagem com até 3 botões (URL ou resposta).
func (c *ZApiClient) SendButtonActions(ctx context.Context, req SendButtonActionsRequest) (*SendMessageResponse, error) {
	phone, err := assertPhone(req.Phone)
	if err != nil {
		return nil, err
	}
	message, err := assertMessage(req.Message)
	if err != nil {
		return nil, err
	}
	if len(req.ButtonActions) == 0 {
		return nil, fmt.Errorf("%w: buttonActions must be a non-empty array", ErrValidation)
	}

	actions := req.ButtonActions
	if len(actions) > 3 {
		actions = actions[:3]
	}
	out := make([]ButtonAction, 0, len(actions))
	for i, a := range actions {
		id := strings.TrimSpace(a.ID)
		if id == "" {
			id = "btn-" + strconv.Itoa(i+1)
		}
		text, err := assertMessage(a.Text)
		if err != nil {
			return nil, err
		}
		action := ButtonAction{ID: id, Type: "REPLY", Text: text}
		if strings.TrimSpace(a.URL) != "" {
			u, err := assertHTTPURL(a.URL, "button url")
			if err != nil {
				return nil, err
			}
			action.Type = "URL"
			action.URL = u
		}
		out = append(out, action)
	}

	return c.post(ctx, "/send-button-actions", SendButtonActionsRequest{
		Phone:         phone,
		Message:       message,
		ButtonActions: out,
		FooterText:    strings.TrimSpace(req.FooterText),
	})
}

func assertPhone(phone string) (string, error) {
	normalized := NormalizePhone(phone)
	if normalized == "" {
		return "", fmt.Errorf("%w: invalid phone, use E.164 digits without '+'", ErrValidation)
	}
	return normalized, nil
}

func assertMessage(message string) (string, error) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return "", fmt.Errorf("%w: message cannot be empty", ErrValidation)
	}
	return trimmed, nil
}

func assertHTTPURL(raw, field string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %s is invalid", ErrValidation, field)
	}
	return u.String(), nil
}
