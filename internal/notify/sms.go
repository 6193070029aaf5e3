// Package notify delivers one-time codes to mobile numbers.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/internhub/pkg/logger"
)

// Sender delivers a text message to one mobile number.
type Sender interface {
	Send(ctx context.Context, mobile, message string) error
}

// SMSConfig configures the bulk SMS HTTP gateway.
type SMSConfig struct {
	Endpoint string
	APIKey   string
	SenderID string
	Route    string
	Timeout  time.Duration
}

// ErrDeliveryFailed reports a rejected or unreachable gateway request.
var ErrDeliveryFailed = errors.New("notify: sms delivery failed")

const maxErrorBody = 512

// HTTPSender posts form encoded messages to an SMS gateway.
type HTTPSender struct {
	cfg        SMSConfig
	httpClient *http.Client
	log        *zap.Logger
}

// NewHTTPSender validates cfg and builds a sender. A nil httpClient gets one
// with cfg.Timeout.
func NewHTTPSender(cfg SMSConfig, httpClient *http.Client) (*HTTPSender, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Endpoint == "" {
		return nil, errors.New("notify: sms endpoint is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("notify: sms api key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPSender{
		cfg:        cfg,
		httpClient: httpClient,
		log:        logger.WithModule("notify.sms"),
	}, nil
}

func (s *HTTPSender) Send(ctx context.Context, mobile, message string) error {
	form := url.Values{}
	form.Set("sender_id", s.cfg.SenderID)
	form.Set("message", message)
	form.Set("route", s.cfg.Route)
	form.Set("numbers", strings.TrimSpace(mobile))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("notify: create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("authorization", s.cfg.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		s.log.Warn("sms gateway rejected message",
			zap.Int("status", resp.StatusCode),
			zap.String("body", strings.TrimSpace(string(body))))
		return fmt.Errorf("%w: gateway returned status %d", ErrDeliveryFailed, resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// LogSender writes messages to the debug log instead of delivering them.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender() *LogSender {
	return &LogSender{log: logger.WithModule("notify.sms")}
}

func (s *LogSender) Send(_ context.Context, mobile, message string) error {
	s.log.Debug("sms delivery disabled, message not sent",
		zap.String("mobile", mobile),
		zap.String("message", message))
	return nil
}

// CodeMessage is the text sent with a registration code.
func CodeMessage(code string) string {
	return "Your OTP is " + code
}
