package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/contest-radar/backend/internal/domain"
)

// DefaultTwilioBaseURL is the Twilio REST API root
const DefaultTwilioBaseURL = "https://api.twilio.com"

// TwilioChannel sends SMS through the Twilio Messages API
type TwilioChannel struct {
	endpoint   string
	accountSID string
	authToken  string
	from       string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewTwilioChannel creates an SMS channel for the given account
func NewTwilioChannel(baseURL, accountSID, authToken, from string, logger *zap.Logger) *TwilioChannel {
	if baseURL == "" {
		baseURL = DefaultTwilioBaseURL
	}
	return &TwilioChannel{
		endpoint:   fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", strings.TrimRight(baseURL, "/"), url.PathEscape(accountSID)),
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func (t *TwilioChannel) Name() domain.Channel { return domain.ChannelSMS }

// Send posts the message body; SMS has no subject line
func (t *TwilioChannel) Send(ctx context.Context, destination, _, body string) bool {
	if destination == "" {
		t.logger.Warn("SMS skipped, no phone number")
		return false
	}

	sid, err := t.post(ctx, destination, body)
	if err != nil {
		t.logger.Error("SMS delivery failed",
			zap.String("to", destination),
			zap.Error(err),
		)
		return false
	}

	t.logger.Info("SMS sent", zap.String("to", destination), zap.String("sid", sid))
	return true
}

func (t *TwilioChannel) post(ctx context.Context, to, body string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", t.from)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send SMS: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		SID     string `json:"sid"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("twilio returned status %d: %s", resp.StatusCode, result.Message)
	}
	return result.SID, nil
}

// LogSMSChannel stands in for SMS in development. It logs the message and
// always reports delivery.
type LogSMSChannel struct {
	logger *zap.Logger
}

// NewLogSMSChannel creates the development SMS channel
func NewLogSMSChannel(logger *zap.Logger) *LogSMSChannel {
	return &LogSMSChannel{logger: logger}
}

func (l *LogSMSChannel) Name() domain.Channel { return domain.ChannelSMS }

func (l *LogSMSChannel) Send(_ context.Context, destination, _, body string) bool {
	l.logger.Info("Mock SMS",
		zap.String("to", destination),
		zap.String("body", body),
	)
	return true
}
