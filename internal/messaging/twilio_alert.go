package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioOpts holds configuration options for the SMS alert notifier.
type TwilioOpts struct {
	AccountSID string
	AuthToken  string
	From       string
	OperatorTo string
}

// TwilioOption defines a configuration option for the SMS alert notifier.
type TwilioOption func(*TwilioOpts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) TwilioOption {
	return func(o *TwilioOpts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) TwilioOption {
	return func(o *TwilioOpts) { o.AuthToken = token }
}

// WithFromNumber sets the sending phone number.
func WithFromNumber(from string) TwilioOption {
	return func(o *TwilioOpts) { o.From = from }
}

// WithOperatorNumber sets the operator's phone number.
func WithOperatorNumber(to string) TwilioOption {
	return func(o *TwilioOpts) { o.OperatorTo = to }
}

// messageCreator is the slice of the Twilio API the notifier uses.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioNotifier sends operator alerts as SMS via Twilio. It is used
// when a workout-automation session is left open for manual
// intervention and the operator needs to know promptly.
type TwilioNotifier struct {
	api  messageCreator
	from string
	to   string
}

// NewTwilioNotifier creates an SMS notifier. Credentials fall back to
// the TWILIO_* environment variables.
func NewTwilioNotifier(opts ...TwilioOption) (*TwilioNotifier, error) {
	var cfg TwilioOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.From == "" {
		cfg.From = os.Getenv("TWILIO_FROM_NUMBER")
	}
	if cfg.OperatorTo == "" {
		cfg.OperatorTo = os.Getenv("OPERATOR_PHONE_NUMBER")
	}
	slog.Debug("messaging.NewTwilioNotifier config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"From_set", cfg.From != "",
		"OperatorTo_set", cfg.OperatorTo != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.From == "" || cfg.OperatorTo == "" {
		return nil, fmt.Errorf("from and operator numbers must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioNotifier{api: client.Api, from: cfg.From, to: cfg.OperatorTo}, nil
}

// NotifyOperator sends the message to the operator's phone.
func (n *TwilioNotifier) NotifyOperator(ctx context.Context, message string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(n.from)
	params.SetTo(n.to)
	params.SetBody(message)

	if _, err := n.api.CreateMessage(params); err != nil {
		slog.Error("TwilioNotifier.NotifyOperator failed", "error", err)
		return fmt.Errorf("failed to send operator alert: %w", err)
	}
	slog.Info("TwilioNotifier.NotifyOperator alert sent")
	return nil
}

// NoopNotifier discards alerts. Used when no Twilio credentials are
// configured.
type NoopNotifier struct{}

func (NoopNotifier) NotifyOperator(ctx context.Context, message string) error {
	slog.Warn("NoopNotifier.NotifyOperator alert dropped (no SMS configured)", "message", message)
	return nil
}
