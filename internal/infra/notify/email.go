package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"

	"github.com/NasaVasa/itemwatcher/internal/domain"
	"github.com/jordan-wright/email"
	"go.uber.org/zap"
)

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// EmailNotifier sends alerts over SMTP with plain text and HTML bodies.
type EmailNotifier struct {
	cfg    EmailConfig
	addr   string
	send   func(e *email.Email) error
	logger *zap.Logger
}

func NewEmailNotifier(cfg EmailConfig, logger *zap.Logger) *EmailNotifier {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	n := &EmailNotifier{
		cfg:    cfg,
		addr:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		logger: logger,
	}
	n.send = n.sendSMTP
	return n
}

func (n *EmailNotifier) Dispatch(ctx context.Context, event domain.AlertEvent) domain.DeliveryOutcome {
	outcome := domain.DeliveryOutcome{Channel: "email", Kind: event.Kind}
	msg := Render(event)

	e := email.NewEmail()
	e.From = n.cfg.From
	e.To = []string{n.cfg.To}
	e.Subject = msg.Subject
	e.Text = []byte(msg.Text)
	e.HTML = []byte(msg.HTML)

	// net/smtp has no context support; the send is abandoned, not aborted, on expiry.
	done := make(chan error, 1)
	go func() { done <- n.send(e) }()

	select {
	case err := <-done:
		if err != nil {
			outcome.Reason = err.Error()
			return outcome
		}
	case <-ctx.Done():
		outcome.Reason = ctx.Err().Error()
		return outcome
	}

	n.logger.Info("email alert sent", zap.Uint("product_id", event.ProductID), zap.String("transition", string(event.Kind)))
	outcome.Delivered = true
	return outcome
}

func (n *EmailNotifier) sendSMTP(e *email.Email) error {
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	if n.cfg.Port == 465 {
		return e.SendWithTLS(n.addr, auth, &tls.Config{ServerName: n.cfg.Host})
	}
	return e.Send(n.addr, auth)
}
