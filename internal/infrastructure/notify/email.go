package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/application/stocksync"
	"github.com/erp/stocksync/internal/infrastructure/config"
)

// sendFunc delivers a prepared message. It is swapped in tests.
type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

func smtpSend(e *email.Email, addr string, auth smtp.Auth) error {
	return e.Send(addr, auth)
}

// EmailChannel mails reports over SMTP
type EmailChannel struct {
	cfg    config.EmailConfig
	addr   string
	send   sendFunc
	logger *zap.Logger
}

var _ stocksync.Channel = (*EmailChannel)(nil)

// NewEmailChannel creates an SMTP channel
func NewEmailChannel(cfg config.EmailConfig, logger *zap.Logger) *EmailChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailChannel{
		cfg:    cfg,
		addr:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		send:   smtpSend,
		logger: logger.With(zap.String("channel", "email")),
	}
}

func (c *EmailChannel) message(title, body string, success bool) *email.Email {
	e := email.NewEmail()
	e.From = c.cfg.From
	e.To = append([]string(nil), c.cfg.To...)
	if success {
		e.Subject = "[stocksync] " + title
	} else {
		e.Subject = "[stocksync] FAILED: " + title
	}
	e.Text = []byte(body)
	return e
}

// Send mails the report. Failures are logged and reported as false.
func (c *EmailChannel) Send(ctx context.Context, title, body string, success bool) bool {
	if err := ctx.Err(); err != nil {
		c.logger.Warn("Email not sent", zap.Error(err))
		return false
	}

	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	}

	if err := c.send(c.message(title, body, success), c.addr, auth); err != nil {
		c.logger.Warn("Email delivery failed",
			zap.String("addr", c.addr),
			zap.Strings("to", c.cfg.To),
			zap.Error(err))
		return false
	}
	c.logger.Debug("Email delivered", zap.Strings("to", c.cfg.To))
	return true
}
