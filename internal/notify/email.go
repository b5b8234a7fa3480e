package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// EmailOptions parameterise the SMTP channel.
type EmailOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
	Timeout  time.Duration
}

// EmailNotifier 通过 SMTP 发送 text+HTML 双格式邮件。
type EmailNotifier struct {
	opts   EmailOptions
	logger zerolog.Logger
}

// NewEmailNotifier 构造邮件通知器。
func NewEmailNotifier(opts EmailOptions, logger zerolog.Logger) *EmailNotifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Username == "" {
		opts.Username = opts.From
	}
	return &EmailNotifier{
		opts:   opts,
		logger: logger.With().Str("component", "notify_email").Logger(),
	}
}

// Notify builds a multipart/alternative message and delivers it over SMTP
// with STARTTLS and plain auth.
func (n *EmailNotifier) Notify(ctx context.Context, note Notification) error {
	msg := mail.NewMsg()
	if err := msg.From(n.opts.From); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(n.opts.To); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(renderSubject(note))
	msg.SetBodyString(mail.TypeTextPlain, renderText(note))
	msg.AddAlternativeString(mail.TypeTextHTML, renderHTML(note))

	client, err := mail.NewClient(n.opts.Host,
		mail.WithPort(n.opts.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(n.opts.Username),
		mail.WithPassword(n.opts.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(n.opts.Timeout),
	)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	n.logger.Info().
		Str("to", n.opts.To).
		Int("purchased", len(note.Purchased)).
		Msg("通知已发送 (Email)")
	return nil
}

var _ Notifier = (*EmailNotifier)(nil)
