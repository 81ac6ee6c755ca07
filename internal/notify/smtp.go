// Package notify 實作 bank.Notifier：以 SMTP 寄送帳戶歷史郵件。
package notify

import (
	"context"
	"time"

	"github.com/wneessen/go-mail"

	"bankapi/internal/bank"
	"bankapi/internal/logger"
)

// Options 為 SMTP 連線設定。
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPNotifier 每次寄信都重新連線，寄送完成即關閉。
type SMTPNotifier struct {
	opts Options
	log  logger.Logger
}

var _ bank.Notifier = (*SMTPNotifier)(nil)

// NewSMTP 建立 SMTP 通知器。
func NewSMTP(opts Options, log logger.Logger) *SMTPNotifier {
	if opts.Port == 0 {
		opts.Port = 25
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SMTPNotifier{opts: opts, log: log}
}

// Send 寄送純文字郵件；任何失敗都記錄 warn 並回傳 false。
func (n *SMTPNotifier) Send(ctx context.Context, subject, body, to string) bool {
	msg := mail.NewMsg()
	if err := msg.From(n.opts.From); err != nil {
		n.log.Warnf(ctx, "invalid sender address %q: %v", n.opts.From, err)
		return false
	}
	if err := msg.To(to); err != nil {
		n.log.Warnf(ctx, "invalid recipient address %q: %v", to, err)
		return false
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := mail.NewClient(n.opts.Host, n.clientOptions()...)
	if err != nil {
		n.log.Warnf(ctx, "smtp client setup failed: %v", err)
		return false
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		n.log.Warnf(ctx, "send history email to %s failed: %v", to, err)
		return false
	}
	n.log.Infof(ctx, "history email sent to %s", to)
	return true
}

func (n *SMTPNotifier) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(n.opts.Port),
		mail.WithTimeout(n.opts.Timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if n.opts.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.opts.Username),
			mail.WithPassword(n.opts.Password),
		)
	}
	return opts
}

// Disabled 在未設定 SMTP 主機時使用，永遠回報寄送失敗。
type Disabled struct{}

var _ bank.Notifier = Disabled{}

func (Disabled) Send(context.Context, string, string, string) bool { return false }
