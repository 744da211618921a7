package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// Sender отправляет готовое письмо.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// SMTPConfig — параметры SMTP сервера.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLS      bool
	Timeout  time.Duration
}

// SMTPSender отправляет письма через go-mail. Соединение открывается на каждое письмо.
type SMTPSender struct {
	cfg  SMTPConfig
	opts []mail.Option
}

// NewSMTPSender проверяет конфигурацию и собирает опции клиента.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("не задан SMTP host")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("не задан адрес отправителя")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	return &SMTPSender{cfg: cfg, opts: opts}, nil
}

// Send собирает MIME сообщение (text + HTML альтернатива) и отправляет его.
func (s *SMTPSender) Send(ctx context.Context, m *Message) error {
	msg, err := s.build(m)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.cfg.Host, s.opts...)
	if err != nil {
		return fmt.Errorf("ошибка создания SMTP клиента: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("ошибка отправки письма: %w", err)
	}
	return nil
}

func (s *SMTPSender) build(m *Message) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if err := msg.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("некорректный адрес отправителя: %w", err)
	}
	if m.ToName != "" {
		if err := msg.AddToFormat(m.ToName, m.To); err != nil {
			return nil, fmt.Errorf("некорректный адрес получателя: %w", err)
		}
	} else if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("некорректный адрес получателя: %w", err)
	}

	msg.Subject(m.Subject)
	msg.SetMessageID()
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, m.Text)
	msg.AddAlternativeString(mail.TypeTextHTML, m.HTML)

	return msg, nil
}
