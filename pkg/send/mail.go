package send

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"

	"report-scheduler/pkg/apis"
)

var ErrNoRecipients = errors.New("no recipients")

// Email is one report delivery.
type Email struct {
	To         []string
	Subject    string
	Body       string
	Attachment string
}

type Mailer interface {
	Send(ctx context.Context, email *Email) error
}

// SMTPMailer delivers mail through the server configured in the plugin settings.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

func NewSMTPMailer(settings *apis.Settings) (*SMTPMailer, error) {
	if settings.EmailHost == "" || settings.Email == "" {
		return nil, errors.New("email sender is not configured")
	}

	port := settings.EmailPort
	if port == 0 {
		port = apis.DefaultEmailPort
	}
	if port < 0 || port > 65535 {
		return nil, errors.Errorf("invalid email port %d", port)
	}

	return &SMTPMailer{
		Host:     settings.EmailHost,
		Port:     port,
		Username: settings.Email,
		Password: settings.EmailPassword,
		Timeout:  30 * time.Second,
	}, nil
}

func (m *SMTPMailer) message(email *Email) (*mail.Msg, error) {
	if len(email.To) == 0 {
		return nil, ErrNoRecipients
	}

	msg := mail.NewMsg()
	if err := msg.From(m.Username); err != nil {
		return nil, errors.Wrapf(err, "invalid sender %q", m.Username)
	}
	if err := msg.To(email.To...); err != nil {
		return nil, errors.Wrap(err, "invalid recipients")
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(mail.TypeTextPlain, email.Body)
	if email.Attachment != "" {
		msg.AttachFile(email.Attachment)
	}
	return msg, nil
}

func (m *SMTPMailer) Send(ctx context.Context, email *Email) error {
	msg, err := m.message(email)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.Host,
		mail.WithPort(m.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.Username),
		mail.WithPassword(m.Password),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(m.Timeout),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create mail client")
	}

	if err = client.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.Wrapf(err, "failed to send mail via %s:%d", m.Host, m.Port)
	}

	logrus.Infof("[Mail] Sent %q to %d recipient(s)", email.Subject, len(email.To))
	return nil
}

// String is used in logs; it never includes the password.
func (m *SMTPMailer) String() string {
	return fmt.Sprintf("%s@%s:%d", m.Username, m.Host, m.Port)
}
