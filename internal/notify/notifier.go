package notify

import (
	"crypto/tls"
	"fmt"
	"net/smtp"

	"github.com/domodwyer/mailyak/v3"
)

// Kind selects which email template a message uses.
type Kind string

const (
	KindAlmostDone      Kind = "almostDone"
	KindAlmostAvailable Kind = "almostAvailable"
	KindTest            Kind = "test"
)

// Data carries the template fields for a notification email.
type Data struct {
	MachineName    string
	CompletionTime string
	SentTime       string
}

// Notifier delivers a single notification email. Implementations report
// failure but never retry; delivery is at-most-one-attempt.
type Notifier interface {
	Send(to string, kind Kind, data Data) error
}

// SMTPNotifier sends mail over SMTP with implicit TLS.
type SMTPNotifier struct {
	host     string
	port     int
	auth     smtp.Auth
	fromName string
	fromAddr string
}

// NewSMTPNotifier creates a notifier for the given SMTP endpoint.
func NewSMTPNotifier(host string, port int, username, password, fromName, fromAddr string) *SMTPNotifier {
	return &SMTPNotifier{
		host:     host,
		port:     port,
		auth:     smtp.PlainAuth("", username, password, host),
		fromName: fromName,
		fromAddr: fromAddr,
	}
}

// Send builds and delivers one email for the given kind.
func (n *SMTPNotifier) Send(to string, kind Kind, data Data) error {
	mail, err := mailyak.NewWithTLS(
		fmt.Sprintf("%s:%d", n.host, n.port),
		n.auth,
		&tls.Config{ServerName: n.host},
	)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}

	mail.To(to)
	mail.From(n.fromAddr)
	mail.FromName(n.fromName)
	mail.Subject(subjectFor(kind, data))

	if err := renderBody(mail.HTML(), kind, data); err != nil {
		return fmt.Errorf("failed to render %s template: %w", kind, err)
	}

	if err := mail.Send(); err != nil {
		return fmt.Errorf("failed to send %s email to %s: %w", kind, to, err)
	}
	return nil
}

func subjectFor(kind Kind, data Data) string {
	switch kind {
	case KindAlmostDone:
		return fmt.Sprintf("%s Almost Done!", data.MachineName)
	case KindAlmostAvailable:
		return fmt.Sprintf("%s Almost Available!", data.MachineName)
	default:
		return "Test Email from Laundry Notifications"
	}
}
