// Package mail delivers the transactional mails the auth flows need:
// registration verification codes and email 2FA challenge codes.
package mail

import (
	"fmt"
	"net/smtp"
	"os"

	"github.com/pkg/errors"

	"github.com/sparklabs/spark-backend/utils/log"
)

// Mailer sends a single plain text mail.
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer sends through the SMTP relay configured in the environment.
type SMTPMailer struct {
	host string
	port string
	from string
	auth smtp.Auth
}

// NewSMTPMailer reads MAIL_HOST, MAIL_PORT, MAIL_FROM, MAIL_USERNAME and
// MAIL_PASSWORD. Credentials are optional for relays that accept local
// connections unauthenticated.
func NewSMTPMailer() (*SMTPMailer, error) {
	host := os.Getenv("MAIL_HOST")
	from := os.Getenv("MAIL_FROM")
	if host == "" || from == "" {
		return nil, errors.New("MAIL_HOST and MAIL_FROM must be set")
	}
	port := os.Getenv("MAIL_PORT")
	if port == "" {
		port = "587"
	}

	m := &SMTPMailer{host: host, port: port, from: from}
	if user := os.Getenv("MAIL_USERNAME"); user != "" {
		m.auth = smtp.PlainAuth("", user, os.Getenv("MAIL_PASSWORD"), host)
	}
	return m, nil
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		m.from, to, subject, body)
	err := smtp.SendMail(m.host+":"+m.port, m.auth, m.from, []string{to}, []byte(msg))
	return errors.Wrap(err, "send mail")
}

// LogMailer writes mails to the log instead of sending them. Used in local
// development and tests.
type LogMailer struct{}

func (LogMailer) Send(to, subject, body string) error {
	log.Log.WithField("to", to).WithField("subject", subject).Info("mail (not sent): " + body)
	return nil
}
