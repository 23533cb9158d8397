package utils

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

type Mailer interface {
	SendUserSignupCode(email, name, code string, ttl time.Duration) error
	SendAdminSignupCode(adminEmail, email, name, role, code string) error
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, user, pass, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, user, pass),
		from:   from,
	}
}

func (m *SMTPMailer) SendUserSignupCode(email, name, code string, ttl time.Duration) error {
	subject, body := UserSignupCodeMessage(name, code, ttl)
	return m.send(email, subject, body)
}

func (m *SMTPMailer) SendAdminSignupCode(adminEmail, email, name, role, code string) error {
	subject, body := AdminSignupCodeMessage(email, name, role, code)
	return m.send(adminEmail, subject, body)
}

func (m *SMTPMailer) send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

// LogMailer stands in when no SMTP host is configured.
type LogMailer struct {
	Logger *logrus.Logger
}

func (m *LogMailer) SendUserSignupCode(email, name, code string, ttl time.Duration) error {
	subject, _ := UserSignupCodeMessage(name, code, ttl)
	m.Logger.WithFields(logrus.Fields{"to": email, "subject": subject, "code": code}).Info("Mail not sent: SMTP disabled")
	return nil
}

func (m *LogMailer) SendAdminSignupCode(adminEmail, email, name, role, code string) error {
	subject, _ := AdminSignupCodeMessage(email, name, role, code)
	m.Logger.WithFields(logrus.Fields{"to": adminEmail, "subject": subject}).Info("Mail not sent: SMTP disabled")
	return nil
}

func UserSignupCodeMessage(name, code string, ttl time.Duration) (string, string) {
	subject := "CropVerse Verification Code"
	body := fmt.Sprintf("Hi %s,\nYour verification code is: %s\n\nThis code will expire in %s.\n", name, code, expiryText(ttl))
	return subject, body
}

// expiryText renders a code lifetime as "10 minutes", "1 hour" or "90 seconds".
func expiryText(ttl time.Duration) string {
	n, unit := int64(ttl/time.Second), "second"
	switch {
	case ttl >= time.Hour && ttl%time.Hour == 0:
		n, unit = int64(ttl/time.Hour), "hour"
	case ttl >= time.Minute && ttl%time.Minute == 0:
		n, unit = int64(ttl/time.Minute), "minute"
	}
	if n != 1 {
		unit += "s"
	}
	return fmt.Sprintf("%d %s", n, unit)
}

func AdminSignupCodeMessage(email, name, role, code string) (string, string) {
	subject := fmt.Sprintf("CropVerse Signup Approval Code: %s", email)
	body := fmt.Sprintf("New signup request:\nName: %s\nEmail: %s\nRole: %s\n\nConfirmation Code: %s\n\nUse Admin Dashboard to approve this user.\n",
		name, email, role, code)
	return subject, body
}
