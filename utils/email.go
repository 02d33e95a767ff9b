package utils

import (
	"errors"

	"gopkg.in/gomail.v2"
)

// Mailer sends an HTML message
type Mailer interface {
	Send(to, subject, body string) error
}

// DefaultMailer is set in main
var DefaultMailer Mailer

var ErrMailerNotConfigured = errors.New("mailer is not configured")

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.User)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	d := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.User, m.cfg.Password)
	return d.DialAndSend(msg)
}

func SendEmail(to, subject, body string) error {
	if DefaultMailer == nil {
		return ErrMailerNotConfigured
	}
	return DefaultMailer.Send(to, subject, body)
}
