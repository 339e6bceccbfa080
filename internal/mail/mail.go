package mail

import (
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/mrbooking/backend/internal/config"
)

// Sender delivers verification codes over SMTP.
type Sender struct {
	dialer   *gomail.Dialer
	fromName string
	fromAddr string
}

func NewSender(cfg *config.Config) *Sender {
	return &Sender{
		dialer:   gomail.NewDialer(cfg.SMTP_HOST, cfg.SMTP_PORT, cfg.SMTP_USER, cfg.SMTP_PASSWORD),
		fromName: cfg.SMTP_FROM_NAME,
		fromAddr: cfg.SMTP_FROM_ADDR,
	}
}

func (s *Sender) Send(to, subject, html string) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.fromAddr, s.fromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (s *Sender) SendCode(to, subject, action, code string) error {
	return s.Send(to, subject, fmt.Sprintf("<p>Your %s verification code is %s. It expires in 5 minutes.</p>", action, code))
}
