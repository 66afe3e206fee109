package pkg

import (
	"crypto/tls"
	"fmt"
	"html"

	"gopkg.in/gomail.v2"

	"PinSocial/internal/config"
)

// Mailer gomail 发信
type Mailer struct {
	cfg    config.SMTPConfig
	dialer *gomail.Dialer
}

func NewMailer(cfg config.SMTPConfig) *Mailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	return &Mailer{cfg: cfg, dialer: d}
}

func (m *Mailer) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)
	return m.dialer.DialAndSend(msg)
}

// FollowRequestHTML 关注申请通知正文
func FollowRequestHTML(receiver, sender string) string {
	return fmt.Sprintf(`<p>Hi %s,</p><p><b>%s</b> wants to follow you. Open the app to accept or reject the request.</p>`,
		html.EscapeString(receiver), html.EscapeString(sender))
}

// FollowAcceptedHTML 申请通过通知正文
func FollowAcceptedHTML(sender, receiver string) string {
	return fmt.Sprintf(`<p>Hi %s,</p><p><b>%s</b> accepted your follow request.</p>`,
		html.EscapeString(sender), html.EscapeString(receiver))
}
