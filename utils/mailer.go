package utils

import (
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/amaglobal/ama/config"
)

// SendMail delivers a plain-text email using the configured SMTP relay.
// Magic links and password resets are the only senders, so there is no
// queueing; a failed send surfaces to the caller immediately.
func SendMail(to, subject, body string) error {
	cfg := config.Get()
	if cfg.SMTPHost == "" || cfg.SMTPFrom == "" {
		return fmt.Errorf("smtp not configured")
	}

	fromName := cfg.SMTPFromName
	if fromName == "" {
		fromName = "AMA Global"
	}
	msg := buildMessage(fromName, cfg.SMTPFrom, to, subject, body)

	addr := net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort))
	auth := smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)

	if cfg.SMTPTLS {
		return sendSTARTTLS(addr, cfg.SMTPHost, auth, cfg.SMTPFrom, to, msg, cfg.SMTPUsername != "")
	}
	return smtp.SendMail(addr, auth, cfg.SMTPFrom, []string{to}, msg)
}

func buildMessage(fromName, from, to, subject, body string) []byte {
	enc := mime.QEncoding
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", enc.Encode("utf-8", fromName), from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", enc.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func sendSTARTTLS(addr, host string, auth smtp.Auth, from, to string, msg []byte, authenticate bool) error {
	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.Dial("tcp", addr)
	if err != nil {
		return err
	}
	// A stuck relay must not hang a sign-in request.
	_ = conn.SetDeadline(time.Now().Add(15 * time.Second))

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if authenticate {
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
