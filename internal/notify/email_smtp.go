package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	derrors "aegis/pkg/domain-errors"
)

// SMTPEmailSender delivers alert emails through a plain SMTP relay.
type SMTPEmailSender struct {
	addr string
	from string
	// send is swappable for tests; defaults to smtp.SendMail.
	send func(addr, from string, to []string, msg []byte) error
}

func NewSMTPEmailSender(addr, from string) *SMTPEmailSender {
	return &SMTPEmailSender{
		addr: addr,
		from: from,
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

func (s *SMTPEmailSender) SendEmail(ctx context.Context, address, subject, body string) error {
	if s.addr == "" {
		return derrors.New(derrors.CodeUnavailable, "smtp relay not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", address)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(body)

	// smtp.SendMail has no context support; run it in a goroutine so the
	// per-contact deadline still bounds the wait.
	done := make(chan error, 1)
	go func() {
		done <- s.send(s.addr, s.from, []string{address}, []byte(msg.String()))
	}()

	select {
	case err := <-done:
		if err != nil {
			return derrors.Wrap(err, derrors.CodeUnavailable, "smtp relay failed")
		}
		return nil
	case <-ctx.Done():
		return derrors.Wrap(ctx.Err(), derrors.CodeTimeout, "email send timed out")
	}
}
