package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/contest-radar/backend/internal/domain"
)

// DefaultEmailTimeout bounds one SMTP session when the caller sets no deadline
const DefaultEmailTimeout = 30 * time.Second

type sendMailFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailChannel sends plain-text mail through an authenticated SMTP relay
type EmailChannel struct {
	addr     string
	host     string
	from     string
	auth     smtp.Auth
	timeout  time.Duration
	sendMail sendMailFunc
	logger   *zap.Logger
}

// NewEmailChannel creates an SMTP channel authenticating as user
func NewEmailChannel(host string, port int, user, password string, logger *zap.Logger) *EmailChannel {
	e := &EmailChannel{
		addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		host:    host,
		from:    user,
		auth:    smtp.PlainAuth("", user, password, host),
		timeout: DefaultEmailTimeout,
		logger:  logger,
	}
	e.sendMail = e.deliver
	return e
}

func (e *EmailChannel) Name() domain.Channel { return domain.ChannelEmail }

func (e *EmailChannel) Send(ctx context.Context, destination, subject, body string) bool {
	if destination == "" {
		e.logger.Warn("Email skipped, no destination")
		return false
	}
	if err := ctx.Err(); err != nil {
		e.logger.Warn("Email skipped, context done", zap.Error(err))
		return false
	}

	start := time.Now()
	msg := e.message(destination, subject, body)
	if err := e.sendMail(ctx, e.addr, e.auth, e.from, []string{destination}, msg); err != nil {
		e.logger.Error("Email delivery failed",
			zap.String("to", destination),
			zap.Error(err),
		)
		return false
	}

	e.logger.Info("Email sent",
		zap.String("to", destination),
		zap.Duration("latency", time.Since(start)),
	)
	return true
}

// deliver runs one SMTP session. The connection deadline follows ctx, capped
// by the channel timeout, and cancelling ctx closes the connection.
func (e *EmailChannel) deliver(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	dialer := net.Dialer{Timeout: e.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	client, err := smtp.NewClient(conn, e.host)
	if err != nil {
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer client.Close()

	if err := client.Hello("localhost"); err != nil {
		return err
	}
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: e.host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if a != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(a); err != nil {
				return fmt.Errorf("auth: %w", err)
			}
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func (e *EmailChannel) message(to, subject, body string) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", stripNewlines(e.from))
	fmt.Fprintf(&sb, "To: %s\r\n", stripNewlines(to))
	fmt.Fprintf(&sb, "Subject: %s\r\n", stripNewlines(subject))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(sb.String())
}
