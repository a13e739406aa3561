package notify

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/contest-radar/backend/internal/domain"
)

func TestTwilioChannel_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC123/Messages.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "token" {
			t.Errorf("unexpected basic auth %q/%q", user, pass)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parsing form: %v", err)
		}
		if r.PostForm.Get("To") != "+15550001" || r.PostForm.Get("From") != "+15559999" || r.PostForm.Get("Body") != "hello" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1"}`))
	}))
	defer srv.Close()

	ch := NewTwilioChannel(srv.URL, "AC123", "token", "+15559999", zap.NewNop())
	if !ch.Send(context.Background(), "+15550001", "ignored", "hello") {
		t.Fatal("want delivery confirmed")
	}
}

func TestTwilioChannel_RejectedMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid To number"}`))
	}))
	defer srv.Close()

	ch := NewTwilioChannel(srv.URL, "AC123", "token", "+15559999", zap.NewNop())
	if ch.Send(context.Background(), "bogus", "", "hello") {
		t.Fatal("want delivery failure on 400")
	}
	if ch.Send(context.Background(), "", "", "hello") {
		t.Fatal("want failure without a phone number")
	}
}

func TestEmailChannel_Send(t *testing.T) {
	ch := NewEmailChannel("smtp.example.com", 587, "bot@example.com", "secret", zap.NewNop())

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	ch.sendMail = func(_ context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	if !ch.Send(context.Background(), "user@example.com", "Upcoming Contest: Round 1\r\nBcc: x@evil", "line one\nline two") {
		t.Fatal("want delivery confirmed")
	}
	if gotAddr != "smtp.example.com:587" {
		t.Fatalf("unexpected addr %s", gotAddr)
	}
	if len(gotTo) != 1 || gotTo[0] != "user@example.com" {
		t.Fatalf("unexpected recipients %v", gotTo)
	}
	if strings.Contains(gotMsg, "\r\nBcc:") {
		t.Fatal("subject must not inject headers")
	}
	if !strings.Contains(gotMsg, "Subject: Upcoming Contest: Round 1") || !strings.HasSuffix(gotMsg, "line one\r\nline two") {
		t.Fatalf("unexpected message:\n%s", gotMsg)
	}
}

func TestEmailChannel_SendFailure(t *testing.T) {
	ch := NewEmailChannel("smtp.example.com", 587, "bot@example.com", "secret", zap.NewNop())
	ch.sendMail = func(context.Context, string, smtp.Auth, string, []string, []byte) error {
		return errors.New("535 authentication failed")
	}

	if ch.Send(context.Background(), "user@example.com", "s", "b") {
		t.Fatal("want failure when the relay rejects")
	}
}

func TestEmailChannel_StalledRelayHonoursDeadline(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	// accept and hold connections open without ever sending the 220 greeting
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()
	defer func() {
		select {
		case conn := <-accepted:
			conn.Close()
		default:
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	ch := NewEmailChannel("127.0.0.1", addr.Port, "bot@example.com", "secret", zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan bool, 1)
	go func() { done <- ch.Send(ctx, "user@example.com", "s", "b") }()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("want failure when the relay never greets")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Send still blocked long after the context deadline")
	}
}

func TestEmailChannel_TimeoutWithoutCallerDeadline(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			defer conn.Close()
			time.Sleep(2 * time.Second)
		}
	}()

	ch := NewEmailChannel("127.0.0.1", ln.Addr().(*net.TCPAddr).Port, "bot@example.com", "secret", zap.NewNop())
	ch.timeout = 100 * time.Millisecond

	start := time.Now()
	if ch.Send(context.Background(), "user@example.com", "s", "b") {
		t.Fatal("want failure on a stalled relay")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("channel timeout not applied, took %v", elapsed)
	}
}

func TestLogSMSChannel_AlwaysConfirms(t *testing.T) {
	if !NewLogSMSChannel(zap.NewNop()).Send(context.Background(), "", "", "body") {
		t.Fatal("development channel must confirm delivery")
	}
}

func TestRegistry(t *testing.T) {
	logger := zap.NewNop()
	r := NewRegistry(NewLogSMSChannel(logger), nil, NewEmailChannel("h", 25, "u", "p", logger))

	names := r.Names()
	if len(names) != 2 || names[0] != domain.ChannelEmail || names[1] != domain.ChannelSMS {
		t.Fatalf("unexpected names %v", names)
	}
	if _, ok := r.Get(domain.ChannelSMS); !ok {
		t.Fatal("want sms registered")
	}
	if _, ok := NewRegistry().Get(domain.ChannelEmail); ok {
		t.Fatal("empty registry must not resolve channels")
	}
}
