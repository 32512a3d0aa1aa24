package provider

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func TestSMTPSender_Send(t *testing.T) {
	s, err := NewSMTPSender("smtp.example.com:587", "user", "pass", "Lucky Grid <no-reply@example.com>")
	require.NoError(t, err)

	var got capturedMail
	s.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		got = capturedMail{addr: addr, from: from, to: to, msg: string(msg)}
		return nil
	}

	err = s.Send(context.Background(), "ama@example.com", "Your Lucky Draw Picks", "<p>7, 12</p>")
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", got.addr)
	assert.Equal(t, "no-reply@example.com", got.from)
	assert.Equal(t, []string{"ama@example.com"}, got.to)
	assert.Contains(t, got.msg, "Subject: Your Lucky Draw Picks\r\n")
	assert.Contains(t, got.msg, "Content-Type: text/html; charset=utf-8")
	assert.Contains(t, got.msg, "\r\n\r\n<p>7, 12</p>")
}

func TestSMTPSender_EncodesNonASCIISubject(t *testing.T) {
	s, err := NewSMTPSender("smtp.example.com:25", "", "", "no-reply@example.com")
	require.NoError(t, err)
	assert.Nil(t, s.auth)

	var msg string
	s.send = func(_ string, _ smtp.Auth, _ string, _ []string, m []byte) error {
		msg = string(m)
		return nil
	}
	require.NoError(t, s.Send(context.Background(), "ama@example.com", "🎉 You Won!", "x"))
	assert.Contains(t, msg, "Subject: =?utf-8?q?")
}

func TestSMTPSender_Errors(t *testing.T) {
	_, err := NewSMTPSender("no-port", "", "", "a@example.com")
	assert.Error(t, err)
	_, err = NewSMTPSender("smtp.example.com:25", "", "", "not an address")
	assert.Error(t, err)

	s, err := NewSMTPSender("smtp.example.com:25", "", "", "a@example.com")
	require.NoError(t, err)
	relayErr := errors.New("421 try later")
	s.send = func(string, smtp.Auth, string, []string, []byte) error { return relayErr }

	assert.ErrorIs(t, s.Send(context.Background(), "b@example.com", "s", "b"), relayErr)
	assert.Error(t, s.Send(context.Background(), "bad address", "s", "b"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, "b@example.com", "s", "b"), context.Canceled)
}

func TestLogSender(t *testing.T) {
	s := NewLogSender(discardLogger())
	assert.NoError(t, s.Send(context.Background(), "a@example.com", "s", "b"))
	assert.Error(t, s.Send(context.Background(), "", "s", "b"))
}
