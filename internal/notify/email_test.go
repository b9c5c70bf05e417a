package notify

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cenownik/pricewatch/internal/config"
	"github.com/cenownik/pricewatch/internal/domain/notification"
	"github.com/cenownik/pricewatch/internal/domain/offer"
)

type fakeSender struct {
	ready    bool
	failures int
	sent     []string
	subjects []string
}

func (f *fakeSender) Ready() bool { return f.ready }

func (f *fakeSender) Send(_ context.Context, to, subject, _ string) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("smtp: connection reset")
	}
	f.sent = append(f.sent, to)
	f.subjects = append(f.subjects, subject)
	return nil
}

func testEvent() *notification.Event {
	target := 90.0
	return &notification.Event{
		UserEmail: "janek@example.com",
		UserName:  "janek",
		Offer: &offer.Offer{
			ID:          7,
			URL:         "https://www.morele.net/produkt-7",
			Title:       "Monitor 27\"",
			TargetPrice: &target,
			Source:      "morele",
		},
		NewPrice:    85,
		PrevPrice:   100,
		DropPercent: 15,
		Savings:     15,
	}
}

func TestEmailChannelSkipsWhenNotReady(t *testing.T) {
	sender := &fakeSender{ready: false}
	rec := &sleepRecorder{}
	ch := NewEmailChannel(sender, 3, time.Second, zap.NewNop()).WithSleep(rec.sleep)

	require.False(t, ch.Send(context.Background(), testEvent()))
	require.Empty(t, sender.sent)
	require.Empty(t, rec.waits)
}

func TestEmailChannelRetriesThenDelivers(t *testing.T) {
	sender := &fakeSender{ready: true, failures: 2}
	rec := &sleepRecorder{}
	ch := NewEmailChannel(sender, 3, time.Millisecond, zap.NewNop()).WithSleep(rec.sleep)

	require.True(t, ch.Send(context.Background(), testEvent()))
	require.Equal(t, []string{"janek@example.com"}, sender.sent)
	require.Len(t, rec.waits, 2)
	require.Contains(t, sender.subjects[0], "Monitor 27\"")
}

func TestEmailChannelExhaustsRetries(t *testing.T) {
	sender := &fakeSender{ready: true, failures: 10}
	rec := &sleepRecorder{}
	ch := NewEmailChannel(sender, 2, time.Millisecond, zap.NewNop()).WithSleep(rec.sleep)

	require.False(t, ch.Send(context.Background(), testEvent()))
	require.Empty(t, sender.sent)
	require.Equal(t, 8, sender.failures)
}

func TestMailerConfiguration(t *testing.T) {
	t.Run("unconfigured", func(t *testing.T) {
		m := NewMailer(config.Email{}, zap.NewNop())
		require.False(t, m.Ready())
		require.Equal(t, "none", m.AuthType())
		require.ErrorIs(t, m.Send(context.Background(), "a@b.c", "s", "<p/>"), ErrEmailNotConfigured)
	})

	t.Run("smtp", func(t *testing.T) {
		m := NewMailer(config.Email{
			From: `"Cenownik" <noreply@cenownik.local>`,
			SMTP: config.SMTP{Host: "mail.example.com", Port: 587, User: "u", Password: "p"},
		}, zap.NewNop())
		require.True(t, m.Ready())
		require.Equal(t, "smtp", m.AuthType())
		require.Equal(t, "noreply@cenownik.local", m.fromAddress())
	})

	t.Run("oauth2 wins over smtp", func(t *testing.T) {
		m := NewMailer(config.Email{
			OAuth: config.OAuth{ClientID: "id", ClientSecret: "sec", RefreshToken: "rt", User: "u@gmail.com"},
			SMTP:  config.SMTP{Host: "mail.example.com", Port: 587, User: "u", Password: "p"},
		}, zap.NewNop())
		require.True(t, m.Ready())
		require.Equal(t, "oauth2", m.AuthType())
	})
}

// silentSMTPServer accepts connections and never speaks, the failure mode of
// a wedged SMTP relay.
func silentSMTPServer(t *testing.T) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err = strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func TestMailerSendTimesOutOnSilentServer(t *testing.T) {
	host, port := silentSMTPServer(t)
	m := NewMailer(config.Email{
		From:    "noreply@cenownik.local",
		Timeout: 150 * time.Millisecond,
		SMTP:    config.SMTP{Host: host, Port: port, User: "u", Password: "p"},
	}, zap.NewNop())

	start := time.Now()
	err := m.Send(context.Background(), "a@b.c", "s", "<p/>")
	require.Error(t, err)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestMailerSendHonorsContextCancellation(t *testing.T) {
	host, port := silentSMTPServer(t)
	m := NewMailer(config.Email{
		From:    "noreply@cenownik.local",
		Timeout: 30 * time.Second,
		SMTP:    config.SMTP{Host: host, Port: port, User: "u", Password: "p"},
	}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := m.Send(ctx, "a@b.c", "s", "<p/>")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestRenderPriceMatchEmail(t *testing.T) {
	subject, html := RenderPriceMatchEmail(testEvent())
	require.Contains(t, subject, "Monitor 27\"")
	require.Contains(t, subject, "85,00 zł")
	require.Contains(t, html, "Cześć janek")
	require.Contains(t, html, "<s>100,00 zł</s>")
	require.Contains(t, html, "<strong>85,00 zł</strong>")
	require.Contains(t, html, "90,00 zł")
	require.Contains(t, html, "https://www.morele.net/produkt-7")
}
