package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/cenownik/pricewatch/internal/config"
	"github.com/cenownik/pricewatch/internal/domain/notification"
	"github.com/cenownik/pricewatch/internal/obs/retry"
)

var ErrEmailNotConfigured = errors.New("email transport not configured")

const (
	authTypeOAuth2 = "oauth2"
	authTypeSMTP   = "smtp"
	authTypeNone   = "none"

	gmailSMTPAddr = "smtp.gmail.com:587"
)

var googleOAuthEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// Mailer delivers HTML mail over SMTP. It is configured from one of two
// credential sets, tried in order: Gmail OAuth2 (XOAUTH2) or plain SMTP.
// With neither present the mailer reports not-ready and every send fails
// fast without touching the network.
type Mailer struct {
	addr       string
	from       string
	subjPrefix string
	timeout    time.Duration
	auth       smtp.Auth
	tokens     oauth2.TokenSource
	oauthUser  string
	authType   string
	log        *zap.Logger
}

var _ notification.EmailSender = (*Mailer)(nil)

func NewMailer(cfg config.Email, log *zap.Logger) *Mailer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	m := &Mailer{
		from:       cfg.From,
		subjPrefix: cfg.SubjPrefix,
		timeout:    timeout,
		authType:   authTypeNone,
		log:        log.With(zap.String("component", "notify.mailer")),
	}

	if o := cfg.OAuth; o.ClientID != "" && o.ClientSecret != "" && o.RefreshToken != "" && o.User != "" {
		conf := &oauth2.Config{
			ClientID:     o.ClientID,
			ClientSecret: o.ClientSecret,
			Endpoint:     googleOAuthEndpoint,
		}
		m.tokens = conf.TokenSource(context.Background(), &oauth2.Token{RefreshToken: o.RefreshToken})
		m.oauthUser = o.User
		m.addr = gmailSMTPAddr
		m.authType = authTypeOAuth2
		m.log.Info("mailer initialized with Gmail OAuth2", zap.String("user", o.User))
		return m
	}

	if s := cfg.SMTP; s.Host != "" && s.User != "" && s.Password != "" {
		m.addr = fmt.Sprintf("%s:%d", s.Host, s.Port)
		m.auth = smtp.PlainAuth("", s.User, s.Password, s.Host)
		m.authType = authTypeSMTP
		m.log.Info("mailer initialized with SMTP", zap.String("addr", m.addr))
		return m
	}

	m.log.Warn("mailer disabled: configure either Gmail OAuth2 or SMTP credentials")
	return m
}

func (m *Mailer) Ready() bool { return m.authType != authTypeNone }

func (m *Mailer) AuthType() string { return m.authType }

func (m *Mailer) Send(ctx context.Context, to, subject, html string) error {
	if !m.Ready() {
		return ErrEmailNotConfigured
	}

	subj := strings.TrimSpace(m.subjPrefix + " " + subject)
	msg := []byte(
		"From: " + m.from + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subj + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=utf-8\r\n" +
			"X-Mailer: Cenownik Price Alert System\r\n" +
			"\r\n" + html + "\r\n")

	auth := m.auth
	if m.authType == authTypeOAuth2 {
		tok, err := m.tokens.Token()
		if err != nil {
			return fmt.Errorf("oauth2 token: %w", err)
		}
		auth = xoauth2Auth{user: m.oauthUser, token: tok.AccessToken}
	}

	start := time.Now()
	log := m.log.With(
		zap.String("smtp_addr", m.addr),
		zap.String("to", to),
		zap.String("subject", subj),
	)
	log.Debug("sending email...")

	if err := m.sendMail(ctx, auth, to, msg); err != nil {
		log.Error("sendmail failed", zap.Error(err))
		return err
	}
	log.Info("email sent", zap.Duration("elapsed", time.Since(start)))
	return nil
}

// sendMail runs the SMTP exchange over a deadline-bound connection. A server
// that accepts the dial and goes silent fails at the deadline instead of
// holding the dispatch goroutine, and cancelling ctx aborts mid-exchange.
func (m *Mailer) sendMail(ctx context.Context, auth smtp.Auth, to string, msg []byte) error {
	dialer := net.Dialer{Timeout: m.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", m.addr)
	if err != nil {
		return err
	}
	_ = conn.SetDeadline(time.Now().Add(m.timeout))

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	err = m.exchange(conn, auth, to, msg)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (m *Mailer) exchange(conn net.Conn, auth smtp.Auth, to string, msg []byte) error {
	host := m.hostname()
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() { _ = c.Close() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(auth); err != nil {
				return fmt.Errorf("auth: %w", err)
			}
		}
	}
	if err := c.Mail(m.fromAddress()); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}
	return c.Quit()
}

func (m *Mailer) hostname() string {
	if host, _, err := net.SplitHostPort(m.addr); err == nil {
		return host
	}
	return m.addr
}

// fromAddress strips the display name: MAIL FROM wants a bare address.
func (m *Mailer) fromAddress() string {
	if a, err := mail.ParseAddress(m.from); err == nil {
		return a.Address
	}
	return m.from
}

// xoauth2Auth implements the SASL XOAUTH2 exchange Gmail expects.
type xoauth2Auth struct {
	user  string
	token string
}

func (a xoauth2Auth) Start(_ *smtp.ServerInfo) (string, []byte, error) {
	resp := []byte("user=" + a.user + "\x01auth=Bearer " + a.token + "\x01\x01")
	return "XOAUTH2", resp, nil
}

func (a xoauth2Auth) Next(_ []byte, more bool) ([]byte, error) {
	if more {
		// Server pushed an error payload; respond with an empty line so it
		// finishes the exchange and returns the actual SMTP error.
		return []byte(""), nil
	}
	return nil, nil
}

// EmailChannel wraps the mailer with the delivery retry policy. A not-ready
// transport fails fast; transport errors retry with exponential backoff and
// the final failure degrades to false, never an error.
type EmailChannel struct {
	sender   notification.EmailSender
	attempts int
	backoff  retry.Backoff
	sleep    retry.SleepFunc
	log      *zap.Logger
}

func NewEmailChannel(sender notification.EmailSender, attempts int, backoffBase time.Duration, log *zap.Logger) *EmailChannel {
	if attempts <= 0 {
		attempts = 3
	}
	if backoffBase <= 0 {
		backoffBase = time.Second
	}
	return &EmailChannel{
		sender:   sender,
		attempts: attempts,
		backoff:  retry.ExpoJitter{Base: backoffBase},
		sleep:    retry.StdSleep,
		log:      log.With(zap.String("component", "notify.email")),
	}
}

// WithSleep replaces the inter-attempt wait, for tests.
func (c *EmailChannel) WithSleep(sleep retry.SleepFunc) *EmailChannel {
	cp := *c
	cp.sleep = sleep
	return &cp
}

func (c *EmailChannel) Send(ctx context.Context, ev *notification.Event) bool {
	if !c.sender.Ready() {
		c.log.Error("email transport not ready, skipping send", zap.String("to", ev.UserEmail))
		return false
	}

	subject, html := RenderPriceMatchEmail(ev)

	err := retry.Do(ctx, func() error {
		return c.sender.Send(ctx, ev.UserEmail, subject, html)
	}, retry.Policy{
		Name:     "email_send",
		Attempts: c.attempts,
		Backoff:  c.backoff,
		Sleep:    c.sleep,
		OnAttempt: func(i int, err error) {
			c.log.Warn("email send failed",
				zap.Int("attempt", i+1),
				zap.Int("attempts", c.attempts),
				zap.Error(err),
			)
		},
		OnExhaust: func(err error) {
			c.log.Error("email send exhausted retries", zap.String("to", ev.UserEmail), zap.Error(err))
		},
	})
	return err == nil
}
