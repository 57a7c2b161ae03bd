package worker

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/placement-backend/internal/config"
	"github.com/stemsi/placement-backend/internal/model"
)

// Notifier delivers a completed test result to the test taker.
type Notifier interface {
	Notify(ctx context.Context, user *model.User, ev model.ResultEvent) error
}

// NewNotifier picks the notifier named by cfg.Notifier.
func NewNotifier(cfg *config.Config, log zerolog.Logger) (Notifier, error) {
	switch strings.ToLower(cfg.Notifier) {
	case "", "log":
		return NewLogNotifier(log), nil
	case "smtp":
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("notifier smtp requires SMTP_HOST")
		}
		return NewSMTPNotifier(cfg), nil
	default:
		return nil, fmt.Errorf("unknown notifier %q", cfg.Notifier)
	}
}

// LogNotifier writes results to the log instead of sending them.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "log_notifier").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, user *model.User, ev model.ResultEvent) error {
	n.log.Info().
		Int("test_id", ev.TestID).
		Str("email", user.Email).
		Str("exam_type", string(ev.ExamType)).
		Int("score", ev.Score).
		Str("level", ev.Level).
		Msg("Result notification")
	return nil
}

// SMTPNotifier mails a plain-text result summary.
type SMTPNotifier struct {
	addr string
	from string
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPNotifier(cfg *config.Config) *SMTPNotifier {
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPHost)
	}
	return &SMTPNotifier{
		addr: fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		from: cfg.SMTPFrom,
		auth: auth,
		send: smtp.SendMail,
	}
}

func (n *SMTPNotifier) Notify(_ context.Context, user *model.User, ev model.ResultEvent) error {
	msg := resultMail(n.from, user, ev)
	if err := n.send(n.addr, n.auth, n.from, []string{user.Email}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", user.Email, err)
	}
	return nil
}

func resultMail(from string, user *model.User, ev model.ResultEvent) string {
	exam := "English Placement Test"
	scale := fmt.Sprintf("%d / %d", ev.Score, ev.TotalQuestions)
	if ev.ExamType == model.ExamTypeSAT {
		exam = "SAT Practice Test"
		scale = fmt.Sprintf("%d (200-800 scale, %d of %d correct)", ev.Score, ev.RawScore, ev.TotalQuestions)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", user.Email)
	fmt.Fprintf(&b, "Subject: Your %s result\r\n", exam)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&b, "Hello %s,\r\n\r\n", user.Name)
	fmt.Fprintf(&b, "Thank you for taking the %s.\r\n\r\n", exam)
	fmt.Fprintf(&b, "Score: %s\r\n", scale)
	fmt.Fprintf(&b, "Level: %s\r\n", ev.Level)
	fmt.Fprintf(&b, "Completed: %s\r\n", ev.FinishedAt.Format("2006-01-02 15:04 MST"))
	return b.String()
}
