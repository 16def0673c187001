package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

// Sender delivers built messages.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// MailConfig addresses the run report.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// Mailer emails a report after every run, success or failure.
type Mailer struct {
	from   string
	to     []string
	sender Sender
}

// NewMailer dials cfg.Host over SMTP, upgrading to TLS when offered.
func NewMailer(cfg MailConfig) (*Mailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create mail client: %w", err)
	}
	return NewMailerWithSender(cfg.From, cfg.To, client), nil
}

// NewMailerWithSender builds a Mailer over an existing sender.
func NewMailerWithSender(from string, to []string, sender Sender) *Mailer {
	return &Mailer{from: from, to: to, sender: sender}
}

func (m *Mailer) Notify(ctx context.Context, o Outcome) error {
	msg, err := m.message(o)
	if err != nil {
		return err
	}
	if err := m.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send run report: %w", err)
	}
	return nil
}

func (m *Mailer) message(o Outcome) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(m.to...); err != nil {
		return nil, fmt.Errorf("mail to: %w", err)
	}

	status := "Success"
	if o.Failed() {
		status = "Error"
	}
	msg.Subject(fmt.Sprintf("%s - %s", o.JobName, status))
	msg.SetBodyString(mail.TypeTextPlain, body(o))
	return msg, nil
}

func body(o Outcome) string {
	var b strings.Builder
	if o.Failed() {
		fmt.Fprintf(&b, "%s encountered an error.\n\n", o.JobName)
		if o.Entity != "" {
			fmt.Fprintf(&b, "Failed entity: %s\n", o.Entity)
		}
		fmt.Fprintf(&b, "Error: %v\n", o.Err)
		if chain := causes(o.Err); len(chain) > 0 {
			b.WriteString("Caused by:\n")
			for _, c := range chain {
				fmt.Fprintf(&b, "  %s\n", c)
			}
		}
		b.WriteString("\n")
	} else {
		fmt.Fprintf(&b, "%s completed successfully.\n\n", o.JobName)
	}
	fmt.Fprintf(&b, "Run: %s\nTrigger: %s\nElapsed: %s\n", o.RunID, o.Trigger, o.Elapsed.Round(time.Second))

	if len(o.Records) > 0 {
		entities := make([]string, 0, len(o.Records))
		for e := range o.Records {
			entities = append(entities, e)
		}
		sort.Strings(entities)
		b.WriteString("\nRecords loaded:\n")
		for _, e := range entities {
			fmt.Fprintf(&b, "  %s: %d\n", e, o.Records[e])
		}
	}
	return b.String()
}

// causes lists the messages of every error wrapped by err, depth first,
// skipping any message identical to the one before it.
func causes(err error) []string {
	var out []string
	var walk func(error)
	walk = func(e error) {
		var inner []error
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			inner = u.Unwrap()
		default:
			if next := errors.Unwrap(e); next != nil {
				inner = []error{next}
			}
		}
		for _, next := range inner {
			if next == nil {
				continue
			}
			msg := next.Error()
			if len(out) == 0 || out[len(out)-1] != msg {
				out = append(out, msg)
			}
			walk(next)
		}
	}
	if err != nil {
		walk(err)
	}
	return out
}
