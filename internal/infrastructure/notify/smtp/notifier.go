package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/textproto"
	"time"

	mail "github.com/go-mail/mail/v2"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
	"github.com/kirillkom/reviewer-invitations/internal/infrastructure/resilience"
)

// Sender is satisfied by *mail.Dialer.
type Sender interface {
	DialAndSend(m ...*mail.Message) error
}

type Config struct {
	Host          string
	Port          int
	User          string
	Password      string
	From          string
	SkipTLSVerify bool
}

// Notifier e-mails reviewers about invitations and reminders.
type Notifier struct {
	sender   Sender
	from     string
	executor *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) (*Notifier, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("smtp not configured (SMTP_HOST/SMTP_FROM)")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	d := mail.NewDialer(cfg.Host, port, cfg.User, cfg.Password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.SkipTLSVerify,
	}
	d.Timeout = 10 * time.Second
	return NewWithSender(d, cfg.From, executor), nil
}

func NewWithSender(sender Sender, from string, executor *resilience.Executor) *Notifier {
	return &Notifier{sender: sender, from: from, executor: executor}
}

func (n *Notifier) NotifyInvitation(ctx context.Context, ms domain.Manuscript, reviewer domain.PotentialReviewer, inv domain.ReviewInvitation) error {
	subject := fmt.Sprintf("Invitation to review: %s", ms.Title)
	return n.send(ctx, reviewer, subject, invitationTemplate, mailData(ms, reviewer, inv))
}

func (n *Notifier) NotifyReminder(ctx context.Context, ms domain.Manuscript, reviewer domain.PotentialReviewer, inv domain.ReviewInvitation) error {
	subject := fmt.Sprintf("Reminder: review of %s", ms.Title)
	return n.send(ctx, reviewer, subject, reminderTemplate, mailData(ms, reviewer, inv))
}

func (n *Notifier) send(ctx context.Context, reviewer domain.PotentialReviewer, subject string, tpl *template.Template, data templateData) error {
	if reviewer.Email == "" {
		return domain.NewError(domain.ErrInvalidInput, "send mail", "reviewer %s has no e-mail address", reviewer.ID)
	}
	var body bytes.Buffer
	if err := tpl.Execute(&body, data); err != nil {
		return fmt.Errorf("render %s: %w", tpl.Name(), err)
	}

	m := mail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetAddressHeader("To", reviewer.Email, reviewer.Name)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body.String())

	call := func(context.Context) error {
		if err := n.sender.DialAndSend(m); err != nil {
			if isTransient(err) {
				return domain.WrapError(domain.ErrTemporary, "smtp send", err)
			}
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	}
	if n.executor == nil {
		return call(ctx)
	}
	err := n.executor.Run(ctx, "smtp.send", resilience.RetryTemporary, call)
	return resilience.AsTemporary("smtp send", err, resilience.RetryTemporary)
}

// isTransient treats network failures and 4xx SMTP replies as retryable.
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return protoErr.Code >= 400 && protoErr.Code < 500
	}
	return false
}

type templateData struct {
	ReviewerName string
	Title        string
	Journal      string
	Reference    string
	DueDate      string
	Expires      string
	Round        int
	Reminders    int
}

func mailData(ms domain.Manuscript, reviewer domain.PotentialReviewer, inv domain.ReviewInvitation) templateData {
	ref := ms.CustomID
	if ref == "" {
		ref = ms.ID
	}
	return templateData{
		ReviewerName: reviewer.Name,
		Title:        ms.Title,
		Journal:      ms.Journal,
		Reference:    ref,
		DueDate:      formatDate(inv.DueDate),
		Expires:      formatDate(inv.InvitationExpirationDate),
		Round:        inv.InvitationRound,
		Reminders:    inv.ReminderCount,
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2 January 2006")
}

var invitationTemplate = template.Must(template.New("invitation").Parse(`<p>Dear {{.ReviewerName}},</p>
<p>You are invited to review the manuscript <strong>{{.Title}}</strong> ({{.Reference}}){{if .Journal}} submitted to {{.Journal}}{{end}}.</p>
{{if .Expires}}<p>Please respond by {{.Expires}}.</p>{{end}}
{{if .DueDate}}<p>If you accept, the report is due on {{.DueDate}}.</p>{{end}}
{{if gt .Round 1}}<p>This is invitation round {{.Round}}.</p>{{end}}`))

var reminderTemplate = template.Must(template.New("reminder").Parse(`<p>Dear {{.ReviewerName}},</p>
<p>This is a reminder about the review of <strong>{{.Title}}</strong> ({{.Reference}}).</p>
{{if .DueDate}}<p>The report is due on {{.DueDate}}.</p>{{else if .Expires}}<p>The invitation expires on {{.Expires}}.</p>{{end}}`))
