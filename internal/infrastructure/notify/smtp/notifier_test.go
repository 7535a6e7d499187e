package smtp

import (
	"bytes"
	"context"
	"errors"
	"net/textproto"
	"strings"
	"testing"
	"time"

	mail "github.com/go-mail/mail/v2"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
	"github.com/kirillkom/reviewer-invitations/internal/infrastructure/resilience"
)

type senderFake struct {
	errs []error
	sent []*mail.Message
}

func (s *senderFake) DialAndSend(m ...*mail.Message) error {
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return err
		}
	}
	s.sent = append(s.sent, m...)
	return nil
}

func fixture() (domain.Manuscript, domain.PotentialReviewer, domain.ReviewInvitation) {
	due := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	ms := domain.Manuscript{ID: "ms-1", CustomID: "7832738", Title: "Graphene <b>sheets</b>", Journal: "J. Mat"}
	rv := domain.PotentialReviewer{ID: "rv-1", Name: "Ada Lovelace", Email: "ada@uni.edu"}
	inv := domain.ReviewInvitation{ID: "inv-1", DueDate: &due, InvitationExpirationDate: &due, InvitationRound: 2}
	return ms, rv, inv
}

func TestNotifyInvitationRendersMessage(t *testing.T) {
	sender := &senderFake{}
	n := NewWithSender(sender, "Editorial Office <no-reply@journal.org>", nil)
	ms, rv, inv := fixture()

	if err := n.NotifyInvitation(context.Background(), ms, rv, inv); err != nil {
		t.Fatalf("NotifyInvitation() error = %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sender.sent))
	}
	m := sender.sent[0]
	if got := m.GetHeader("To"); len(got) != 1 || !strings.Contains(got[0], "ada@uni.edu") {
		t.Fatalf("unexpected To header %v", got)
	}
	if got := m.GetHeader("Subject"); len(got) != 1 || got[0] != "Invitation to review: Graphene <b>sheets</b>" {
		t.Fatalf("unexpected Subject header %v", got)
	}
}

func TestInvitationTemplateEscapesManuscriptFields(t *testing.T) {
	ms, rv, inv := fixture()
	var body bytes.Buffer
	if err := invitationTemplate.Execute(&body, mailData(ms, rv, inv)); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	out := body.String()
	if strings.Contains(out, "<b>sheets</b>") {
		t.Fatalf("title must be escaped in the body: %s", out)
	}
	for _, want := range []string{"7832738", "15 June 2024", "invitation round 2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in body: %s", want, out)
		}
	}
}

func TestNotifyRejectsReviewerWithoutEmail(t *testing.T) {
	n := NewWithSender(&senderFake{}, "x@y.z", nil)
	ms, rv, inv := fixture()
	rv.Email = ""

	err := n.NotifyReminder(context.Background(), ms, rv, inv)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNotifyRetriesTransientSMTPReply(t *testing.T) {
	sender := &senderFake{errs: []error{&textproto.Error{Code: 421, Msg: "try again later"}, nil}}
	exec := resilience.NewExecutor(resilience.Policy{
		Attempts:       2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}, nil)
	n := NewWithSender(sender, "x@y.z", exec)
	ms, rv, inv := fixture()

	if err := n.NotifyReminder(context.Background(), ms, rv, inv); err != nil {
		t.Fatalf("NotifyReminder() error = %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected message after retry, got %d", len(sender.sent))
	}
}

func TestNotifyDoesNotRetryPermanentReply(t *testing.T) {
	permanent := &textproto.Error{Code: 550, Msg: "mailbox unavailable"}
	sender := &senderFake{errs: []error{permanent, nil}}
	exec := resilience.NewExecutor(resilience.Policy{Attempts: 3, InitialBackoff: time.Millisecond}, nil)
	n := NewWithSender(sender, "x@y.z", exec)
	ms, rv, inv := fixture()

	err := n.NotifyInvitation(context.Background(), ms, rv, inv)
	var protoErr *textproto.Error
	if !errors.As(err, &protoErr) || protoErr.Code != 550 {
		t.Fatalf("expected 550 error, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("permanent failure must not be temporary")
	}
}
