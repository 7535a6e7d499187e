package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
	"github.com/kirillkom/reviewer-invitations/internal/infrastructure/resilience"
)

const queueGroup = "invitation-workers"

// EventBus publishes invitation lifecycle events as JSON on a subject prefix:
// an event of type "invitation.sent" goes to "<prefix>.invitation.sent".
type EventBus struct {
	conn     *nats.Conn
	prefix   string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
	Executor       *resilience.Executor
	Logger         *slog.Logger
}

func Connect(url, prefix string, opts Options) (*EventBus, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 2 * time.Second
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = 2 * time.Second
	}
	if opts.MaxReconnects <= 0 {
		opts.MaxReconnects = 60
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("reviewer-invitations"),
		nats.Timeout(opts.ConnectTimeout),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", errString(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &EventBus{
		conn:     conn,
		prefix:   prefix,
		executor: opts.Executor,
		logger:   logger,
	}, nil
}

func (b *EventBus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

func (b *EventBus) subject(eventType domain.InvitationEventType) string {
	return b.prefix + "." + string(eventType)
}

func (b *EventBus) PublishInvitationEvent(ctx context.Context, event domain.InvitationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal invitation event: %w", err)
	}
	subject := b.subject(event.Type)
	call := func(context.Context) error {
		if err := b.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return nil
	}

	if b.executor != nil {
		err = b.executor.Run(ctx, "nats.publish", classifyNATSError, call)
	} else {
		err = call(ctx)
	}
	return resilience.AsTemporary("publish invitation event", err, classifyNATSError)
}

// SubscribeInvitationEvents consumes every event under the prefix in a queue
// group, so several workers share the stream. It blocks until ctx is done and
// then drains the subscription.
func (b *EventBus) SubscribeInvitationEvents(ctx context.Context, handler func(context.Context, domain.InvitationEvent) error) error {
	sub, err := b.conn.QueueSubscribe(b.prefix+".>", queueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		b.handleMessage(ctx, msg, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (b *EventBus) handleMessage(ctx context.Context, msg *nats.Msg, handler func(context.Context, domain.InvitationEvent) error) {
	var event domain.InvitationEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		b.logger.Error("invitation_event_decode_failed", "subject", msg.Subject, "error", err.Error())
		return
	}
	if err := handler(ctx, event); err != nil {
		b.logger.Error("invitation_event_handler_failed",
			"subject", msg.Subject,
			"type", string(event.Type),
			"invitation_id", event.InvitationID,
			"error", err.Error(),
		)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
