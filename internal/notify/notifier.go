package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ams-platform/attendance-api/pkg/config"
	"github.com/ams-platform/attendance-api/pkg/jobs"
)

type intent struct {
	To      string
	Subject string
	Body    string
}

// Notifier is the fire-and-forget boundary between the request path and
// outbound mail. Callers enqueue an intent and return immediately; queue
// workers deliver with retries and delivery failure never reaches a caller.
type Notifier struct {
	queue  *jobs.Queue
	sender Sender
	logger *zap.Logger
	onDrop func()
}

// Option customises a Notifier.
type Option func(*Notifier)

// WithDropCallback registers a hook invoked when a notification cannot be
// enqueued, used to feed the failure counter.
func WithDropCallback(fn func()) Option {
	return func(n *Notifier) {
		n.onDrop = fn
	}
}

// NewNotifier builds a notifier draining into the given sender.
func NewNotifier(sender Sender, cfg config.NotifyConfig, logger *zap.Logger, opts ...Option) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Notifier{sender: sender, logger: logger}
	for _, opt := range opts {
		opt(n)
	}

	n.queue = jobs.New("notifications", n.deliver, jobs.Config{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return n
}

// Start launches the delivery workers.
func (n *Notifier) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop drains the workers.
func (n *Notifier) Stop() {
	n.queue.Stop()
}

// OTPCode queues the login code email.
func (n *Notifier) OTPCode(to, name, code string, ttl time.Duration) {
	n.enqueue("otp_code", to, otpSubject, otpBody(name, code, ttl))
}

// SessionOpened queues the attendance-open email for one student.
func (n *Notifier) SessionOpened(to, name, subjectName string, window time.Duration) {
	n.enqueue("session_opened", to, sessionSubject, sessionBody(name, subjectName, window))
}

func (n *Notifier) enqueue(kind, to, subject, body string) {
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    kind,
		Payload: intent{To: to, Subject: subject, Body: body},
	}
	if err := n.queue.Enqueue(job); err != nil {
		// Queue not started or shutting down. Best-effort contract: log and move on.
		n.logger.Warn("notification dropped", zap.String("type", kind), zap.Error(err))
		if n.onDrop != nil {
			n.onDrop()
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(intent)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}
	return n.sender.Send(ctx, msg.To, msg.Subject, msg.Body)
}
