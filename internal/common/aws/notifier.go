package aws

import (
	"context"
	"fmt"
	"time"

	"ocap-agent/internal/common/config"
	"ocap-agent/internal/common/errors"
	"ocap-agent/internal/common/logger"
)

const EventWorkflowCompleted = "workflow.completed"

// WorkflowCompletedEvent is published after a successful OCAP workflow.
type WorkflowCompletedEvent struct {
	WorkflowRunID  string    `json:"workflow_run_id"`
	ThreadID       string    `json:"thread_id"`
	UserID         *int64    `json:"user_id,omitempty"`
	Classification string    `json:"classification"`
	DurationMs     int64     `json:"duration_ms"`
	CompletedAt    time.Time `json:"completed_at"`
}

// Notifier sends OCAP notifications. A nil Notifier, or one built from a
// disabled config, is a no-op.
type Notifier struct {
	cfg    config.NotificationConfig
	sns    *SNSClient
	ses    *SESClient
	logger logger.Logger
}

func NewNotifier(cfg config.NotificationConfig, snsClient *SNSClient, sesClient *SESClient, log logger.Logger) *Notifier {
	return &Notifier{cfg: cfg, sns: snsClient, ses: sesClient, logger: log}
}

// NewNotifierFromConfig builds AWS clients for the configured region.
func NewNotifierFromConfig(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*Notifier, error) {
	if !cfg.Enabled {
		return NewNotifier(cfg, nil, nil, log), nil
	}
	var (
		snsClient *SNSClient
		sesClient *SESClient
		err       error
	)
	if cfg.WorkflowTopic != "" {
		if snsClient, err = NewSNSClient(ctx, cfg.Region); err != nil {
			return nil, err
		}
	}
	if cfg.SenderEmail != "" {
		if sesClient, err = NewSESClient(ctx, cfg.Region); err != nil {
			return nil, err
		}
	}
	return NewNotifier(cfg, snsClient, sesClient, log), nil
}

func (n *Notifier) WorkflowCompleted(ctx context.Context, event WorkflowCompletedEvent) error {
	if n == nil || !n.cfg.Enabled || n.sns == nil {
		return nil
	}
	msgID, err := n.sns.PublishEvent(ctx, n.cfg.WorkflowTopic, EventWorkflowCompleted, event)
	if err != nil {
		return errors.NewNotificationSendFailedError("sns", err)
	}
	n.logger.Debug("workflow event published", map[string]interface{}{
		"workflow_run_id": event.WorkflowRunID,
		"message_id":      msgID,
	})
	return nil
}

func (n *Notifier) Welcome(ctx context.Context, email, username string) error {
	if n == nil || !n.cfg.Enabled || n.ses == nil {
		return nil
	}
	body := fmt.Sprintf("Hello %s,\n\nYour OCAP Agent account is ready. Sign in with your username or email.\n", username)
	if _, err := n.ses.SendText(ctx, n.cfg.SenderEmail, email, n.cfg.WelcomeSubject, body); err != nil {
		return errors.NewNotificationSendFailedError("ses", err)
	}
	return nil
}
