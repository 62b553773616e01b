package notify

import (
	"context"
	"time"

	"mission_rewards/internal/model"
)

const EventRunChanged = "run_changed"

type Notifier interface {
	RunChanged(ctx context.Context, run *model.MissionRun)
}

type Message struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

func runMessage(run *model.MissionRun) Message {
	payload := map[string]any{
		"run_id":     run.ID.String(),
		"mission_id": run.MissionID.String(),
		"status":     string(run.Status),
		"version":    run.Version,
		"expires_at": run.ExpiresAt.Format(time.RFC3339),
	}
	if run.RejectReason != nil {
		payload["reject_reason"] = *run.RejectReason
	}
	return Message{Type: EventRunChanged, Payload: payload}
}

// Multi fans a transition out to several notifiers in order.
type Multi []Notifier

func (m Multi) RunChanged(ctx context.Context, run *model.MissionRun) {
	for _, n := range m {
		if n != nil {
			n.RunChanged(ctx, run)
		}
	}
}
