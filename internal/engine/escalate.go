package engine

import (
	"context"
	"fmt"

	"github.com/Alpha-Mintamir/reddit-telegram-bot/internal/metrics"
)

// Escalate routes an operational alert to the supervisor: the roster
// member with the supervisor role, falling back to an exact match on the
// configured name. When no supervisor with a linked handle resolves, the
// escalation is dropped and logged. That drop is the one failure mode
// with no further fallback, so it is also counted for operators.
func (e *Engine) Escalate(ctx context.Context, subject, details string) bool {
	delivered := e.escalate(ctx, subject, details)
	metrics.RecordEscalation(ctx, subject, delivered)
	return delivered
}

func (e *Engine) escalate(ctx context.Context, subject, details string) bool {
	sup, err := e.store.Supervisor(ctx, e.supervisorName)
	if err != nil {
		e.log.Error("escalation dropped, roster read failed", "subject", subject, "error", err)
		return false
	}
	if sup == nil || !validRecipient(sup.RecipientID) {
		e.log.Error("escalation dropped, no supervisor handle", "subject", subject, "details", details)
		return false
	}
	msg := fmt.Sprintf("ESCALATION: %s\n\n%s", subject, details)
	if !e.sender.SendSafe(ctx, sup.RecipientID, msg) {
		e.log.Error("escalation send failed", "subject", subject, "recipient", sup.RecipientID)
		return false
	}
	return true
}

// EmergencyEscalate fires after repeated consecutive tick failures. It
// alerts the supervisor and, when configured, the ops channel. Distinct
// from per-item escalation so operators can tell a sick process from a
// sick task.
func (e *Engine) EmergencyEscalate(ctx context.Context, failures int, lastErr error) {
	metrics.RecordEmergencyEscalation(ctx)
	details := fmt.Sprintf("%d consecutive tick failures. Last error:\n%v", failures, lastErr)
	e.Escalate(ctx, "Bot needs attention", details)
	if err := e.alert.Notify(ctx, "replybot emergency: "+details); err != nil {
		e.log.Error("ops alert failed", "error", err)
	}
}
