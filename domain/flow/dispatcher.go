package flow

import (
	"context"

	"docflow/common"
	"docflow/domain/state"
	"docflow/notify"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

// Dispatcher tells users about committed transitions. Every notification is attempted independently and
// failures are only logged.
type Dispatcher struct {
	notifier notify.Notifier
}

func NewDispatcher(notifier notify.Notifier) *Dispatcher {
	return &Dispatcher{notifier: notifier}
}

// Dispatch sends the notifications a transition calls for and reports the result of each of them.
func (d *Dispatcher) Dispatch(ctx context.Context, t *transitionSummary) []common.SideEffectResult {
	if t == nil {
		return nil
	}
	var results []common.SideEffectResult
	send := func(kind notify.Kind, target types.ID, payload notify.Payload) {
		n := &notify.Notification{Kind: kind, DocumentID: t.DocumentID, DocumentType: t.DocumentType,
			Actor: t.Actor, Target: target, Payload: payload}
		fields := logrus.Fields{"kind": kind, "documentId": t.DocumentID, "documentType": t.DocumentType, "target": target}
		results = append(results, common.BestEffort(string(kind), fields, func() error {
			return d.notifier.Notify(ctx, n)
		}))
	}

	send(notify.KindActionCompleted, t.Actor, notify.Payload{notify.PayloadAction: t.ActionName})

	stageName := ""
	if t.NextStage != nil {
		stageName = t.NextStage.Name
	}
	if t.Assignee != nil {
		send(notify.KindDocumentAssigned, *t.Assignee, notify.Payload{notify.PayloadAction: t.ActionName, notify.PayloadStage: stageName})
	}
	if t.Kind == state.Reject {
		send(notify.KindDocumentRejected, t.Initiator, notify.Payload{notify.PayloadAction: t.ActionName, notify.PayloadReason: t.Comments})
	}
	if t.Kind == state.Approve && t.NextStage == nil {
		send(notify.KindWorkflowCompleted, t.Initiator, notify.Payload{notify.PayloadAction: t.ActionName})
	}
	if t.Kind == state.Escalate && t.Assignee != nil {
		send(notify.KindDocumentEscalated, *t.Assignee, notify.Payload{notify.PayloadAction: t.ActionName, notify.PayloadStage: stageName})
	}
	if t.Comments != "" {
		send(notify.KindFeedbackAdded, t.Initiator, notify.Payload{notify.PayloadAction: t.ActionName, notify.PayloadComments: t.Comments})
	}
	return results
}
