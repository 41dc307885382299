package flow

import (
	"context"
	"strconv"
	"strings"
	"time"

	"docflow/bizerror"
	"docflow/common"
	"docflow/domain"
	"docflow/domain/state"
	"docflow/event"
	"docflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
)

var CreateEventFunc = event.CreateEvent

// ProcessAction takes an action on a document. Every write (feedback, workflow, document status and history)
// is committed together or not at all, notifications are sent after the commit.
func (e *Engine) ProcessAction(ctx context.Context, req *domain.ActionRequest, actor *session.Identity) (*ActionOutcome, error) {
	if actor == nil {
		return nil, bizerror.ErrUnauthenticated
	}
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProcessAction")
	defer span.Finish()
	span.SetTag("documentId", req.DocumentID.String())
	span.SetTag("documentType", string(req.DocumentType))
	span.SetTag("actionId", req.ActionID.String())

	var outcome *ActionOutcome
	var summary *transitionSummary
	var ev *event.EventRecord
	err := e.locks.within(documentKey(req.DocumentID, req.DocumentType), func() error {
		return e.db(ctx).Transaction(func(tx *gorm.DB) error {
			ac, err := e.validateAction(tx, req, actor.ID)
			if err != nil {
				return err
			}
			outcome, summary, ev, err = e.execute(tx, ac, req, actor)
			return err
		})
	})
	if err != nil {
		span.SetTag("error", true)
		logrus.WithFields(logrus.Fields{"documentId": req.DocumentID, "documentType": req.DocumentType,
			"actionId": req.ActionID, "actor": actor.ID, "code": bizerror.CodeOf(err)}).Info("action refused: ", err)
		return nil, err
	}

	outcome.Notifications = e.dispatcher.Dispatch(ctx, summary)
	if event.InvokeHandlersFunc != nil && ev != nil {
		event.InvokeHandlersFunc(ev)
	}
	return outcome, nil
}

// transitionSummary is what the dispatcher needs to know about a committed transition.
type transitionSummary struct {
	Kind         state.ActionKind
	ActionName   string
	DocumentID   types.ID
	DocumentType domain.DocumentType
	Actor        types.ID
	Initiator    types.ID
	Assignee     *types.ID
	NextStage    *domain.WorkflowStage
	Comments     string
}

func (e *Engine) execute(tx *gorm.DB, ac *actionContext, req *domain.ActionRequest, actor *session.Identity) (
	*ActionOutcome, *transitionSummary, *event.EventRecord, error) {

	now := time.Now()
	wf, action, doc, check := ac.workflow, ac.action, ac.document, ac.transition
	kind := state.ParseActionKind(action.ActionType)
	derived := state.Derive(state.Move{
		Kind:               kind,
		ActionName:         action.ActionName,
		Terminal:           action.IsTerminal(),
		ToOriginatingStage: check.Next != nil && check.Next.IsOriginating(),
	})
	if !derived.Legal {
		// ruled out by the transition validation already
		return nil, nil, nil, bizerror.NewWorkflowError(bizerror.CodeInvalidTerminalAction, "illegal terminal action "+action.ActionName)
	}

	comments := strings.TrimSpace(req.Comments)
	var feedback *domain.DocumentFeedback
	if comments != "" {
		feedbackType := strings.TrimSpace(req.FeedbackType)
		if feedbackType == "" {
			feedbackType = domain.DefaultFeedbackType
		}
		feedback = &domain.DocumentFeedback{ID: common.NextId(e.idWorker), DocumentWorkflowID: wf.ID, StageID: check.Current.ID,
			DocumentID: doc.DocumentID, DocumentType: doc.DocumentType, FeedbackType: feedbackType,
			Comments: comments, ProvidedBy: actor.ID, CreateTime: now}
		if err := tx.Create(feedback).Error; err != nil {
			return nil, nil, nil, err
		}
	}

	var assignee *types.ID
	if derived.Advance {
		var err error
		if assignee, err = e.resolver.Resolve(tx, check.Next, doc); err != nil {
			return nil, nil, nil, err
		}
	}

	nextStageId := wf.CurrentStageID
	if derived.Advance {
		nextStageId = action.NextStageID
	}
	updated := *wf
	updated.CurrentStageID = nextStageId
	updated.Status = derived.WorkflowStatus
	updated.AssignedTo = assignee
	updated.ModifyTime = now
	if derived.WorkflowStatus == domain.WorkflowStatusCompleted {
		updated.CompletedDate = &now
	}
	if err := saveWorkflow(tx, wf.Version, &updated); err != nil {
		return nil, nil, nil, err
	}

	found, err := e.documents.UpdateStatus(tx, doc.DocumentID, doc.DocumentType, derived.DocumentStatus)
	if err != nil {
		return nil, nil, nil, err
	}
	if !found {
		return nil, nil, nil, bizerror.NewWorkflowError(bizerror.CodeDocumentNotFound,
			"document "+doc.DocumentID.String()+" of type "+string(doc.DocumentType)+" not found")
	}

	history := domain.WorkflowStageHistory{ID: common.NextId(e.idWorker), DocumentWorkflowID: wf.ID, StageID: check.Current.ID,
		ActionTaken: action.ActionName, ProcessedBy: actor.ID, AssignedTo: assignee, ProcessedDate: now, Comments: comments}
	if err := tx.Create(&history).Error; err != nil {
		return nil, nil, nil, err
	}

	ev := e.audit(tx, wf, &updated, doc, check, &history, feedback, derived.DocumentStatus, actor, now)

	logrus.WithFields(logrus.Fields{
		"workflowId": wf.ID, "documentId": doc.DocumentID, "documentType": doc.DocumentType, "action": action.ActionName,
		"actionKind": kind.String(), "fromStage": check.Current.ID, "toStage": idString(nextStageId),
		"workflowStatus": derived.WorkflowStatus, "documentStatus": derived.DocumentStatus, "assignee": idString(assignee),
	}).Info("action processed")

	outcome := &ActionOutcome{
		WorkflowID:     wf.ID,
		DocumentStatus: derived.DocumentStatus,
		WorkflowStatus: derived.WorkflowStatus,
		CurrentStageID: nextStageId,
		AssignedTo:     assignee,
		HistoryID:      history.ID,
		Warnings:       check.Warnings,
	}
	if outcome.Warnings == nil {
		outcome.Warnings = []string{}
	}
	if feedback != nil {
		outcome.FeedbackID = &feedback.ID
	}
	summary := &transitionSummary{Kind: kind, ActionName: action.ActionName, DocumentID: doc.DocumentID, DocumentType: doc.DocumentType,
		Actor: actor.ID, Initiator: wf.InitiatedBy, Assignee: assignee, NextStage: check.Next, Comments: comments}
	return outcome, summary, ev, nil
}

// saveWorkflow writes the workflow if nobody changed it since it was read at expectedVersion.
func saveWorkflow(tx *gorm.DB, expectedVersion int64, wf *domain.DocumentWorkflow) error {
	q := tx.Model(&domain.DocumentWorkflow{}).Where("id = ? AND version = ?", wf.ID, expectedVersion).
		Updates(map[string]interface{}{
			"current_stage_id": wf.CurrentStageID,
			"status":           wf.Status,
			"assigned_to":      wf.AssignedTo,
			"completed_date":   wf.CompletedDate,
			"modify_time":      wf.ModifyTime,
			"version":          expectedVersion + 1,
		})
	if q.Error != nil {
		return q.Error
	}
	if q.RowsAffected != 1 {
		return bizerror.NewWorkflowError(bizerror.CodeConcurrentModification,
			"workflow "+wf.ID.String()+" was modified concurrently, expected version "+strconv.FormatInt(expectedVersion, 10))
	}
	wf.Version = expectedVersion + 1
	return nil
}

// audit appends the audit entry of a transition, a failure is logged and never fails the transition.
func (e *Engine) audit(tx *gorm.DB, before, after *domain.DocumentWorkflow, doc *domain.DocumentRef, check *TransitionCheck,
	history *domain.WorkflowStageHistory, feedback *domain.DocumentFeedback, docStatus domain.DocumentStatus,
	actor *session.Identity, now time.Time) *event.EventRecord {

	props := []event.UpdatedProperty{
		{PropertyName: "Status", PropertyDesc: "Workflow status",
			OldValue: string(before.Status), OldValueDesc: string(before.Status), NewValue: string(after.Status), NewValueDesc: string(after.Status)},
		{PropertyName: "DocumentStatus", PropertyDesc: "Document status",
			OldValue: string(doc.Status), OldValueDesc: string(doc.Status), NewValue: string(docStatus), NewValueDesc: string(docStatus)},
		{PropertyName: "ActionTaken", PropertyDesc: "Action", NewValue: history.ActionTaken, NewValueDesc: history.ActionTaken},
	}
	nextStageName := ""
	if after.CurrentStageID != nil && check.Next != nil && *after.CurrentStageID == check.Next.ID {
		nextStageName = check.Next.Name
	} else if after.CurrentStageID != nil {
		nextStageName = check.Current.Name
	}
	relations := []event.UpdatedRelation{
		{PropertyName: "CurrentStage", PropertyDesc: "Current stage", TargetType: event.TargetTypeStage, TargetTypeDesc: "Stage",
			OldTargetId: idString(before.CurrentStageID), OldTargetDesc: check.Current.Name,
			NewTargetId: idString(after.CurrentStageID), NewTargetDesc: nextStageName},
		{PropertyName: "AssignedTo", PropertyDesc: "Assignee", TargetType: event.TargetTypeUser, TargetTypeDesc: "User",
			OldTargetId: idString(before.AssignedTo), NewTargetId: idString(after.AssignedTo)},
		{PropertyName: "History", PropertyDesc: "Stage history", TargetType: event.TargetTypeStageHistory, TargetTypeDesc: "Stage history",
			NewTargetId: history.ID.String(), NewTargetDesc: history.ActionTaken},
	}
	if feedback != nil {
		relations = append(relations, event.UpdatedRelation{PropertyName: "Feedback", PropertyDesc: "Feedback",
			TargetType: event.TargetTypeFeedback, TargetTypeDesc: "Feedback", NewTargetId: feedback.ID.String(), NewTargetDesc: feedback.FeedbackType})
	}

	var ev *event.EventRecord
	common.BestEffort("audit", logrus.Fields{"workflowId": before.ID, "historyId": history.ID}, func() error {
		var err error
		ev, err = CreateEventFunc(event.SourceTypeDocumentWorkflow, before.ID, string(doc.DocumentType)+" "+doc.DocumentID.String(),
			doc.DocumentID, string(doc.DocumentType), event.EventCategoryActionProcessed, props, relations, actor, now, tx)
		return err
	})
	return ev
}

func idString(id *types.ID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
