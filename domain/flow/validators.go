package flow

import (
	"context"
	"errors"
	"fmt"

	"docflow/bizerror"
	"docflow/domain"
	"docflow/domain/state"
	"docflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
)

func stageNotFound(id types.ID) error {
	return bizerror.NewWorkflowError(bizerror.CodeStageNotFound, "stage "+id.String()+" not found")
}

func nextStageNotFound(id types.ID) error {
	return bizerror.NewWorkflowError(bizerror.CodeNextStageNotFound, "next stage "+id.String()+" not found")
}

func workflowNotFound(documentId types.ID, documentType domain.DocumentType) error {
	return bizerror.NewWorkflowError(bizerror.CodeWorkflowNotFound,
		"no active workflow for "+string(documentType)+" "+documentId.String())
}

func actionNotFound(id types.ID) error {
	return bizerror.NewWorkflowError(bizerror.CodeActionNotFound, "action "+id.String()+" not found")
}

// TransitionCheck is the result of a structurally valid transition. Warnings do not fail it.
type TransitionCheck struct {
	Current  *domain.WorkflowStage
	Next     *domain.WorkflowStage
	Warnings []string
}

func validateTransition(db *gorm.DB, currentStageId types.ID, nextStageId *types.ID, actionType string) (*TransitionCheck, error) {
	current, err := findStage(db, currentStageId)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, stageNotFound(currentStageId)
	}

	kind := state.ParseActionKind(actionType)
	if nextStageId == nil {
		if !state.IsLegalTerminal(kind) {
			return nil, bizerror.NewWorkflowError(bizerror.CodeInvalidTerminalAction,
				fmt.Sprintf("action type '%s' can not end a workflow, only approve or reject can", actionType))
		}
		return &TransitionCheck{Current: current}, nil
	}

	next, err := findStage(db, *nextStageId)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, nextStageNotFound(*nextStageId)
	}
	if next.TemplateID != current.TemplateID {
		return nil, bizerror.NewWorkflowError(bizerror.CodeTemplateMismatch,
			fmt.Sprintf("stage %s belongs to template %s, stage %s belongs to template %s",
				current.ID, current.TemplateID, next.ID, next.TemplateID))
	}

	check := &TransitionCheck{Current: current, Next: next}
	if next.StageOrder <= current.StageOrder && kind != state.Escalate {
		warning := fmt.Sprintf("backward routing from stage '%s' (order %d) to stage '%s' (order %d)",
			current.Name, current.StageOrder, next.Name, next.StageOrder)
		logrus.WithFields(logrus.Fields{"currentStageId": current.ID, "nextStageId": next.ID, "actionType": actionType}).Warn(warning)
		check.Warnings = append(check.Warnings, warning)
	}
	return check, nil
}

// ValidateTransition checks that moving from the current stage to the next stage is structurally legal.
// It knows nothing about the actor.
func (e *Engine) ValidateTransition(ctx context.Context, currentStageId types.ID, nextStageId *types.ID, actionType string) (*TransitionCheck, error) {
	return validateTransition(e.db(ctx), currentStageId, nextStageId, actionType)
}

func validateDocumentState(db *gorm.DB, documentId types.ID, documentType domain.DocumentType) (*domain.DocumentWorkflow, error) {
	wf, err := findActiveWorkflow(db, documentId, documentType)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, workflowNotFound(documentId, documentType)
	}
	switch wf.Status {
	case domain.WorkflowStatusCompleted:
		return nil, bizerror.NewWorkflowError(bizerror.CodeWorkflowCompleted, "workflow "+wf.ID.String()+" is completed")
	case domain.WorkflowStatusCancelled:
		return nil, bizerror.NewWorkflowError(bizerror.CodeWorkflowCancelled, "workflow "+wf.ID.String()+" is cancelled")
	}
	return wf, nil
}

// ValidateDocumentState returns the live workflow of a document, or fails when it is absent or terminal.
func (e *Engine) ValidateDocumentState(ctx context.Context, documentId types.ID, documentType domain.DocumentType) (*domain.DocumentWorkflow, error) {
	return validateDocumentState(e.db(ctx), documentId, documentType)
}

// authorize tells whether the actor holds, in the department of the document, a role of the stage the action
// belongs to, and that this stage is the current stage of a live workflow.
func authorize(db *gorm.DB, actorId types.ID, wf *domain.DocumentWorkflow, action *domain.WorkflowStageAction, doc *domain.DocumentRef) (bool, error) {
	if wf == nil || action == nil || doc == nil || wf.Status.IsTerminal() {
		return false, nil
	}
	if wf.CurrentStageID == nil || *wf.CurrentStageID != action.StageID {
		return false, nil
	}
	stage, err := findStage(db, action.StageID)
	if err != nil || stage == nil {
		return false, err
	}
	return hasMapping(db, actorId, stage.Roles(), doc.DepartmentID)
}

func (e *Engine) canActorPerformAction(db *gorm.DB, actorId, documentId types.ID, documentType domain.DocumentType, actionId types.ID) (bool, error) {
	wf, err := findActiveWorkflow(db, documentId, documentType)
	if err != nil || wf == nil {
		return false, err
	}
	action, err := findAction(db, actionId)
	if err != nil || action == nil {
		return false, err
	}
	doc, err := e.documents.LoadDocument(db, documentId, documentType)
	if bizerror.IsBusinessError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return authorize(db, actorId, wf, action, doc)
}

// CanActorPerformAction is the authorization probe: false whenever the actor may not take the action now.
// An error is only returned for infrastructure failures.
func (e *Engine) CanActorPerformAction(ctx context.Context, actorId, documentId types.ID, documentType domain.DocumentType, actionId types.ID) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CanActorPerformAction")
	defer span.Finish()
	return e.canActorPerformAction(e.db(ctx), actorId, documentId, documentType, actionId)
}

func (e *Engine) CanUserPerformAction(ctx context.Context, userId, documentId types.ID, documentType domain.DocumentType, actionId types.ID) (bool, error) {
	return e.CanActorPerformAction(ctx, userId, documentId, documentType, actionId)
}

// validateAction runs every check of an action in order: liveness, action existence, stage match,
// authorization and transition structure.
func (e *Engine) validateAction(db *gorm.DB, req *domain.ActionRequest, actorId types.ID) (*actionContext, error) {
	wf, err := validateDocumentState(db, req.DocumentID, req.DocumentType)
	if err != nil {
		return nil, err
	}
	action, err := findAction(db, req.ActionID)
	if err != nil {
		return nil, err
	}
	if action == nil {
		return nil, actionNotFound(req.ActionID)
	}
	if wf.CurrentStageID == nil || *wf.CurrentStageID != action.StageID {
		return nil, bizerror.NewWorkflowError(bizerror.CodeStageMismatch,
			"action '"+action.ActionName+"' does not belong to the current stage of workflow "+wf.ID.String())
	}
	doc, err := e.documents.LoadDocument(db, req.DocumentID, req.DocumentType)
	if err != nil {
		return nil, err
	}
	authorized, err := authorize(db, actorId, wf, action, doc)
	if err != nil {
		return nil, err
	}
	if !authorized {
		return nil, bizerror.NewWorkflowError(bizerror.CodeUnauthorizedAction,
			"user "+actorId.String()+" can not perform action '"+action.ActionName+"' on "+string(doc.DocumentType)+" "+doc.DocumentID.String())
	}
	check, err := validateTransition(db, action.StageID, action.NextStageID, action.ActionType)
	if err != nil {
		return nil, err
	}
	return &actionContext{workflow: wf, action: action, document: doc, transition: check}, nil
}

type actionContext struct {
	workflow   *domain.DocumentWorkflow
	action     *domain.WorkflowStageAction
	document   *domain.DocumentRef
	transition *TransitionCheck
}

// ValidateAction is a dry run of ProcessAction. Business rule failures are reported in the result,
// the error is reserved to infrastructure failures.
func (e *Engine) ValidateAction(ctx context.Context, req *domain.ActionRequest, actor *session.Identity) (*ValidationResult, error) {
	if actor == nil {
		return nil, bizerror.ErrUnauthenticated
	}
	span, ctx := opentracing.StartSpanFromContext(ctx, "ValidateAction")
	defer span.Finish()

	ac, err := e.validateAction(e.db(ctx), req, actor.ID)
	if err != nil {
		var we *bizerror.WorkflowError
		if errors.As(err, &we) {
			return &ValidationResult{Valid: false, Code: we.Code, Message: we.Message, Warnings: []string{}}, nil
		}
		return nil, err
	}
	warnings := ac.transition.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return &ValidationResult{Valid: true, Warnings: warnings}, nil
}
