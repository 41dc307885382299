package flow

import (
	"context"
	"errors"
	"time"

	"docflow/bizerror"
	"docflow/common"
	"docflow/domain"
	"docflow/event"
	"docflow/notify"
	"docflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
)

const ActionTakenStart = "Start"

func errUnknownDocumentType(t domain.DocumentType) error {
	return errors.New("unknown document type '" + string(t) + "'")
}

// StartWorkflow puts a document at the originating stage of a workflow template, assigned to its owner.
// A terminated workflow of the document is deactivated, a live one makes the start fail.
func (e *Engine) StartWorkflow(ctx context.Context, c *domain.WorkflowStarting, actor *session.Identity) (*domain.DocumentWorkflow, error) {
	if !c.DocumentType.Valid() {
		return nil, &bizerror.ErrBadParam{Cause: errUnknownDocumentType(c.DocumentType)}
	}
	if actor == nil {
		return nil, bizerror.ErrUnauthenticated
	}

	span, ctx := opentracing.StartSpanFromContext(ctx, "StartWorkflow")
	defer span.Finish()

	now := time.Now()
	var wf *domain.DocumentWorkflow
	var ev *event.EventRecord
	err := e.locks.within(documentKey(c.DocumentID, c.DocumentType), func() error {
		return e.db(ctx).Transaction(func(tx *gorm.DB) error {
			doc, err := e.documents.LoadDocument(tx, c.DocumentID, c.DocumentType)
			if err != nil {
				return err
			}
			template, err := e.chooseTemplate(tx, c)
			if err != nil {
				return err
			}

			existing, err := findActiveWorkflow(tx, c.DocumentID, c.DocumentType)
			if err != nil {
				return err
			}
			if existing != nil {
				if !existing.Status.IsTerminal() {
					return bizerror.NewWorkflowError(bizerror.CodeWorkflowAlreadyActive,
						"workflow "+existing.ID.String()+" of "+string(c.DocumentType)+" "+c.DocumentID.String()+" is still in progress")
				}
				q := tx.Model(&domain.DocumentWorkflow{}).Where("id = ? AND version = ?", existing.ID, existing.Version).
					Updates(map[string]interface{}{"is_active": false, "modify_time": now, "version": existing.Version + 1})
				if q.Error != nil {
					return q.Error
				}
				if q.RowsAffected != 1 {
					return bizerror.NewWorkflowError(bizerror.CodeConcurrentModification, "workflow "+existing.ID.String()+" was modified concurrently")
				}
			}

			first, err := findOriginatingStage(tx, template.ID)
			if err != nil {
				return err
			}
			if first == nil {
				return bizerror.NewWorkflowError(bizerror.CodeStageNotFound, "template "+template.ID.String()+" has no originating stage")
			}

			owner := doc.OwnerID
			stageId := first.ID
			wf = &domain.DocumentWorkflow{ID: common.NextId(e.idWorker), DocumentID: doc.DocumentID, DocumentType: doc.DocumentType,
				TemplateID: template.ID, CurrentStageID: &stageId, Status: domain.WorkflowStatusInProgress, AssignedTo: &owner,
				InitiatedBy: actor.ID, InitiatedDate: now, ModifyTime: now, IsActive: true, Version: 1}
			if err := tx.Create(wf).Error; err != nil {
				return err
			}

			found, err := e.documents.UpdateStatus(tx, doc.DocumentID, doc.DocumentType, domain.DocumentStatusDraft)
			if err != nil {
				return err
			}
			if !found {
				return bizerror.NewWorkflowError(bizerror.CodeDocumentNotFound, "document "+doc.DocumentID.String()+" not found")
			}

			history := domain.WorkflowStageHistory{ID: common.NextId(e.idWorker), DocumentWorkflowID: wf.ID, StageID: first.ID,
				ActionTaken: ActionTakenStart, ProcessedBy: actor.ID, AssignedTo: &owner, ProcessedDate: now}
			if err := tx.Create(&history).Error; err != nil {
				return err
			}

			common.BestEffort("audit", logrus.Fields{"workflowId": wf.ID}, func() error {
				var err error
				ev, err = CreateEventFunc(event.SourceTypeDocumentWorkflow, wf.ID, string(doc.DocumentType)+" "+doc.DocumentID.String(),
					doc.DocumentID, string(doc.DocumentType), event.EventCategoryWorkflowStarted,
					[]event.UpdatedProperty{
						{PropertyName: "Status", PropertyDesc: "Workflow status", NewValue: string(wf.Status), NewValueDesc: string(wf.Status)},
						{PropertyName: "DocumentStatus", PropertyDesc: "Document status", OldValue: string(doc.Status), OldValueDesc: string(doc.Status),
							NewValue: string(domain.DocumentStatusDraft), NewValueDesc: string(domain.DocumentStatusDraft)},
					},
					[]event.UpdatedRelation{
						{PropertyName: "CurrentStage", PropertyDesc: "Current stage", TargetType: event.TargetTypeStage, TargetTypeDesc: "Stage",
							NewTargetId: first.ID.String(), NewTargetDesc: first.Name},
						{PropertyName: "AssignedTo", PropertyDesc: "Assignee", TargetType: event.TargetTypeUser, TargetTypeDesc: "User",
							NewTargetId: owner.String()},
					},
					actor, now, tx)
				return err
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	common.BestEffort(string(notify.KindDocumentAssigned), logrus.Fields{"workflowId": wf.ID}, func() error {
		return e.dispatcher.notifier.Notify(ctx, &notify.Notification{Kind: notify.KindDocumentAssigned,
			DocumentID: wf.DocumentID, DocumentType: wf.DocumentType, Actor: actor.ID, Target: *wf.AssignedTo,
			Payload: notify.Payload{notify.PayloadAction: ActionTakenStart}})
	})
	if event.InvokeHandlersFunc != nil && ev != nil {
		event.InvokeHandlersFunc(ev)
	}
	return wf, nil
}

func (e *Engine) chooseTemplate(tx *gorm.DB, c *domain.WorkflowStarting) (*domain.WorkflowTemplate, error) {
	if c.TemplateID == 0 {
		template, err := findActiveTemplate(tx, c.DocumentType)
		if err != nil {
			return nil, err
		}
		if template == nil {
			return nil, bizerror.NewWorkflowError(bizerror.CodeTemplateNotFound, "no active template for "+string(c.DocumentType))
		}
		return template, nil
	}

	template, err := findTemplate(tx, c.TemplateID)
	if err != nil {
		return nil, err
	}
	if template == nil || !template.IsActive {
		return nil, bizerror.NewWorkflowError(bizerror.CodeTemplateNotFound, "active template "+c.TemplateID.String()+" not found")
	}
	if template.DocumentType != c.DocumentType {
		return nil, bizerror.NewWorkflowError(bizerror.CodeTemplateMismatch,
			"template "+template.ID.String()+" governs "+string(template.DocumentType)+", not "+string(c.DocumentType))
	}
	return template, nil
}

func (e *Engine) DetailDocumentWorkflow(ctx context.Context, documentId types.ID, documentType domain.DocumentType) (*domain.DocumentWorkflowDetail, error) {
	db := e.db(ctx)
	wf, err := findActiveWorkflow(db, documentId, documentType)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, workflowNotFound(documentId, documentType)
	}
	template, err := findTemplate(db, wf.TemplateID)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, bizerror.NewWorkflowError(bizerror.CodeTemplateNotFound, "template "+wf.TemplateID.String()+" not found")
	}
	detail := &domain.DocumentWorkflowDetail{DocumentWorkflow: *wf, Template: *template}
	if wf.CurrentStageID != nil {
		if detail.CurrentStage, err = findStage(db, *wf.CurrentStageID); err != nil {
			return nil, err
		}
	}
	return detail, nil
}

// QueryStageHistory lists the processed actions of the active workflow of a document, oldest first.
func (e *Engine) QueryStageHistory(ctx context.Context, documentId types.ID, documentType domain.DocumentType) ([]domain.WorkflowStageHistory, error) {
	db := e.db(ctx)
	wf, err := findActiveWorkflow(db, documentId, documentType)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, workflowNotFound(documentId, documentType)
	}
	histories := []domain.WorkflowStageHistory{}
	if err := db.Where("document_workflow_id = ?", wf.ID).Order("processed_date ASC").Order("id ASC").
		Find(&histories).Error; err != nil {
		return nil, err
	}
	return histories, nil
}

// AvailableActions lists the actions of the current stage the actor may take, empty once the workflow is terminal.
func (e *Engine) AvailableActions(ctx context.Context, documentId types.ID, documentType domain.DocumentType, actor types.ID) ([]domain.WorkflowStageAction, error) {
	db := e.db(ctx)
	available := []domain.WorkflowStageAction{}
	wf, err := findActiveWorkflow(db, documentId, documentType)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, workflowNotFound(documentId, documentType)
	}
	if wf.Status.IsTerminal() || wf.CurrentStageID == nil {
		return available, nil
	}
	doc, err := e.documents.LoadDocument(db, documentId, documentType)
	if err != nil {
		return nil, err
	}
	actions, err := listStageActions(db, *wf.CurrentStageID)
	if err != nil {
		return nil, err
	}
	for idx := range actions {
		ok, err := authorize(db, actor, wf, &actions[idx], doc)
		if err != nil {
			return nil, err
		}
		if ok {
			available = append(available, actions[idx])
		}
	}
	return available, nil
}
