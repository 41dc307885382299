package flow

import (
	"context"

	"docflow/bizerror"
	"docflow/common"
	"docflow/domain"
	"docflow/notify"
	"docflow/persistence"
	"docflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	otgorm "github.com/smacker/opentracing-gorm"
	"github.com/sony/sonyflake"
)

// DocumentStore gives access to the status of documents. Implementations must use the given db,
// which is the transaction of the caller when invoked by the engine.
type DocumentStore interface {
	LoadDocument(db *gorm.DB, documentId types.ID, documentType domain.DocumentType) (*domain.DocumentRef, error)
	UpdateStatus(db *gorm.DB, documentId types.ID, documentType domain.DocumentType, status domain.DocumentStatus) (bool, error)
}

type EngineTraits interface {
	ProcessAction(ctx context.Context, req *domain.ActionRequest, actor *session.Identity) (*ActionOutcome, error)
	ValidateAction(ctx context.Context, req *domain.ActionRequest, actor *session.Identity) (*ValidationResult, error)
	CanUserPerformAction(ctx context.Context, userId, documentId types.ID, documentType domain.DocumentType, actionId types.ID) (bool, error)

	StartWorkflow(ctx context.Context, c *domain.WorkflowStarting, actor *session.Identity) (*domain.DocumentWorkflow, error)
	DetailDocumentWorkflow(ctx context.Context, documentId types.ID, documentType domain.DocumentType) (*domain.DocumentWorkflowDetail, error)
	QueryStageHistory(ctx context.Context, documentId types.ID, documentType domain.DocumentType) ([]domain.WorkflowStageHistory, error)
	AvailableActions(ctx context.Context, documentId types.ID, documentType domain.DocumentType, actor types.ID) ([]domain.WorkflowStageAction, error)
}

// Engine moves documents through the stages of their workflow template.
type Engine struct {
	dataSource *persistence.DataSourceManager
	documents  DocumentStore
	resolver   *AssigneeResolver
	dispatcher *Dispatcher
	locks      *documentLocks
	idWorker   *sonyflake.Sonyflake
}

func NewEngine(ds *persistence.DataSourceManager, documents DocumentStore, notifier notify.Notifier) *Engine {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Engine{
		dataSource: ds,
		documents:  documents,
		resolver:   NewAssigneeResolver(),
		dispatcher: NewDispatcher(notifier),
		locks:      newDocumentLocks(),
		idWorker:   common.NewIdWorker(),
	}
}

// ActionOutcome describes a committed transition.
type ActionOutcome struct {
	WorkflowID     types.ID              `json:"workflowId"`
	DocumentStatus domain.DocumentStatus `json:"documentStatus"`
	WorkflowStatus domain.WorkflowStatus `json:"workflowStatus"`
	CurrentStageID *types.ID             `json:"currentStageId"`
	AssignedTo     *types.ID             `json:"assignedTo"`
	HistoryID      types.ID              `json:"historyId"`
	FeedbackID     *types.ID             `json:"feedbackId"`
	Warnings       []string              `json:"warnings"`

	Notifications []common.SideEffectResult `json:"-"`
}

// ValidationResult is the answer of a dry run. Code is empty when valid.
type ValidationResult struct {
	Valid    bool          `json:"valid"`
	Code     bizerror.Code `json:"code,omitempty"`
	Message  string        `json:"message,omitempty"`
	Warnings []string      `json:"warnings"`
}

func (e *Engine) db(ctx context.Context) *gorm.DB {
	return otgorm.SetSpanToGorm(ctx, e.dataSource.GormDB())
}

func documentKey(documentId types.ID, documentType domain.DocumentType) string {
	return string(documentType) + "/" + documentId.String()
}
