package domain

import (
	"time"

	"github.com/fundwit/go-commons/types"
)

type DocumentStatus string

const (
	DocumentStatusDraft       DocumentStatus = "Draft"
	DocumentStatusInProgress  DocumentStatus = "In Progress"
	DocumentStatusUnderReview DocumentStatus = "Under Review"
	DocumentStatusPublished   DocumentStatus = "Published"
	DocumentStatusRejected    DocumentStatus = "Rejected"
)

type WorkflowStatus string

const (
	WorkflowStatusInProgress WorkflowStatus = "In Progress"
	WorkflowStatusCompleted  WorkflowStatus = "Completed"
	WorkflowStatusCancelled  WorkflowStatus = "Cancelled"
)

func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowStatusCompleted || s == WorkflowStatusCancelled
}

// DocumentWorkflow is the live progress record of one document through a template.
// At most one instance per document is active, Version guards concurrent writers.
type DocumentWorkflow struct {
	ID             types.ID       `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	DocumentID     types.ID       `json:"documentId" gorm:"index:idx_document_workflow_document" sql:"type:BIGINT UNSIGNED NOT NULL"`
	DocumentType   DocumentType   `json:"documentType" gorm:"index:idx_document_workflow_document"`
	TemplateID     types.ID       `json:"templateId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	CurrentStageID *types.ID      `json:"currentStageId" sql:"type:BIGINT UNSIGNED"`
	Status         WorkflowStatus `json:"status"`
	AssignedTo     *types.ID      `json:"assignedTo" sql:"type:BIGINT UNSIGNED"`
	InitiatedBy    types.ID       `json:"initiatedBy" sql:"type:BIGINT UNSIGNED NOT NULL"`

	InitiatedDate time.Time  `json:"initiatedDate"`
	CompletedDate *time.Time `json:"completedDate"`
	ModifyTime    time.Time  `json:"modifyTime"`

	IsActive bool  `json:"isActive"`
	Version  int64 `json:"version"`
}

// WorkflowStageHistory is one processed action, rows are never updated nor deleted.
type WorkflowStageHistory struct {
	ID                 types.ID  `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	DocumentWorkflowID types.ID  `json:"documentWorkflowId" gorm:"index" sql:"type:BIGINT UNSIGNED NOT NULL"`
	StageID            types.ID  `json:"stageId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	ActionTaken        string    `json:"actionTaken"`
	ProcessedBy        types.ID  `json:"processedBy" sql:"type:BIGINT UNSIGNED NOT NULL"`
	AssignedTo         *types.ID `json:"assignedTo" sql:"type:BIGINT UNSIGNED"`
	ProcessedDate      time.Time `json:"processedDate"`
	Comments           string    `json:"comments" sql:"type:TEXT"`
}

func (WorkflowStageHistory) TableName() string {
	return "workflow_stage_history"
}

type DocumentFeedback struct {
	ID                 types.ID     `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	DocumentWorkflowID types.ID     `json:"documentWorkflowId" gorm:"index" sql:"type:BIGINT UNSIGNED NOT NULL"`
	StageID            types.ID     `json:"stageId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	DocumentID         types.ID     `json:"documentId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	DocumentType       DocumentType `json:"documentType"`
	FeedbackType       string       `json:"feedbackType"`
	Comments           string       `json:"comments" sql:"type:TEXT"`
	ProvidedBy         types.ID     `json:"providedBy" sql:"type:BIGINT UNSIGNED NOT NULL"`
	IsAddressed        bool         `json:"isAddressed"`
	CreateTime         time.Time    `json:"createTime"`
}

func (DocumentFeedback) TableName() string {
	return "document_feedback"
}

const DefaultFeedbackType = "General"

// RoleDepartmentUserMapping associates users to a role within a department.
// Keeping a single primary user per role and department is up to the mapping maintenance.
type RoleDepartmentUserMapping struct {
	ID           types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	RoleID       types.ID `json:"roleId" gorm:"index:idx_role_department" sql:"type:BIGINT UNSIGNED NOT NULL"`
	DepartmentID types.ID `json:"departmentId" gorm:"index:idx_role_department" sql:"type:BIGINT UNSIGNED NOT NULL"`
	UserID       types.ID `json:"userId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	IsPrimary    bool     `json:"isPrimary"`
	IsActive     bool     `json:"isActive"`

	CreateTime time.Time `json:"createTime"`
}

// DocumentRef is what the engine knows about a document: who owns it and which department it belongs to.
type DocumentRef struct {
	DocumentID   types.ID       `json:"documentId"`
	DocumentType DocumentType   `json:"documentType"`
	OwnerID      types.ID       `json:"ownerId"`
	DepartmentID types.ID       `json:"departmentId"`
	Status       DocumentStatus `json:"status"`
}

// WorkflowTables lists the models of the template graph and of the workflow instances, in migration order
func WorkflowTables() []interface{} {
	return []interface{}{&WorkflowTemplate{}, &WorkflowStage{}, &WorkflowStageAction{},
		&DocumentWorkflow{}, &WorkflowStageHistory{}, &DocumentFeedback{}, &RoleDepartmentUserMapping{}}
}
