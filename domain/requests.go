package domain

import (
	"github.com/fundwit/go-commons/types"
)

// ActionRequest asks to take an action of the current stage on a document.
type ActionRequest struct {
	DocumentID   types.ID     `json:"documentId"   validate:"required"`
	DocumentType DocumentType `json:"documentType" validate:"required"`
	ActionID     types.ID     `json:"actionId"     validate:"required"`
	Comments     string       `json:"comments"`
	FeedbackType string       `json:"feedbackType"`
}

type WorkflowStarting struct {
	DocumentID   types.ID     `json:"documentId"   validate:"required"`
	DocumentType DocumentType `json:"documentType" validate:"required"`
	TemplateID   types.ID     `json:"templateId"`
}

type DocumentWorkflowDetail struct {
	DocumentWorkflow

	Template     WorkflowTemplate `json:"template"`
	CurrentStage *WorkflowStage   `json:"currentStage"`
}
