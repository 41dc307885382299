package notify

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"docflow/domain"

	"github.com/fundwit/go-commons/types"
)

type Kind string

const (
	KindActionCompleted   Kind = "ACTION_COMPLETED"
	KindDocumentAssigned  Kind = "DOCUMENT_ASSIGNED"
	KindDocumentRejected  Kind = "DOCUMENT_REJECTED"
	KindWorkflowCompleted Kind = "WORKFLOW_COMPLETED"
	KindDocumentEscalated Kind = "DOCUMENT_ESCALATED"
	KindFeedbackAdded     Kind = "FEEDBACK_ADDED"
)

// payload keys
const (
	PayloadAction   = "action"
	PayloadStage    = "stage"
	PayloadReason   = "reason"
	PayloadComments = "comments"
)

// Notification tells Target that something happened on a document because of Actor.
type Notification struct {
	Kind         Kind                `json:"kind"`
	DocumentID   types.ID            `json:"documentId"`
	DocumentType domain.DocumentType `json:"documentType"`
	Actor        types.ID            `json:"actor"`
	Target       types.ID            `json:"target" gorm:"index"`
	Payload      Payload             `json:"payload" sql:"type:TEXT"`
}

// Notifier delivers notifications, how they are rendered and transported is up to the implementation.
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

type Payload map[string]string

func (p Payload) Value() (driver.Value, error) {
	if p == nil {
		p = Payload{}
	}
	jsonBytes, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (p *Payload) Scan(v interface{}) error {
	if v == nil {
		*p = nil
		return nil
	}
	jsonString, ok := v.(string)
	if !ok {
		jsonByte, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("type is neither string nor []byte: %T %v", v, v)
		}
		jsonString = string(jsonByte)
	}
	return json.Unmarshal([]byte(jsonString), p)
}
