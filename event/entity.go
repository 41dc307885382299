package event

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fundwit/go-commons/types"
)

const (
	SourceTypeDocumentWorkflow = "DOCUMENT_WORKFLOW"

	EventCategoryWorkflowStarted = "WORKFLOW_STARTED"
	EventCategoryActionProcessed = "ACTION_PROCESSED"

	TargetTypeStageHistory = "WORKFLOW_STAGE_HISTORY"
	TargetTypeFeedback     = "DOCUMENT_FEEDBACK"
	TargetTypeStage        = "WORKFLOW_STAGE"
	TargetTypeUser         = "USER"
)

type EventCategory string

type Event struct {
	SourceId   types.ID `json:"sourceId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	SourceType string   `json:"sourceType"`
	SourceDesc string   `json:"sourceDesc"`

	DocumentId   types.ID `json:"documentId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	DocumentType string   `json:"documentType"`

	CreatorId   types.ID `json:"creatorId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	CreatorName string   `json:"creatorName"`

	EventCategory     EventCategory     `json:"eventCategory"` // WORKFLOW_STARTED, ACTION_PROCESSED
	UpdatedProperties UpdatedProperties `json:"updatedProperties" sql:"type:TEXT"`
	UpdatedRelations  UpdatedRelations  `json:"updatedRelations" sql:"type:TEXT"`
}

// EventRecord is an audit log entry.
type EventRecord struct {
	ID types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Event

	Timestamp time.Time `json:"timestamp"`
	Synced    bool      `json:"synced"`
}

func (r *EventRecord) TableName() string {
	return "events"
}

type UpdatedProperty struct {
	PropertyName string `json:"propertyName"`
	PropertyDesc string `json:"propertyDesc"`

	OldValue     string `json:"oldValue"`
	OldValueDesc string `json:"oldValueDesc"`
	NewValue     string `json:"newValue"`
	NewValueDesc string `json:"newValueDesc"`
}

type UpdatedProperties []UpdatedProperty

type UpdatedRelation struct {
	PropertyName string `json:"propertyName"`
	PropertyDesc string `json:"propertyDesc"`

	TargetType     string `json:"targetType"`
	TargetTypeDesc string `json:"targetTypeDesc"`

	OldTargetId   string `json:"oldTargetId"`
	OldTargetDesc string `json:"oldTargetDesc"`
	NewTargetId   string `json:"newTargetId"`
	NewTargetDesc string `json:"newTargetDesc"`
}

type UpdatedRelations []UpdatedRelation

// Property find the updated property by name
func (r *EventRecord) Property(name string) (UpdatedProperty, bool) {
	for _, p := range r.UpdatedProperties {
		if p.PropertyName == name {
			return p, true
		}
	}
	return UpdatedProperty{}, false
}

func (t UpdatedProperties) Value() (driver.Value, error) {
	jsonBytes, err := json.Marshal(&t)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (c *UpdatedProperties) Scan(v interface{}) error {
	return scanJSON(v, c)
}

func (t UpdatedRelations) Value() (driver.Value, error) {
	jsonBytes, err := json.Marshal(&t)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (c *UpdatedRelations) Scan(v interface{}) error {
	return scanJSON(v, c)
}

func scanJSON(v interface{}, dest interface{}) error {
	jsonString, ok := v.(string)
	if !ok {
		jsonByte, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("type is neither string nor []byte: %T %v", v, v)
		}
		jsonString = string(jsonByte)
	}
	return json.Unmarshal([]byte(jsonString), dest)
}
