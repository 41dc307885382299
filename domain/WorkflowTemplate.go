package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fundwit/go-commons/types"
)

type DocumentType string

const (
	DocumentTypeSyllabus   DocumentType = "Syllabus"
	DocumentTypeLessonPlan DocumentType = "LessonPlan"
	DocumentTypeSession    DocumentType = "Session"
)

func (t DocumentType) Valid() bool {
	switch t {
	case DocumentTypeSyllabus, DocumentTypeLessonPlan, DocumentTypeSession:
		return true
	}
	return false
}

// WorkflowTemplate is the reusable definition of an ordered stage pipeline for a document type.
type WorkflowTemplate struct {
	ID           types.ID     `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Name         string       `json:"name"`
	DocumentType DocumentType `json:"documentType" gorm:"index"`
	IsActive     bool         `json:"isActive"`

	CreateTime time.Time `json:"createTime"`
}

// WorkflowStage is a node of the template graph. StageOrder is 1-based, the stage of order 1 is
// the originating stage where documents return to their author.
type WorkflowStage struct {
	ID             types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	TemplateID     types.ID `json:"templateId" gorm:"index" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Name           string   `json:"name"`
	StageOrder     int      `json:"stageOrder"`
	AssignedRoleID types.ID `json:"assignedRoleId" sql:"type:BIGINT UNSIGNED"`
	RequiredRoles  RoleIDs  `json:"requiredRoles" sql:"type:TEXT"`

	AutoApprove bool `json:"autoApprove"`
	TimeoutDays int  `json:"timeoutDays"`
	IsActive    bool `json:"isActive"`
}

const OriginatingStageOrder = 1

func (s *WorkflowStage) IsOriginating() bool {
	return s.StageOrder == OriginatingStageOrder
}

// Roles returns the assigned role and the required roles of stage, without duplication.
func (s *WorkflowStage) Roles() []types.ID {
	var roles []types.ID
	seen := map[types.ID]bool{}
	if s.AssignedRoleID != 0 {
		roles = append(roles, s.AssignedRoleID)
		seen[s.AssignedRoleID] = true
	}
	for _, r := range s.RequiredRoles {
		if r == 0 || seen[r] {
			continue
		}
		seen[r] = true
		roles = append(roles, r)
	}
	return roles
}

// WorkflowStageAction is a directed edge of the stage graph, a nil NextStageID marks a terminal action.
type WorkflowStageAction struct {
	ID          types.ID  `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	StageID     types.ID  `json:"stageId" gorm:"index" sql:"type:BIGINT UNSIGNED NOT NULL"`
	ActionName  string    `json:"actionName"`
	ActionType  string    `json:"actionType"`
	NextStageID *types.ID `json:"nextStageId" sql:"type:BIGINT UNSIGNED"`
}

func (a *WorkflowStageAction) IsTerminal() bool {
	return a.NextStageID == nil
}

type RoleIDs []types.ID

func (t RoleIDs) Value() (driver.Value, error) {
	if t == nil {
		t = RoleIDs{}
	}
	jsonBytes, err := json.Marshal(&t)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (c *RoleIDs) Scan(v interface{}) error {
	if v == nil {
		*c = nil
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
	if jsonString == "" {
		*c = nil
		return nil
	}
	return json.Unmarshal([]byte(jsonString), c)
}
