package flow

import (
	"context"

	"docflow/domain"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

// AssigneeStrategy is one policy of the assignee resolution. A strategy which is not concerned by the
// target stage returns decided=false to let the next strategy try.
type AssigneeStrategy interface {
	Name() string
	Resolve(db *gorm.DB, target *domain.WorkflowStage, doc *domain.DocumentRef) (assignee *types.ID, decided bool, err error)
}

// TerminalStrategy leaves terminal transitions unassigned.
type TerminalStrategy struct{}

func (TerminalStrategy) Name() string { return "terminal" }

func (TerminalStrategy) Resolve(db *gorm.DB, target *domain.WorkflowStage, doc *domain.DocumentRef) (*types.ID, bool, error) {
	if target == nil {
		return nil, true, nil
	}
	return nil, false, nil
}

// OriginatorReturnStrategy hands documents entering the originating stage back to their owner,
// whatever the role mappings say.
type OriginatorReturnStrategy struct{}

func (OriginatorReturnStrategy) Name() string { return "originator-return" }

func (OriginatorReturnStrategy) Resolve(db *gorm.DB, target *domain.WorkflowStage, doc *domain.DocumentRef) (*types.ID, bool, error) {
	if !target.IsOriginating() {
		return nil, false, nil
	}
	owner := doc.OwnerID
	return &owner, true, nil
}

// MappingStrategy picks the earliest registered user mapped to a role of the stage in the department of
// the document, restricted to primary mappings when PrimaryOnly is set.
type MappingStrategy struct {
	PrimaryOnly bool
}

func (s MappingStrategy) Name() string {
	if s.PrimaryOnly {
		return "primary-mapping"
	}
	return "earliest-mapping"
}

func (s MappingStrategy) Resolve(db *gorm.DB, target *domain.WorkflowStage, doc *domain.DocumentRef) (*types.ID, bool, error) {
	mappings, err := findMappedUsers(db, target.Roles(), doc.DepartmentID, s.PrimaryOnly)
	if err != nil {
		return nil, false, err
	}
	if len(mappings) == 0 {
		return nil, false, nil
	}
	user := mappings[0].UserID
	return &user, true, nil
}

// AssigneeResolver runs its strategies in order, the first decision wins.
type AssigneeResolver struct {
	Strategies []AssigneeStrategy
}

func NewAssigneeResolver() *AssigneeResolver {
	return &AssigneeResolver{Strategies: []AssigneeStrategy{
		TerminalStrategy{},
		OriginatorReturnStrategy{},
		MappingStrategy{PrimaryOnly: true},
		MappingStrategy{PrimaryOnly: false},
	}}
}

// Resolve returns the next assignee, nil when nobody could be found.
func (r *AssigneeResolver) Resolve(db *gorm.DB, target *domain.WorkflowStage, doc *domain.DocumentRef) (*types.ID, error) {
	for _, strategy := range r.Strategies {
		assignee, decided, err := strategy.Resolve(db, target, doc)
		if err != nil {
			return nil, err
		}
		if decided {
			return assignee, nil
		}
	}
	fields := logrus.Fields{"documentId": doc.DocumentID, "documentType": doc.DocumentType, "departmentId": doc.DepartmentID}
	if target != nil {
		fields["stageId"] = target.ID
		fields["stageName"] = target.Name
	}
	logrus.WithFields(fields).Warn("no user mapped to stage, document left unassigned")
	return nil, nil
}

// ResolveNextAssignee tells who would be responsible for a document entering a stage, nil next stage means terminal.
func (e *Engine) ResolveNextAssignee(ctx context.Context, nextStageId *types.ID, documentId types.ID, documentType domain.DocumentType) (*types.ID, error) {
	db := e.db(ctx)
	doc, err := e.documents.LoadDocument(db, documentId, documentType)
	if err != nil {
		return nil, err
	}
	var target *domain.WorkflowStage
	if nextStageId != nil {
		if target, err = findStage(db, *nextStageId); err != nil {
			return nil, err
		}
		if target == nil {
			return nil, nextStageNotFound(*nextStageId)
		}
	}
	return e.resolver.Resolve(db, target, doc)
}
