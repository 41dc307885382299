package testinfra

import (
	"time"

	"docflow/domain"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	. "github.com/onsi/gomega"
)

// roles, departments and users of the syllabus pipeline fixture
const (
	RoleFaculty types.ID = 10
	RoleChair   types.ID = 20
	RoleDean    types.ID = 30

	Department      types.ID = 100
	OtherDepartment types.ID = 200

	FacultyOwner   types.ID = 1000
	FacultyPrimary types.ID = 1999
	ChairEarliest  types.ID = 2001
	ChairPrimary   types.ID = 2002
	DeanEarliest   types.ID = 3001
	DeanLater      types.ID = 3002
	Outsider       types.ID = 9000
)

// SyllabusPipeline is a three stages pipeline:
//
//	Draft(1) --submit--> Department Review(2) --forward/escalate--> Dean Approval(3) --publish--> (end)
//
// plus returns, rejections and a few malformed actions to exercise validations.
type SyllabusPipeline struct {
	Template      domain.WorkflowTemplate
	OtherTemplate domain.WorkflowTemplate

	Draft, Review, Dean, Foreign domain.WorkflowStage

	Submit           domain.WorkflowStageAction // Draft -> Review, generic "Submit for Review"
	ReturnToAuthor   domain.WorkflowStageAction // Review -> Draft, generic
	Forward          domain.WorkflowStageAction // Review -> Dean, approve
	Escalate         domain.WorkflowStageAction // Review -> Dean, escalate
	RejectAtReview   domain.WorkflowStageAction // Review -> end, reject
	Publish          domain.WorkflowStageAction // Dean -> end, approve
	RejectToDraft    domain.WorkflowStageAction // Dean -> Draft, reject
	SendBack         domain.WorkflowStageAction // Dean -> Review, generic, backward
	EscalateBackward domain.WorkflowStageAction // Dean -> Review, escalate, backward
	CloseSilently    domain.WorkflowStageAction // Dean -> end, escalate (illegal terminal)
	CrossTemplate    domain.WorkflowStageAction // Dean -> Foreign stage of another template
	Ghost            domain.WorkflowStageAction // Dean -> unknown stage
}

func idRef(id types.ID) *types.ID {
	return &id
}

func BuildSyllabusPipeline() *SyllabusPipeline {
	p := &SyllabusPipeline{}
	created := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	p.Template = domain.WorkflowTemplate{ID: 1, Name: "Syllabus approval", DocumentType: domain.DocumentTypeSyllabus, IsActive: true, CreateTime: created}
	p.OtherTemplate = domain.WorkflowTemplate{ID: 2, Name: "Lesson plan approval", DocumentType: domain.DocumentTypeLessonPlan, IsActive: true, CreateTime: created}

	p.Draft = domain.WorkflowStage{ID: 11, TemplateID: 1, Name: "Draft", StageOrder: 1, AssignedRoleID: RoleFaculty, IsActive: true}
	p.Review = domain.WorkflowStage{ID: 12, TemplateID: 1, Name: "Department Review", StageOrder: 2, AssignedRoleID: RoleChair, TimeoutDays: 5, IsActive: true}
	p.Dean = domain.WorkflowStage{ID: 13, TemplateID: 1, Name: "Dean Approval", StageOrder: 3, RequiredRoles: domain.RoleIDs{RoleDean}, IsActive: true}
	p.Foreign = domain.WorkflowStage{ID: 21, TemplateID: 2, Name: "Foreign", StageOrder: 2, AssignedRoleID: RoleChair, IsActive: true}

	p.Submit = domain.WorkflowStageAction{ID: 101, StageID: 11, ActionName: "Submit for Review", ActionType: "submit", NextStageID: idRef(12)}
	p.ReturnToAuthor = domain.WorkflowStageAction{ID: 102, StageID: 12, ActionName: "Return to Author", ActionType: "return", NextStageID: idRef(11)}
	p.Forward = domain.WorkflowStageAction{ID: 103, StageID: 12, ActionName: "Forward to Dean", ActionType: "Approve", NextStageID: idRef(13)}
	p.Escalate = domain.WorkflowStageAction{ID: 104, StageID: 12, ActionName: "Escalate", ActionType: "escalate", NextStageID: idRef(13)}
	p.RejectAtReview = domain.WorkflowStageAction{ID: 105, StageID: 12, ActionName: "Reject", ActionType: "reject"}
	p.Publish = domain.WorkflowStageAction{ID: 106, StageID: 13, ActionName: "Publish", ActionType: "APPROVE"}
	p.RejectToDraft = domain.WorkflowStageAction{ID: 107, StageID: 13, ActionName: "Reject", ActionType: "Reject", NextStageID: idRef(11)}
	p.SendBack = domain.WorkflowStageAction{ID: 108, StageID: 13, ActionName: "Send back", ActionType: "rework", NextStageID: idRef(12)}
	p.EscalateBackward = domain.WorkflowStageAction{ID: 109, StageID: 13, ActionName: "Escalate to chair", ActionType: "escalate", NextStageID: idRef(12)}
	p.CloseSilently = domain.WorkflowStageAction{ID: 110, StageID: 13, ActionName: "Close", ActionType: "escalate"}
	p.CrossTemplate = domain.WorkflowStageAction{ID: 111, StageID: 13, ActionName: "Move elsewhere", ActionType: "move", NextStageID: idRef(21)}
	p.Ghost = domain.WorkflowStageAction{ID: 112, StageID: 13, ActionName: "Ghost", ActionType: "move", NextStageID: idRef(999)}
	return p
}

func (p *SyllabusPipeline) Mappings() []domain.RoleDepartmentUserMapping {
	base := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	return []domain.RoleDepartmentUserMapping{
		{ID: 501, RoleID: RoleFaculty, DepartmentID: Department, UserID: FacultyOwner, IsActive: true, CreateTime: base},
		{ID: 502, RoleID: RoleFaculty, DepartmentID: Department, UserID: FacultyPrimary, IsPrimary: true, IsActive: true, CreateTime: base.Add(time.Hour)},
		{ID: 503, RoleID: RoleChair, DepartmentID: Department, UserID: ChairEarliest, IsActive: true, CreateTime: base},
		{ID: 504, RoleID: RoleChair, DepartmentID: Department, UserID: ChairPrimary, IsPrimary: true, IsActive: true, CreateTime: base.Add(time.Hour)},
		{ID: 505, RoleID: RoleDean, DepartmentID: Department, UserID: DeanLater, IsActive: true, CreateTime: base.Add(2 * time.Hour)},
		{ID: 506, RoleID: RoleDean, DepartmentID: Department, UserID: DeanEarliest, IsActive: true, CreateTime: base.Add(time.Hour)},
		{ID: 507, RoleID: RoleChair, DepartmentID: OtherDepartment, UserID: Outsider, IsPrimary: true, IsActive: true, CreateTime: base},
	}
}

func (p *SyllabusPipeline) Actions() []domain.WorkflowStageAction {
	return []domain.WorkflowStageAction{p.Submit, p.ReturnToAuthor, p.Forward, p.Escalate, p.RejectAtReview, p.Publish,
		p.RejectToDraft, p.SendBack, p.EscalateBackward, p.CloseSilently, p.CrossTemplate, p.Ghost}
}

// MigrateWorkflowTables create tables of the workflow template graph and workflow instances
func MigrateWorkflowTables(db *gorm.DB) {
	Expect(db.AutoMigrate(domain.WorkflowTables()...).Error).To(BeNil())
}

// Persist saves the whole pipeline with its role mappings
func (p *SyllabusPipeline) Persist(db *gorm.DB) {
	Expect(db.Create(&p.Template).Error).To(BeNil())
	Expect(db.Create(&p.OtherTemplate).Error).To(BeNil())
	for _, s := range []domain.WorkflowStage{p.Draft, p.Review, p.Dean, p.Foreign} {
		stage := s
		Expect(db.Create(&stage).Error).To(BeNil())
	}
	for _, a := range p.Actions() {
		action := a
		Expect(db.Create(&action).Error).To(BeNil())
	}
	for _, m := range p.Mappings() {
		mapping := m
		Expect(db.Create(&mapping).Error).To(BeNil())
	}
}
