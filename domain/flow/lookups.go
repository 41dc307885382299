package flow

import (
	"errors"

	"docflow/domain"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

// lookups return nil without error when the record is absent

func findActiveWorkflow(db *gorm.DB, documentId types.ID, documentType domain.DocumentType) (*domain.DocumentWorkflow, error) {
	wf := domain.DocumentWorkflow{}
	err := db.Where("document_id = ? AND document_type = ? AND is_active = ?", documentId, documentType, true).
		Order("initiated_date DESC").First(&wf).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

func findAction(db *gorm.DB, id types.ID) (*domain.WorkflowStageAction, error) {
	action := domain.WorkflowStageAction{}
	err := db.Where("id = ?", id).First(&action).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &action, nil
}

func findStage(db *gorm.DB, id types.ID) (*domain.WorkflowStage, error) {
	stage := domain.WorkflowStage{}
	err := db.Where("id = ?", id).First(&stage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

func findTemplate(db *gorm.DB, id types.ID) (*domain.WorkflowTemplate, error) {
	template := domain.WorkflowTemplate{}
	err := db.Where("id = ?", id).First(&template).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &template, nil
}

// findActiveTemplate picks the most recently created active template of a document type.
func findActiveTemplate(db *gorm.DB, documentType domain.DocumentType) (*domain.WorkflowTemplate, error) {
	template := domain.WorkflowTemplate{}
	err := db.Where("document_type = ? AND is_active = ?", documentType, true).
		Order("create_time DESC").Order("id DESC").First(&template).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &template, nil
}

func findOriginatingStage(db *gorm.DB, templateId types.ID) (*domain.WorkflowStage, error) {
	stage := domain.WorkflowStage{}
	err := db.Where("template_id = ? AND stage_order = ? AND is_active = ?", templateId, domain.OriginatingStageOrder, true).
		First(&stage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

func listStageActions(db *gorm.DB, stageId types.ID) ([]domain.WorkflowStageAction, error) {
	var actions []domain.WorkflowStageAction
	if err := db.Where("stage_id = ?", stageId).Order("id ASC").Find(&actions).Error; err != nil {
		return nil, err
	}
	return actions, nil
}

// findMappedUsers lists active mappings of any of the roles in a department, earliest registered first.
func findMappedUsers(db *gorm.DB, roles []types.ID, departmentId types.ID, primaryOnly bool) ([]domain.RoleDepartmentUserMapping, error) {
	var mappings []domain.RoleDepartmentUserMapping
	if len(roles) == 0 {
		return mappings, nil
	}
	q := db.Where("role_id IN (?) AND department_id = ? AND is_active = ?", roles, departmentId, true)
	if primaryOnly {
		q = q.Where("is_primary = ?", true)
	}
	if err := q.Order("create_time ASC").Order("id ASC").Find(&mappings).Error; err != nil {
		return nil, err
	}
	return mappings, nil
}

func hasMapping(db *gorm.DB, userId types.ID, roles []types.ID, departmentId types.ID) (bool, error) {
	if len(roles) == 0 {
		return false, nil
	}
	count := 0
	if err := db.Model(&domain.RoleDepartmentUserMapping{}).
		Where("user_id = ? AND role_id IN (?) AND department_id = ? AND is_active = ?", userId, roles, departmentId, true).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
