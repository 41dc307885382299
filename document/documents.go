package document

import (
	"errors"
	"time"

	"docflow/bizerror"
	"docflow/domain"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

// DocumentRecord keeps the identity, ownership and status of a document. Contents live elsewhere.
type DocumentRecord struct {
	DocumentID   types.ID              `json:"documentId" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	DocumentType domain.DocumentType   `json:"documentType" gorm:"primary_key" sql:"type:VARCHAR(64) NOT NULL"`
	Title        string                `json:"title"`
	OwnerID      types.ID              `json:"ownerId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	DepartmentID types.ID              `json:"departmentId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Status       domain.DocumentStatus `json:"status"`

	UpdateTime time.Time `json:"updateTime"`
}

func (DocumentRecord) TableName() string {
	return "documents"
}

func (r *DocumentRecord) Ref() *domain.DocumentRef {
	return &domain.DocumentRef{DocumentID: r.DocumentID, DocumentType: r.DocumentType,
		OwnerID: r.OwnerID, DepartmentID: r.DepartmentID, Status: r.Status}
}

// GormStore is the default document store, backed by the documents table.
// All methods work on the given db so they join the caller's transaction.
type GormStore struct{}

func NewGormStore() *GormStore {
	return &GormStore{}
}

func (s *GormStore) LoadDocument(db *gorm.DB, documentId types.ID, documentType domain.DocumentType) (*domain.DocumentRef, error) {
	record := DocumentRecord{}
	err := db.Where("document_id = ? AND document_type = ?", documentId, documentType).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, bizerror.NewWorkflowError(bizerror.CodeDocumentNotFound,
			"document "+documentId.String()+" of type "+string(documentType)+" not found")
	}
	if err != nil {
		return nil, err
	}
	return record.Ref(), nil
}

// UpdateStatus changes the status of a document, false is returned if the document does not exist.
func (s *GormStore) UpdateStatus(db *gorm.DB, documentId types.ID, documentType domain.DocumentType, status domain.DocumentStatus) (bool, error) {
	q := db.Model(&DocumentRecord{}).Where("document_id = ? AND document_type = ?", documentId, documentType).
		Updates(map[string]interface{}{"status": status, "update_time": time.Now()})
	if q.Error != nil {
		return false, q.Error
	}
	if q.RowsAffected > 0 {
		return true, nil
	}
	// mysql reports changed rows only
	count := 0
	if err := db.Model(&DocumentRecord{}).Where("document_id = ? AND document_type = ?", documentId, documentType).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormStore) RegisterDocument(db *gorm.DB, record *DocumentRecord) error {
	if !record.DocumentType.Valid() {
		return &bizerror.ErrBadParam{Cause: errors.New("unknown document type '" + string(record.DocumentType) + "'")}
	}
	if record.Status == "" {
		record.Status = domain.DocumentStatusDraft
	}
	record.UpdateTime = time.Now()
	return db.Create(record).Error
}
