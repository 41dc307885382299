package event

import (
	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

var (
	EventPersistCreateFunc = eventPersistCreate
)

func eventPersistCreate(record *EventRecord, db *gorm.DB) error {
	return db.Create(record).Error
}

// QueryEvents list the audit events of a document workflow, oldest first
func QueryEvents(sourceId types.ID, db *gorm.DB) ([]EventRecord, error) {
	records := []EventRecord{}
	if err := db.Where("source_type = ? AND source_id = ?", SourceTypeDocumentWorkflow, sourceId).
		Order("timestamp ASC").Order("id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// QueryUnsyncedEvents lists audit events not yet copied to the activity index, oldest first
func QueryUnsyncedEvents(limit int, db *gorm.DB) ([]EventRecord, error) {
	records := []EventRecord{}
	if err := db.Where("synced = ?", false).Order("timestamp ASC").Order("id ASC").
		Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func MarkEventSynced(id types.ID, db *gorm.DB) error {
	return db.Model(&EventRecord{}).Where("id = ?", id).Update("synced", true).Error
}
