package flow_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"docflow/document"
	"docflow/domain"
	"docflow/domain/flow"
	"docflow/event"
	"docflow/notify"
	"docflow/session"
	"docflow/testinfra"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	. "github.com/onsi/gomega"
)

const syllabusId types.ID = 77

var (
	author = &session.Identity{ID: testinfra.FacultyOwner, Name: "author"}
	chair  = &session.Identity{ID: testinfra.ChairPrimary, Name: "chair"}
	dean   = &session.Identity{ID: testinfra.DeanEarliest, Name: "dean"}
)

type recordingNotifier struct {
	mu       sync.Mutex
	received []notify.Notification
	err      error
	panicMsg string
}

func (r *recordingNotifier) Notify(ctx context.Context, n *notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, *n)
	if r.panicMsg != "" {
		panic(r.panicMsg)
	}
	return r.err
}

func (r *recordingNotifier) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = nil
}

func (r *recordingNotifier) kinds() map[notify.Kind]types.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := map[notify.Kind]types.ID{}
	for _, n := range r.received {
		m[n.Kind] = n.Target
	}
	return m
}

// documentStore lets tests pretend the document disappeared
type documentStore struct {
	*document.GormStore
	missingOnUpdate bool
}

func (s *documentStore) UpdateStatus(db *gorm.DB, documentId types.ID, documentType domain.DocumentType, status domain.DocumentStatus) (bool, error) {
	if s.missingOnUpdate {
		return false, nil
	}
	return s.GormStore.UpdateStatus(db, documentId, documentType, status)
}

type fixture struct {
	testDatabase *testinfra.TestDatabase
	pipeline     *testinfra.SyllabusPipeline
	store        *documentStore
	notifier     *recordingNotifier
	engine       *flow.Engine
}

func setup(t *testing.T) *fixture {
	testDatabase := testinfra.StartTestDatabase("docflow")
	db := testDatabase.DS.GormDB()
	testinfra.MigrateWorkflowTables(db)
	Expect(db.AutoMigrate(&document.DocumentRecord{}, &event.EventRecord{}).Error).To(BeNil())

	p := testinfra.BuildSyllabusPipeline()
	p.Persist(db)

	store := &documentStore{GormStore: document.NewGormStore()}
	Expect(store.RegisterDocument(db, &document.DocumentRecord{DocumentID: syllabusId, DocumentType: domain.DocumentTypeSyllabus,
		Title: "Algorithms", OwnerID: testinfra.FacultyOwner, DepartmentID: testinfra.Department})).To(BeNil())

	notifier := &recordingNotifier{}
	return &fixture{testDatabase: testDatabase, pipeline: p, store: store, notifier: notifier,
		engine: flow.NewEngine(testDatabase.DS, store, notifier)}
}

func teardown(f *fixture) {
	if f != nil {
		testinfra.StopTestDatabase(f.testDatabase)
	}
}

func (f *fixture) db() *gorm.DB {
	return f.testDatabase.DS.GormDB()
}

// start starts the workflow of the syllabus and moves it to the given stage
func (f *fixture) start(stageId types.ID) *domain.DocumentWorkflow {
	wf, err := f.engine.StartWorkflow(context.Background(),
		&domain.WorkflowStarting{DocumentID: syllabusId, DocumentType: domain.DocumentTypeSyllabus}, author)
	Expect(err).To(BeNil())
	if stageId != *wf.CurrentStageID {
		Expect(f.db().Model(&domain.DocumentWorkflow{}).Where("id = ?", wf.ID).
			Update("current_stage_id", stageId).Error).To(BeNil())
	}
	f.notifier.reset()
	return f.reload(wf.ID)
}

func (f *fixture) reload(id types.ID) *domain.DocumentWorkflow {
	wf := domain.DocumentWorkflow{}
	Expect(f.db().Where("id = ?", id).First(&wf).Error).To(BeNil())
	return &wf
}

func (f *fixture) documentStatus() domain.DocumentStatus {
	ref, err := f.store.LoadDocument(f.db(), syllabusId, domain.DocumentTypeSyllabus)
	Expect(err).To(BeNil())
	return ref.Status
}

func (f *fixture) count(model interface{}) int {
	n := 0
	Expect(f.db().Model(model).Count(&n).Error).To(BeNil())
	return n
}

func (f *fixture) histories(workflowId types.ID) []domain.WorkflowStageHistory {
	var records []domain.WorkflowStageHistory
	Expect(f.db().Where("document_workflow_id = ?", workflowId).Order("processed_date ASC").Order("id ASC").
		Find(&records).Error).To(BeNil())
	return records
}

func (f *fixture) feedbacks(workflowId types.ID) []domain.DocumentFeedback {
	var records []domain.DocumentFeedback
	Expect(f.db().Where("document_workflow_id = ?", workflowId).Find(&records).Error).To(BeNil())
	return records
}

func (f *fixture) process(actionId types.ID, actor *session.Identity, comments string) (*flow.ActionOutcome, error) {
	req := actionOf(actionId)
	req.Comments = comments
	return f.engine.ProcessAction(context.Background(), req, actor)
}

func actionOf(actionId types.ID) *domain.ActionRequest {
	return &domain.ActionRequest{DocumentID: syllabusId, DocumentType: domain.DocumentTypeSyllabus, ActionID: actionId}
}

func idRef(id types.ID) *types.ID {
	return &id
}

var errNotifierDown = errors.New("notifier down")
