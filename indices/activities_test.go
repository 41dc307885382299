package indices

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"docflow/client/es"
	"docflow/event"
	"docflow/testinfra"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/gomega"
	"golang.org/x/time/rate"
)

// fakeElasticsearch keeps indexed documents in memory and answers every search with all of them
type fakeElasticsearch struct {
	mu          sync.Mutex
	ids         []string
	docs        map[string]json.RawMessage
	searches    []string
	unavailable bool
	release     chan struct{}
}

func (f *fakeElasticsearch) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/"+DefaultActivityIndex+"/_doc/"):
		if f.release != nil {
			<-f.release
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.unavailable {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"unavailable"}`))
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/"+DefaultActivityIndex+"/_doc/")
		f.ids = append(f.ids, id)
		f.docs[id] = body
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	case strings.HasSuffix(r.URL.Path, "/_search"):
		f.mu.Lock()
		defer f.mu.Unlock()
		f.searches = append(f.searches, string(body))
		result := es.ESSearchResult{}
		for _, id := range f.ids {
			result.Hits.Hits = append(result.Hits.Hits, es.ESSearchHit{Index: DefaultActivityIndex, Id: id, Source: es.Source(f.docs[id])})
		}
		result.Hits.Total.Value = len(f.ids)
		_ = json.NewEncoder(w).Encode(result)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeElasticsearch) indexed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.ids...)
}

type indexerFixture struct {
	server       *httptest.Server
	fake         *fakeElasticsearch
	testDatabase *testinfra.TestDatabase
	indexer      *ActivityIndexer
}

func setup(t *testing.T, limiter *rate.Limiter) *indexerFixture {
	fake := &fakeElasticsearch{docs: map[string]json.RawMessage{}}
	server := httptest.NewServer(fake)
	client, err := es.NewClient([]string{server.URL}, false)
	Expect(err).To(BeNil())

	testDatabase := testinfra.StartTestDatabase("docflow")
	Expect(testDatabase.DS.GormDB().AutoMigrate(&event.EventRecord{}).Error).To(BeNil())
	return &indexerFixture{server: server, fake: fake, testDatabase: testDatabase,
		indexer: NewActivityIndexer(client, "", limiter, testDatabase.DS)}
}

func teardown(f *indexerFixture) {
	f.server.Close()
	testinfra.StopTestDatabase(f.testDatabase)
}

func (f *indexerFixture) persist(id types.ID, synced bool) *event.EventRecord {
	r := event.EventRecord{ID: id, Event: event.Event{SourceType: event.SourceTypeDocumentWorkflow, SourceId: 5000,
		DocumentId: 77, DocumentType: "Syllabus", EventCategory: event.EventCategoryActionProcessed,
		UpdatedProperties: event.UpdatedProperties{{PropertyName: "Status", OldValue: "In Progress", NewValue: "Completed"}},
		CreatorId: 3001, CreatorName: "dean"},
		Timestamp: time.Date(2021, 1, 1, 12, 0, int(id), 0, time.UTC), Synced: synced}
	Expect(f.testDatabase.DS.GormDB().Create(&r).Error).To(BeNil())
	return &r
}

func (f *indexerFixture) unsynced() []types.ID {
	records, err := event.QueryUnsyncedEvents(100, f.testDatabase.DS.GormDB())
	Expect(err).To(BeNil())
	var ids []types.ID
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestHandleEvent(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should ignore events of other sources", func(t *testing.T) {
		f := setup(t, nil)
		defer teardown(f)

		Expect(f.indexer.HandleEvent(nil)).To(BeNil())
		Expect(f.indexer.HandleEvent(&event.EventRecord{Event: event.Event{SourceType: "WORK"}})).To(BeNil())
		Expect(f.fake.indexed()).To(BeEmpty())
	})

	t.Run("should index the activity and mark the event synced", func(t *testing.T) {
		f := setup(t, nil)
		defer teardown(f)

		r := f.persist(7, false)
		result := f.indexer.HandleEvent(r)
		Expect(*result).To(Equal(event.EventHandleResult{Success: true, HandlerIdentifier: ActivityIndexerName}))
		Expect(f.fake.indexed()).To(Equal([]string{"7"}))
		Expect(f.unsynced()).To(BeEmpty())

		a := Activity{}
		Expect(json.Unmarshal(f.fake.docs["7"], &a)).To(BeNil())
		Expect(a.WorkflowID).To(Equal(types.ID(5000)))
		Expect(a.DocumentID).To(Equal(types.ID(77)))
		Expect(a.ActorName).To(Equal("dean"))
		Expect(a.Properties[0].NewValue).To(Equal("Completed"))
	})

	t.Run("should report failures and leave the event unsynced", func(t *testing.T) {
		f := setup(t, nil)
		defer teardown(f)

		f.fake.unavailable = true
		r := f.persist(7, false)
		result := f.indexer.HandleEvent(r)
		Expect(result.Success).To(BeFalse())
		Expect(result.HandlerIdentifier).To(Equal(ActivityIndexerName))
		Expect(result.Message).To(ContainSubstring("503"))
		Expect(f.unsynced()).To(Equal([]types.ID{7}))
	})

	t.Run("should throttle writes", func(t *testing.T) {
		f := setup(t, rate.NewLimiter(rate.Every(time.Hour), 1))
		defer teardown(f)

		Expect(f.indexer.Index(context.Background(), f.persist(7, false))).To(BeNil())

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		Expect(f.indexer.Index(ctx, f.persist(8, false))).ToNot(BeNil())
		Expect(f.fake.indexed()).To(Equal([]string{"7"}))
	})
}

func TestRecover(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should index unsynced events oldest first", func(t *testing.T) {
		f := setup(t, nil)
		defer teardown(f)

		f.persist(9, false)
		f.persist(8, true)
		f.persist(7, false)

		indexed, err := f.indexer.Recover(context.Background(), 1)
		Expect(err).To(BeNil())
		Expect(indexed).To(Equal(2))
		Expect(f.fake.indexed()).To(Equal([]string{"7", "9"}))
		Expect(f.unsynced()).To(BeEmpty())
	})

	t.Run("should stop at the first failure", func(t *testing.T) {
		f := setup(t, nil)
		defer teardown(f)

		f.persist(7, false)
		f.fake.unavailable = true
		indexed, err := f.indexer.Recover(context.Background(), 10)
		Expect(err).ToNot(BeNil())
		Expect(indexed).To(BeZero())
		Expect(f.unsynced()).To(Equal([]types.ID{7}))
	})

	t.Run("should run a single recovery at a time", func(t *testing.T) {
		f := setup(t, nil)
		defer teardown(f)

		f.persist(7, false)
		f.fake.release = make(chan struct{})
		Expect(f.indexer.ScheduleRecovery()).To(BeTrue())
		Expect(f.indexer.ScheduleRecovery()).To(BeFalse())

		close(f.fake.release)
		Eventually(func() bool {
			f.indexer.lock.Lock()
			defer f.indexer.lock.Unlock()
			return f.indexer.running
		}).Should(BeFalse())
		Expect(f.fake.indexed()).To(Equal([]string{"7"}))
		Expect(f.unsynced()).To(BeEmpty())
	})
}

func TestSearchActivities(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should query activities of the document", func(t *testing.T) {
		f := setup(t, nil)
		defer teardown(f)

		Expect(f.indexer.Index(context.Background(), f.persist(7, false))).To(BeNil())
		Expect(f.indexer.Index(context.Background(), f.persist(8, false))).To(BeNil())

		activities, err := f.indexer.SearchActivities(context.Background(), 77, "Syllabus", 20)
		Expect(err).To(BeNil())
		Expect(len(activities)).To(Equal(2))
		Expect(activities[0].ID).To(Equal(types.ID(7)))
		Expect(activities[1].ID).To(Equal(types.ID(8)))
		Expect(activities[1].Category).To(Equal(event.EventCategory(event.EventCategoryActionProcessed)))

		Expect(len(f.fake.searches)).To(Equal(1))
		Expect(f.fake.searches[0]).To(MatchJSON(`{
			"query": {"bool": {"filter": [
				{"term": {"documentId.keyword": "77"}},
				{"term": {"documentType.keyword": "Syllabus"}}
			]}},
			"sort": [{"timestamp": {"order": "asc"}}],
			"size": 20
		}`))
	})

	t.Run("should fail on error responses", func(t *testing.T) {
		f := setup(t, nil)
		defer teardown(f)

		f.server.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		_, err := f.indexer.SearchActivities(context.Background(), 77, "Syllabus", 20)
		Expect(err).ToNot(BeNil())
	})
}
