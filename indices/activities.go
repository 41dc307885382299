package indices

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"docflow/client/es"
	"docflow/event"
	"docflow/persistence"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	ActivityIndexerName   = "activityIndexer"
	DefaultActivityIndex  = "docflow-activities"
	DefaultRecoveryBatch  = 500
	activityHandleTimeout = 5 * time.Second
)

// Activity is the searchable copy of an audit event of a document workflow.
type Activity struct {
	ID           types.ID                `json:"id"`
	WorkflowID   types.ID                `json:"workflowId"`
	DocumentID   types.ID                `json:"documentId"`
	DocumentType string                  `json:"documentType"`
	Category     event.EventCategory     `json:"category"`
	ActorID      types.ID                `json:"actorId"`
	ActorName    string                  `json:"actorName"`
	Timestamp    time.Time               `json:"timestamp"`
	Properties   event.UpdatedProperties `json:"properties"`
	Relations    event.UpdatedRelations  `json:"relations"`
}

func ActivityOf(r *event.EventRecord) Activity {
	return Activity{
		ID:           r.ID,
		WorkflowID:   r.SourceId,
		DocumentID:   r.DocumentId,
		DocumentType: r.DocumentType,
		Category:     r.EventCategory,
		ActorID:      r.CreatorId,
		ActorName:    r.CreatorName,
		Timestamp:    r.Timestamp,
		Properties:   r.UpdatedProperties,
		Relations:    r.UpdatedRelations,
	}
}

// ActivityIndexer copies audit events to Elasticsearch. Writes are throttled by the limiter,
// indexed events are flagged as synced when a data source is given.
type ActivityIndexer struct {
	client  *elasticsearch.Client
	index   string
	limiter *rate.Limiter
	ds      *persistence.DataSourceManager

	lock    sync.Mutex
	running bool
}

func NewActivityIndexer(client *elasticsearch.Client, index string, limiter *rate.Limiter, ds *persistence.DataSourceManager) *ActivityIndexer {
	if index == "" {
		index = DefaultActivityIndex
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &ActivityIndexer{client: client, index: index, limiter: limiter, ds: ds}
}

func (ix *ActivityIndexer) Index(ctx context.Context, r *event.EventRecord) error {
	if err := ix.limiter.Wait(ctx); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(ActivityOf(r)); err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      ix.index,
		DocumentID: r.ID.String(),
		Body:       bytes.NewReader(buf.Bytes()),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, ix.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index activity %s: error response status %s", r.ID, res.Status())
	}
	logrus.Debugln("activity indexed: ", r.ID)

	if ix.ds != nil {
		return event.MarkEventSynced(r.ID, ix.ds.GormDB())
	}
	return nil
}

// HandleEvent is the event handler of the indexer, events of other sources are ignored.
func (ix *ActivityIndexer) HandleEvent(e *event.EventRecord) *event.EventHandleResult {
	if e == nil || e.SourceType != event.SourceTypeDocumentWorkflow {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), activityHandleTimeout)
	defer cancel()
	if err := ix.Index(ctx, e); err != nil {
		return &event.EventHandleResult{Message: fmt.Sprintf("index activity %d, %v", e.ID, err), HandlerIdentifier: ActivityIndexerName}
	}
	return &event.EventHandleResult{Success: true, HandlerIdentifier: ActivityIndexerName}
}

// Recover indexes the events left unsynced, for example while Elasticsearch was down.
// It stops at the first failure and returns the number of indexed events.
func (ix *ActivityIndexer) Recover(ctx context.Context, batch int) (int, error) {
	if ix.ds == nil {
		return 0, nil
	}
	if batch <= 0 {
		batch = DefaultRecoveryBatch
	}
	indexed := 0
	for {
		records, err := event.QueryUnsyncedEvents(batch, ix.ds.GormDB())
		if err != nil {
			return indexed, err
		}
		if len(records) == 0 {
			return indexed, nil
		}
		for idx := range records {
			if err := ix.Index(ctx, &records[idx]); err != nil {
				return indexed, err
			}
			indexed++
		}
	}
}

// ScheduleRecovery runs Recover in background, false when a recovery is already running.
func (ix *ActivityIndexer) ScheduleRecovery() bool {
	ix.lock.Lock()
	if ix.running {
		ix.lock.Unlock()
		return false
	}
	ix.running = true
	ix.lock.Unlock()

	go func() {
		defer func() {
			ix.lock.Lock()
			ix.running = false
			ix.lock.Unlock()
		}()
		indexed, err := ix.Recover(context.Background(), DefaultRecoveryBatch)
		if err != nil {
			logrus.Warnf("activity recovery stopped after %d events: %v", indexed, err)
			return
		}
		logrus.Infof("activity recovery indexed %d events", indexed)
	}()
	return true
}

// SearchActivities lists the indexed activities of a document, oldest first.
func (ix *ActivityIndexer) SearchActivities(ctx context.Context, documentId types.ID, documentType string, size int) ([]Activity, error) {
	query := es.H{
		"query": es.H{"bool": es.H{"filter": []es.H{
			{"term": es.H{"documentId.keyword": documentId.String()}},
			{"term": es.H{"documentType.keyword": documentType}},
		}}},
		"sort": []es.H{{"timestamp": es.H{"order": "asc"}}},
		"size": size,
	}
	var q bytes.Buffer
	if err := json.NewEncoder(&q).Encode(query); err != nil {
		return nil, err
	}

	res, err := ix.client.Search(
		ix.client.Search.WithContext(ctx),
		ix.client.Search.WithIndex(ix.index),
		ix.client.Search.WithBody(&q),
		ix.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search activities: error response status %s", res.Status())
	}

	r := es.ESSearchResult{}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, err
	}
	activities := make([]Activity, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		a := Activity{}
		if err := json.Unmarshal([]byte(hit.Source), &a); err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, nil
}
