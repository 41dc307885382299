package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"docflow/common"
	"docflow/domain"
	"docflow/notify"
	"docflow/testinfra"

	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
)

type recordingNotifier struct {
	received []notify.Notification
	err      error
}

func (r *recordingNotifier) Notify(ctx context.Context, n *notify.Notification) error {
	r.received = append(r.received, *n)
	return r.err
}

func sample() *notify.Notification {
	return &notify.Notification{Kind: notify.KindDocumentRejected, DocumentID: 77, DocumentType: domain.DocumentTypeSyllabus,
		Actor: 2002, Target: 1000, Payload: notify.Payload{notify.PayloadReason: "Needs more examples"}}
}

func TestLogNotifier(t *testing.T) {
	RegisterTestingT(t)
	Expect(notify.LogNotifier{}.Notify(context.Background(), sample())).To(BeNil())
}

func TestStoreNotifier(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should persist notifications into the inbox of the target", func(t *testing.T) {
		testDatabase := testinfra.StartTestDatabase("docflow")
		defer testinfra.StopTestDatabase(testDatabase)
		Expect(testDatabase.DS.GormDB().AutoMigrate(&notify.NotificationRecord{}).Error).To(BeNil())

		store := notify.NewStoreNotifier(testDatabase.DS)
		Expect(store.Notify(context.Background(), sample())).To(BeNil())
		other := sample()
		other.Target = 2002
		other.Kind = notify.KindActionCompleted
		Expect(store.Notify(context.Background(), other)).To(BeNil())

		inbox, err := store.Inbox(1000)
		Expect(err).To(BeNil())
		Expect(len(inbox)).To(Equal(1))
		Expect(inbox[0].ID).ToNot(BeZero())
		Expect(inbox[0].Notification).To(Equal(*sample()))
		Expect(inbox[0].Seen).To(BeFalse())
	})

	t.Run("should refuse notifications without target", func(t *testing.T) {
		n := sample()
		n.Target = 0
		err := notify.NewStoreNotifier(nil).Notify(context.Background(), n)
		Expect(err).ToNot(BeNil())
		Expect(err.Error()).To(Equal("notification target is required"))
	})
}

func TestWebhookNotifier(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should post notification as json", func(t *testing.T) {
		var body []byte
		var contentType string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			contentType = r.Header.Get("Content-Type")
			body, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		Expect(notify.NewWebhookNotifier(server.URL).Notify(context.Background(), sample())).To(BeNil())
		Expect(contentType).To(Equal("application/json;charset=UTF-8"))
		Expect(string(body)).To(MatchJSON(`{"kind":"DOCUMENT_REJECTED","documentId":"77","documentType":"Syllabus",
			"actor":"2002","target":"1000","payload":{"reason":"Needs more examples"}}`))

		n := notify.Notification{}
		Expect(json.Unmarshal(body, &n)).To(BeNil())
		Expect(n).To(Equal(*sample()))
	})

	t.Run("should return error on failure response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		err := notify.NewWebhookNotifier(server.URL).Notify(context.Background(), sample())
		var invokeErr *common.ErrHttpInvoke
		Expect(errors.As(err, &invokeErr)).To(BeTrue())
		Expect(invokeErr.StatusCode).To(Equal(http.StatusServiceUnavailable))
	})

	t.Run("should give up on slow endpoints", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		defer server.Close()
		defer close(release)

		webhook := notify.NewWebhookNotifier(server.URL)
		Expect(webhook.Timeout).To(Equal(notify.DefaultWebhookTimeout))
		webhook.Timeout = 50 * time.Millisecond

		begin := time.Now()
		err := webhook.Notify(context.Background(), sample())
		Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
		Expect(time.Since(begin)).To(BeNumerically("<", 2*time.Second))
	})
}

func TestFanout(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should deliver to all notifiers even when one fails", func(t *testing.T) {
		failing := &recordingNotifier{err: errors.New("smtp down")}
		ok := &recordingNotifier{}
		err := notify.Fanout{failing, ok}.Notify(context.Background(), sample())
		Expect(err).ToNot(BeNil())
		Expect(err.Error()).To(Equal("smtp down"))
		Expect(len(failing.received)).To(Equal(1))
		Expect(len(ok.received)).To(Equal(1))
	})

	t.Run("should succeed when all notifiers succeed", func(t *testing.T) {
		Expect(notify.Fanout{&recordingNotifier{}, notify.LogNotifier{}}.Notify(context.Background(), sample())).To(BeNil())
	})
}
