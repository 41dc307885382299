package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"docflow/common"
	"docflow/persistence"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

// LogNotifier writes notifications to the log only.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n *Notification) error {
	logrus.WithFields(logrus.Fields{
		"kind":         n.Kind,
		"documentId":   n.DocumentID,
		"documentType": n.DocumentType,
		"actor":        n.Actor,
		"target":       n.Target,
	}).Info("notification: ", n.Payload)
	return nil
}

// NotificationRecord is an entry of the inbox of a user.
type NotificationRecord struct {
	ID types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Notification
	Seen bool `json:"seen"`

	CreateTime time.Time `json:"createTime"`
}

func (NotificationRecord) TableName() string {
	return "notifications"
}

var idWorker = common.NewIdWorker()

// StoreNotifier persists notifications into the inbox table.
type StoreNotifier struct {
	dataSource *persistence.DataSourceManager
}

func NewStoreNotifier(ds *persistence.DataSourceManager) *StoreNotifier {
	return &StoreNotifier{dataSource: ds}
}

func (s *StoreNotifier) Notify(ctx context.Context, n *Notification) error {
	if n.Target == 0 {
		return errors.New("notification target is required")
	}
	record := NotificationRecord{ID: common.NextId(idWorker), Notification: *n, CreateTime: time.Now()}
	return s.dataSource.GormDB().Create(&record).Error
}

// Inbox lists the notifications of a user, newest first.
func (s *StoreNotifier) Inbox(target types.ID) ([]NotificationRecord, error) {
	var records []NotificationRecord
	if err := s.dataSource.GormDB().Where("target = ?", target).
		Order("create_time DESC").Order("id DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

const DefaultWebhookTimeout = 5 * time.Second

// WebhookNotifier posts every notification as json to an http endpoint.
// A delivery gives up after Timeout.
type WebhookNotifier struct {
	Url     string
	Headers http.Header
	Timeout time.Duration
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{Url: strings.TrimSpace(url), Timeout: DefaultWebhookTimeout}
}

func (w *WebhookNotifier) Notify(ctx context.Context, n *Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}
	_, err = common.HttpInvokeJson(ctx, http.MethodPost, w.Url, w.Headers, string(body))
	return err
}

// Fanout delivers to every notifier, a failing notifier does not prevent the following ones.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, n *Notification) error {
	var failures []string
	for _, notifier := range f {
		if err := notifier.Notify(ctx, n); err != nil {
			failures = append(failures, err.Error())
		}
	}
	if len(failures) > 0 {
		return errors.New(strings.Join(failures, "; "))
	}
	return nil
}
