package event

import (
	"github.com/sirupsen/logrus"
)

/*
return nil if not support
*/
type EventHandler func(e *EventRecord) *EventHandleResult

type EventHandleResult struct {
	Success           bool
	Message           string
	HandlerIdentifier string
}

var EventHandlers []EventHandler

var InvokeHandlersFunc = invokeHandlers

func invokeHandlers(record *EventRecord) []EventHandleResult {
	results := []EventHandleResult{}
	if record == nil {
		return results
	}
	for _, handler := range EventHandlers {
		logrus.Debug("pre handle event ", record.Event)
		r := safeInvoke(handler, record)

		if r == nil {
			continue
		}

		results = append(results, *r)

		if r.Success {
			logrus.Info("post handle event. ", r)
		} else {
			logrus.Error("post handler error. ", r)
		}
	}
	return results
}

func safeInvoke(handler EventHandler, record *EventRecord) (r *EventHandleResult) {
	defer func() {
		if p := recover(); p != nil {
			r = &EventHandleResult{Success: false, Message: "handler panicked"}
		}
	}()
	return handler(record)
}
