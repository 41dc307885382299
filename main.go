package main

import (
	"docflow/client/es"
	"docflow/common"
	"docflow/config"
	"docflow/document"
	"docflow/domain"
	"docflow/domain/flow"
	"docflow/event"
	"docflow/indices"
	"docflow/infra/tracing"
	"docflow/notify"
	"docflow/persistence"
	"docflow/servehttp"
	"docflow/session"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("load config failed %v\n", err)
	}
	if err := common.ConfigureLogging(cfg.ServiceName, cfg.Log.Level, cfg.Log.Format); err != nil {
		logrus.Fatalf("configure logging failed %v\n", err)
	}
	logrus.Info("service start")

	if cfg.Tracing.Enabled {
		closer, err := tracing.InitGlobalTracer(cfg.ServiceName)
		if err != nil {
			logrus.Fatalf("init tracer failed %v\n", err)
		}
		defer closer.Close()
	}

	dbConfig, err := cfg.DatabaseConfig()
	if err != nil {
		logrus.Fatalf("parse database config failed %v\n", err)
	}

	// create database (no conflict)
	if dbConfig.DriverType == persistence.DriverMysql {
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			logrus.Fatalf("failed to prepare database %v\n", err)
		}
	}

	// connect database
	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		logrus.Fatalf("database conneciton failed %v\n", err)
	}
	defer ds.Stop()

	// database migration (race condition)
	tables := append(domain.WorkflowTables(), &document.DocumentRecord{}, &event.EventRecord{}, &notify.NotificationRecord{})
	if err := ds.GormDB().AutoMigrate(tables...).Error; err != nil {
		logrus.Fatalf("database migration failed %v\n", err)
	}

	notifiers := notify.Fanout{notify.LogNotifier{}, notify.NewStoreNotifier(ds)}
	if cfg.Notification.Webhook != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.Notification.Webhook))
	}
	workflowEngine := flow.NewEngine(ds, document.NewGormStore(), notifiers)

	var searcher servehttp.ActivitySearcher
	if len(cfg.Elasticsearch.Addresses) > 0 {
		client, err := es.NewClient(cfg.Elasticsearch.Addresses, false)
		if err != nil {
			logrus.Fatalf("elasticsearch client failed %v\n", err)
		}
		var limiter *rate.Limiter
		if cfg.Elasticsearch.Rate > 0 {
			limiter = rate.NewLimiter(rate.Limit(cfg.Elasticsearch.Rate), 1)
		}
		indexer := indices.NewActivityIndexer(client, cfg.Elasticsearch.Index, limiter, ds)
		event.EventHandlers = append(event.EventHandlers, indexer.HandleEvent)
		indexer.ScheduleRecovery()
		searcher = indexer
	}

	engine := servehttp.NewHttpEngine(cfg.ServiceName)
	servehttp.RegisterDocumentWorkflowHandler(engine, workflowEngine, searcher, session.GatewayAuthFilter())

	servehttp.StartHTTPServer(cfg.HTTP.Addr, engine)
}
