package testinfra

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"docflow/persistence"

	"github.com/google/uuid"
)

type TestDatabase struct {
	TestDatabaseName string
	DS               *persistence.DataSourceManager

	sqliteFile string
}

// StartTestDatabase create an isolated database for a test.
// A sqlite file database is used by default, set TEST_DB_DRIVER=mysql to run against
// TEST_MYSQL_SERVICE=root:root@(127.0.0.1:3306)
func StartTestDatabase(baseName string) *TestDatabase {
	databaseName := baseName + "_test_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	if os.Getenv("TEST_DB_DRIVER") == persistence.DriverMysql {
		return startMysqlTestDatabase(databaseName)
	}

	file := filepath.Join(os.TempDir(), databaseName+".db")
	dbConfig := &persistence.DatabaseConfig{
		DriverType: persistence.DriverSqlite,
		DriverArgs: "file:" + file + "?_busy_timeout=5000",
	}
	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		log.Fatalf("database connection failed %v\n", err)
	}
	return &TestDatabase{TestDatabaseName: databaseName, DS: ds, sqliteFile: file}
}

func startMysqlTestDatabase(databaseName string) *TestDatabase {
	mysqlSvc := os.Getenv("TEST_MYSQL_SERVICE")
	if mysqlSvc == "" {
		mysqlSvc = "root:root@(127.0.0.1:3306)"
	}

	dbConfig := &persistence.DatabaseConfig{
		DriverType: persistence.DriverMysql, DriverArgs: mysqlSvc + "/" + databaseName + "?charset=utf8mb4&parseTime=True&loc=Local&timeout=5s",
	}

	// create database (no conflict)
	if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
		log.Fatalf("failed to prepare database %v\n", err)
	}

	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	// connect
	if err := ds.Start(); err != nil {
		defer ds.Stop()
		log.Fatalf("database connection failed %v\n", err)
	}

	return &TestDatabase{TestDatabaseName: databaseName, DS: ds}
}

func StopTestDatabase(testDatabase *TestDatabase) {
	if testDatabase == nil || testDatabase.DS == nil {
		return
	}
	if testDatabase.sqliteFile != "" {
		testDatabase.DS.Stop()
		if err := os.Remove(testDatabase.sqliteFile); err != nil {
			log.Println("failed to remove test database file: " + testDatabase.sqliteFile)
		}
		return
	}

	if testDatabase.DS.GormDB() != nil {
		if err := testDatabase.DS.GormDB().Exec("DROP DATABASE " + testDatabase.TestDatabaseName).Error; err != nil {
			log.Println("failed to drop test database: " + testDatabase.TestDatabaseName)
		} else {
			log.Println("test database " + testDatabase.TestDatabaseName + " dropped")
		}
	}

	// close connection
	testDatabase.DS.Stop()
}
