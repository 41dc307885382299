package persistence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jinzhu/gorm"
)

const (
	DriverMysql  = "mysql"
	DriverSqlite = "sqlite3"
)

type DatabaseConfig struct {
	DriverType string
	DriverArgs string
}

func (c *DatabaseConfig) Validate() error {
	if c.DriverType != DriverMysql && c.DriverType != DriverSqlite {
		return fmt.Errorf("unsupported database driver '%s'", c.DriverType)
	}
	if strings.TrimSpace(c.DriverArgs) == "" {
		return errors.New("database driver args is required")
	}
	return nil
}

// PrepareMysqlDatabase create the database named in the dsn if it is absent.
func PrepareMysqlDatabase(driverArgs string) error {
	cfg, err := mysql.ParseDSN(driverArgs)
	if err != nil {
		return err
	}
	databaseName := cfg.DBName
	if databaseName == "" {
		return errors.New("database name is required in mysql dsn")
	}
	cfg.DBName = ""

	db, err := gorm.Open(DriverMysql, cfg.FormatDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Exec("CREATE DATABASE IF NOT EXISTS `" + databaseName + "` DEFAULT CHARACTER SET utf8mb4 COLLATE utf8mb4_general_ci").Error
}
