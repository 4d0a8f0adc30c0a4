package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"
)

type DatabaseConfig struct {
	DriverType string `toml:"driver" validate:"required,oneof=mysql sqlite3"`
	DriverArgs string `toml:"args" validate:"required"`
}

// ParseDatabaseConfigFromEnv DB_DRIVER=mysql DB_ARGS=root:root@(127.0.0.1:3306)/protocolo?charset=utf8mb4&parseTime=True&loc=Local
func ParseDatabaseConfigFromEnv() (*DatabaseConfig, error) {
	driver := strings.TrimSpace(os.Getenv("DB_DRIVER"))
	args := strings.TrimSpace(os.Getenv("DB_ARGS"))
	if driver == "" {
		driver = "sqlite3"
	}
	if args == "" {
		if driver != "sqlite3" {
			return nil, errors.New("DB_ARGS is required for driver " + driver)
		}
		args = "protocolo.db"
	}
	return &DatabaseConfig{DriverType: driver, DriverArgs: args}, nil
}

// PrepareMysqlDatabase create the database named in dsn if it does not exist.
func PrepareMysqlDatabase(dsn string) error {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return err
	}
	databaseName := cfg.DBName
	if databaseName == "" {
		return errors.New("database name is missing in " + dsn)
	}
	cfg.DBName = ""

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` DEFAULT CHARACTER SET utf8mb4", databaseName))
	return err
}
