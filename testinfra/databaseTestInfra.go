package testinfra

import (
	"context"
	"os"
	"path/filepath"
	"protocolo/persistence"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type TestDatabase struct {
	TestDatabaseName string
	DS               *persistence.DataSourceManager
	file             string
}

// StartTestDatabase starts a mysql database when TEST_MYSQL_SERVICE=root:root@(127.0.0.1:3306) is set,
// and a throwaway sqlite database otherwise.
func StartTestDatabase(baseName string) *TestDatabase {
	if os.Getenv("TEST_MYSQL_SERVICE") != "" {
		return StartMysqlTestDatabase(baseName)
	}
	databaseName := baseName + "_test_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	file := filepath.Join(os.TempDir(), databaseName+".db")

	ds := &persistence.DataSourceManager{DatabaseConfig: &persistence.DatabaseConfig{DriverType: "sqlite3", DriverArgs: file}}
	if err := ds.Start(); err != nil {
		logrus.Fatalf("database connection failed %v\n", err)
	}
	return &TestDatabase{TestDatabaseName: databaseName, DS: ds, file: file}
}

func StartMysqlTestDatabase(baseName string) *TestDatabase {
	mysqlSvc := os.Getenv("TEST_MYSQL_SERVICE")
	if mysqlSvc == "" {
		mysqlSvc = "root:root@(127.0.0.1:3306)"
	}
	databaseName := baseName + "_test_" + strings.ReplaceAll(uuid.New().String(), "-", "")

	dbConfig := &persistence.DatabaseConfig{
		DriverType: "mysql", DriverArgs: mysqlSvc + "/" + databaseName + "?charset=utf8mb4&parseTime=True&loc=Local&timeout=5s",
	}

	// create database (no conflict)
	if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
		logrus.Fatalf("failed to prepare database %v\n", err)
	}

	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		defer ds.Stop()
		logrus.Fatalf("database connection failed %v\n", err)
	}

	return &TestDatabase{TestDatabaseName: databaseName, DS: ds}
}

func StopTestDatabase(testDatabase *TestDatabase) {
	if testDatabase == nil || testDatabase.DS == nil {
		return
	}
	if testDatabase.file == "" {
		if db := testDatabase.DS.GormDB(context.Background()); db != nil {
			if err := db.Exec("DROP DATABASE " + testDatabase.TestDatabaseName).Error; err != nil {
				logrus.Warnln("failed to drop test database: " + testDatabase.TestDatabaseName)
			}
		}
	}
	testDatabase.DS.Stop()
	if testDatabase.file != "" {
		_ = os.Remove(testDatabase.file)
	}
}
