package db

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"report-scheduler/pkg/common"
)

var (
	sqlTables = []string{
		`CREATE TABLE IF NOT EXISTS schedule (
            id VARCHAR(255) NOT NULL PRIMARY KEY,
            name TEXT,
            description TEXT,
            report_interval INTEGER,
            report_time TEXT,
            report_day INTEGER,
            report_group_id TEXT,
            next_report_time BIGINT,
            lookback TEXT,
            date_format TEXT,
            date_position TEXT
        );`,
		`CREATE TABLE IF NOT EXISTS report_content (
            id VARCHAR(255) NOT NULL PRIMARY KEY,
            schedule_id VARCHAR(255),
            panel_id INTEGER,
            dashboard_id TEXT,
            title TEXT,
            panel_type TEXT,
            lookback TEXT,
            variables TEXT
        );`,
		`CREATE TABLE IF NOT EXISTS report_group (
            id VARCHAR(255) NOT NULL PRIMARY KEY,
            name TEXT,
            description TEXT
        );`,
		`CREATE TABLE IF NOT EXISTS report_group_membership (
            id VARCHAR(255) NOT NULL PRIMARY KEY,
            user_id TEXT,
            report_group_id VARCHAR(255)
        );`,
		`CREATE TABLE IF NOT EXISTS settings (
            id VARCHAR(255) NOT NULL PRIMARY KEY,
            data LONGTEXT
        );`,
		`CREATE TABLE IF NOT EXISTS record (
            id VARCHAR(255) NOT NULL PRIMARY KEY,
            schedule_id VARCHAR(255),
            name TEXT,
            start_time TEXT,
            end_time TEXT,
            state TEXT,
            file_name TEXT,
            recipients TEXT,
            err_message TEXT
        );`,
	}

	// ErrNotFound is returned when a lookup by id matches no row.
	ErrNotFound = errors.New("not found")

	DB *sql.DB
)

// Register opens the configured database and creates tables if they do not exist.
func Register() error {
	database, err := GetDB()
	if err != nil {
		return err
	}

	return Init(database)
}

// Init installs database as the package connection and creates the tables.
func Init(database *sql.DB) error {
	DB = database

	for _, table := range sqlTables {
		if _, err := DB.Exec(table); err != nil {
			logrus.Errorf("[DB] Error executing table creation SQL: %v\nSQL: %s", err, table)
			return errors.Wrap(err, "create tables")
		}
	}

	logrus.Infof("[DB] Tables ready")
	return nil
}

// GetDB returns a database connection based on configuration.
func GetDB() (*sql.DB, error) {
	if common.MySQL == "true" {
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?clientFoundRows=true", common.MySQLUser, common.MySQLPassword, common.MySQLHost, common.MySQLPort, common.MySQLDB)
		return Open("mysql", dsn)
	}

	return Open("sqlite3", filepath.Join(common.WorkDir, common.SQLiteName))
}

// Open opens and pings a database. SQLite is limited to one connection so
// the scheduler goroutines never contend for the file lock.
func Open(driver, dsn string) (*sql.DB, error) {
	database, err := sql.Open(driver, dsn)
	if err != nil {
		logrus.Errorf("[DB] Error opening %s connection: %v", driver, err)
		return nil, errors.Wrapf(err, "open %s", driver)
	}

	if strings.HasPrefix(driver, "sqlite") {
		database.SetMaxOpenConns(1)
	} else {
		database.SetMaxOpenConns(25)
		database.SetMaxIdleConns(25)
		database.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := database.Ping(); err != nil {
		logrus.Errorf("[DB] Error pinging %s database: %v", driver, err)
		database.Close()
		return nil, errors.Wrapf(err, "ping %s", driver)
	}

	logrus.Infof("[DB] Connected to %s database", driver)
	return database, nil
}
