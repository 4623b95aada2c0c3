package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pricecheck/pkg/model"
)

// attemptRow is the MySQL table layout.
type attemptRow struct {
	ID     string    `gorm:"primaryKey;size:36"`
	RunID  string    `gorm:"size:36;index"`
	Scope  string    `gorm:"size:128"`
	PFID   string    `gorm:"column:pfid;size:128;index:idx_attempts_pfid,priority:1"`
	Status string    `gorm:"size:16"`
	Detail string    `gorm:"type:text"`
	At     time.Time `gorm:"column:ts;index:idx_attempts_pfid,priority:2"`
}

func (attemptRow) TableName() string { return "remediation_attempts" }

type MySQL struct {
	db *gorm.DB
}

// OpenMySQL connects and migrates. An empty dsn is assembled from MYSQL_HOST,
// MYSQL_PORT, MYSQL_USER, MYSQL_PASS and MYSQL_DB.
func OpenMySQL(dsn string, log *slog.Logger) (*MySQL, error) {
	if log == nil {
		log = slog.Default()
	}
	host := getenv("MYSQL_HOST", "127.0.0.1")
	port := getenv("MYSQL_PORT", "3306")
	user := getenv("MYSQL_USER", "root")
	pass := getenv("MYSQL_PASS", "")
	dbname := getenv("MYSQL_DB", "pricecheck")
	if dsn == "" {
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC", user, pass, host, port, dbname)
	}

	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	db, err := gorm.Open(mysql.Open(dsn), cfg)
	if err != nil {
		if !strings.Contains(err.Error(), "Unknown database") {
			return nil, fmt.Errorf("journal connect: %w", err)
		}
		log.Info("creating journal database", "db", dbname)
		if cerr := createDatabase(user, pass, host, port, dbname); cerr != nil {
			return nil, fmt.Errorf("create database failed: %w", cerr)
		}
		if db, err = gorm.Open(mysql.Open(dsn), cfg); err != nil {
			return nil, fmt.Errorf("journal connect: %w", err)
		}
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(4)
	if err := db.AutoMigrate(&attemptRow{}); err != nil {
		return nil, fmt.Errorf("journal migrate: %w", err)
	}
	return &MySQL{db: db}, nil
}

func (m *MySQL) Record(ctx context.Context, a Attempt) error {
	a.fill()
	row := attemptRow{ID: a.ID, RunID: a.RunID, Scope: a.Scope, PFID: a.PFID, Status: string(a.Status), Detail: a.Detail, At: a.At}
	if err := m.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("journal record: %w", err)
	}
	return nil
}

func (m *MySQL) List(ctx context.Context, pfid string, limit int) ([]Attempt, error) {
	var rows []attemptRow
	q := m.db.WithContext(ctx).Where("pfid = ?", pfid).Order("ts DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("journal list: %w", err)
	}
	out := make([]Attempt, 0, len(rows))
	for _, r := range rows {
		out = append(out, Attempt{ID: r.ID, RunID: r.RunID, Scope: r.Scope, PFID: r.PFID,
			Status: model.RemediationStatus(r.Status), Detail: r.Detail, At: r.At.UTC()})
	}
	return out, nil
}

func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func createDatabase(user, pass, host, port, dbname string) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/", user, pass, host, port)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` DEFAULT CHARACTER SET utf8mb4", dbname))
	return err
}
