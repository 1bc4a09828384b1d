package database

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"novel-ai-go/pkg/log"
)

// NewMySQL 建立 MySQL 数据库连接并配置连接池。
// 返回连接句柄由组合根持有并注入各 Repository，不再使用包级全局变量。
func NewMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// 配置连接池。并发 worker 各自从池中取连接，不共享会话。
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("MySQL database connected successfully")
	return db, nil
}
