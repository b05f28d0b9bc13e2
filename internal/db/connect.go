// Package db provides GORM connection, migration, and seeding helpers.
package db

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds a MySQL DSN for the Rite database.
func DSN(host string, port int, database string) string {
	return fmt.Sprintf("root@tcp(%s:%d)/%s?parseTime=true", host, port, database)
}

// Connect opens a GORM connection to the Rite database. The database must
// already exist; use Initialize to create and migrate it first.
func Connect(host string, port int, database string) (*gorm.DB, error) {
	dsn := DSN(host, port, database)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", host, port, database, err)
	}
	return db, nil
}

// Initialize creates the Rite database if it does not exist, connects to it,
// and migrates all tables. It returns the connected handle so callers can
// continue with seeding.
func Initialize(host string, port int, database string) (*gorm.DB, error) {
	adminDB, err := connectAdmin(host, port)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", database)
	if err := adminDB.Exec(sql).Error; err != nil {
		return nil, fmt.Errorf("db: create database %s: %w", database, err)
	}

	db, err := Connect(host, port, database)
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Reset drops the Rite database and re-initializes it from scratch. All
// tenants, releases, and audit history are lost.
func Reset(host string, port int, database string) (*gorm.DB, error) {
	adminDB, err := connectAdmin(host, port)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", database)
	if err := adminDB.Exec(sql).Error; err != nil {
		return nil, fmt.Errorf("db: drop database %s: %w", database, err)
	}
	return Initialize(host, port, database)
}

// connectAdmin opens a connection without selecting a database, for
// CREATE/DROP DATABASE statements.
func connectAdmin(host string, port int) (*gorm.DB, error) {
	dsn := fmt.Sprintf("root@tcp(%s:%d)/?parseTime=true", host, port)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: admin connect to %s:%d: %w", host, port, err)
	}
	return db, nil
}
