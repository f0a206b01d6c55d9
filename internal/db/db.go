package db

import (
	"log"
	"strings"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Connect opens the shared SQL store. A MySQL DSN is used as-is; an empty
// DSN falls back to an embedded sqlite file so local runs need no database
// server (the only table is the single-row commits cache).
func Connect(dsn string) *gorm.DB {
	var (
		gdb *gorm.DB
		err error
	)

	if dsn == "" {
		gdb, err = gorm.Open(gormsqlite.Open("portfolio.db"), &gorm.Config{})
	} else if strings.Contains(dsn, "@tcp(") {
		gdb, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
	} else {
		gdb, err = gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	}

	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	return gdb
}
