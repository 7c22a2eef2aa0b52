// Package testdb opens throwaway in-memory SQLite databases with the
// application schema for repository and service tests.
package testdb

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/skillroads/skillroads-backend/pkg/db"
)

// Schema mirrors the goose migrations, minus the Postgres-only pieces
// (uuid defaults, partial indexes, text arrays). Tests set IDs explicitly.
var schema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'learner',
		is_active BOOLEAN NOT NULL DEFAULT 1,
		last_login_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE items (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price_paise INTEGER NOT NULL DEFAULT 0,
		premium BOOLEAN NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE stages (
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL,
		title TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		free BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE bundles (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		price_paise INTEGER NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE bundle_items (
		id TEXT PRIMARY KEY,
		bundle_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		created_at DATETIME,
		CONSTRAINT uq_bundle_items_bundle_item UNIQUE (bundle_id, item_id)
	)`,
	`CREATE TABLE plans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		interval TEXT NOT NULL,
		duration_days INTEGER NOT NULL,
		price_paise INTEGER NOT NULL,
		currency_code TEXT NOT NULL DEFAULT 'INR',
		is_default BOOLEAN NOT NULL DEFAULT 0,
		features TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE coupons (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		discount_percent INTEGER NOT NULL,
		valid_from DATETIME NOT NULL,
		valid_to DATETIME NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 1,
		usage_limit INTEGER NOT NULL,
		used_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT uq_coupons_code UNIQUE (code)
	)`,
	`CREATE TABLE checkout_transactions (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		plan_id TEXT,
		item_id TEXT,
		bundle_id TEXT,
		coupon_id TEXT,
		base_paise INTEGER NOT NULL,
		discount_paise INTEGER NOT NULL DEFAULT 0,
		amount_paise INTEGER NOT NULL,
		currency TEXT NOT NULL DEFAULT 'INR',
		status TEXT NOT NULL DEFAULT 'pending',
		gateway_session TEXT,
		failure_reason TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT uq_checkout_transactions_order UNIQUE (order_id)
	)`,
	`CREATE TABLE purchase_records (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		bundle_id TEXT,
		transaction_id TEXT NOT NULL,
		purchased_at DATETIME NOT NULL,
		created_at DATETIME,
		CONSTRAINT uq_purchase_records_user_item UNIQUE (user_id, item_id)
	)`,
	`CREATE TABLE subscriptions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		plan_id TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		start_date DATETIME NOT NULL,
		end_date DATETIME NOT NULL,
		cancelled_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT uq_subscriptions_user UNIQUE (user_id)
	)`,
	`CREATE TABLE enrollments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		first_viewed_at DATETIME NOT NULL,
		created_at DATETIME,
		CONSTRAINT uq_enrollments_user_item UNIQUE (user_id, item_id)
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		attempt_count INTEGER NOT NULL,
		error_message TEXT,
		failed_at DATETIME NOT NULL,
		created_at DATETIME,
		CONSTRAINT uq_outbox_dlq_event UNIQUE (event_id)
	)`,
}

// Open returns a gorm handle to a fresh in-memory database.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

// OpenClient wraps Open in the application's db.Client for services that
// manage their own transactions.
func OpenClient(t *testing.T) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.NewFromGorm(conn), conn
}
