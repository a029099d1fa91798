package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// CreateTables creates the schema if it does not exist.  The slots table
// is keyed uniquely on (store_id, slot_date, slot_time) so a slot can be
// addressed without knowing its row ID; queue entries are keyed uniquely
// on (store_id, sequence_number) so a duplicate sequence assignment
// fails at the database even if the queue lock were ever bypassed.
func CreateTables(ctx context.Context, db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			role ENUM('CUSTOMER','OWNER') NOT NULL DEFAULT 'CUSTOMER',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS stores (
			id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
			name VARCHAR(255) NOT NULL,
			owner_id BIGINT UNSIGNED NOT NULL,
			operating_start DATE NOT NULL,
			operating_end DATE NOT NULL,
			opening_time TIME NOT NULL,
			closing_time TIME NOT NULL,
			max_queue_length INT NOT NULL DEFAULT 50,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			is_ended BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			KEY idx_stores_owner (owner_id)
		)`,
		`CREATE TABLE IF NOT EXISTS slots (
			id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
			store_id BIGINT UNSIGNED NOT NULL,
			slot_date DATE NOT NULL,
			slot_time TIME NOT NULL,
			total INT NOT NULL,
			available INT NOT NULL,
			status ENUM('AVAILABLE','FULL','HOLIDAY','PAST') NOT NULL DEFAULT 'AVAILABLE',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uq_slots_store_date_time (store_id, slot_date, slot_time)
		)`,
		`CREATE TABLE IF NOT EXISTS reservations (
			id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
			store_id BIGINT UNSIGNED NOT NULL,
			slot_id BIGINT UNSIGNED NOT NULL,
			user_id BIGINT UNSIGNED NOT NULL,
			party_size INT NOT NULL,
			status ENUM('CONFIRMED','CANCELED') NOT NULL DEFAULT 'CONFIRMED',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			KEY idx_reservations_slot (slot_id),
			KEY idx_reservations_user (user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS queue_entries (
			id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
			store_id BIGINT UNSIGNED NOT NULL,
			user_id BIGINT UNSIGNED NOT NULL,
			sequence_number BIGINT UNSIGNED NOT NULL,
			status ENUM('WAITING','CALLED','COMPLETED','CANCELED') NOT NULL DEFAULT 'WAITING',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uq_queue_store_seq (store_id, sequence_number),
			KEY idx_queue_store_status (store_id, status),
			KEY idx_queue_status_updated (status, updated_at)
		)`,
	}
	for _, q := range queries {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}
