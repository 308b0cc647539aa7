// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package qos

import (
	"database/sql"
	"fmt"
	"net"

	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
)

// Storage defines the interface for policy persistence
type Storage interface {
	// SavePolicy saves a policy to persistent storage
	SavePolicy(p *Policy) error

	// DeletePolicy removes a policy from persistent storage
	DeletePolicy(policyID int) error

	// LoadPolicies loads all policies from persistent storage
	LoadPolicies() ([]*Policy, error)

	// Close closes the storage connection
	Close() error
}

// SQLiteStorage implements Storage using SQLite database
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	storage := &SQLiteStorage{db: db}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Infof("Policy storage initialized: %s", dbPath)
	return storage, nil
}

// initSchema creates the policies table if it doesn't exist
func (s *SQLiteStorage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS qos_policies (
		policy_id INTEGER PRIMARY KEY,
		translated_policy_id INTEGER NOT NULL DEFAULT 0,
		dscp INTEGER NOT NULL,
		user_priority INTEGER NOT NULL,
		src_addr TEXT,
		dst_addr TEXT,
		src_port INTEGER NOT NULL,
		protocol INTEGER NOT NULL,
		dst_port_start INTEGER,
		dst_port_end INTEGER,
		direction INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_direction ON qos_policies(direction);
	CREATE INDEX IF NOT EXISTS idx_translated_id ON qos_policies(translated_policy_id);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// SavePolicy saves a policy to the database
func (s *SQLiteStorage) SavePolicy(p *Policy) error {
	query := `
	INSERT INTO qos_policies (policy_id, translated_policy_id, dscp, user_priority,
		src_addr, dst_addr, src_port, protocol, dst_port_start, dst_port_end, direction)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(policy_id) DO UPDATE SET
		translated_policy_id = excluded.translated_policy_id,
		dscp = excluded.dscp,
		user_priority = excluded.user_priority,
		src_addr = excluded.src_addr,
		dst_addr = excluded.dst_addr,
		src_port = excluded.src_port,
		protocol = excluded.protocol,
		dst_port_start = excluded.dst_port_start,
		dst_port_end = excluded.dst_port_end,
		direction = excluded.direction,
		updated_at = CURRENT_TIMESTAMP
	`

	var srcAddr, dstAddr sql.NullString
	if p.srcAddr != nil {
		srcAddr = sql.NullString{String: p.srcAddr.String(), Valid: true}
	}
	if p.dstAddr != nil {
		dstAddr = sql.NullString{String: p.dstAddr.String(), Valid: true}
	}
	var rangeStart, rangeEnd sql.NullInt64
	if p.dstPortRange != nil {
		rangeStart = sql.NullInt64{Int64: int64(p.dstPortRange.Start), Valid: true}
		rangeEnd = sql.NullInt64{Int64: int64(p.dstPortRange.End), Valid: true}
	}

	_, err := s.db.Exec(query,
		p.policyID,
		p.translatedPolicyID,
		p.dscp,
		p.userPriority,
		srcAddr,
		dstAddr,
		p.srcPort,
		p.protocol,
		rangeStart,
		rangeEnd,
		p.direction,
	)

	if err != nil {
		return fmt.Errorf("failed to save policy: %w", err)
	}

	log.Debugf("Policy saved to storage: policy_id=%d", p.PolicyID())
	return nil
}

// DeletePolicy removes a policy from the database
func (s *SQLiteStorage) DeletePolicy(policyID int) error {
	query := `DELETE FROM qos_policies WHERE policy_id = ?`

	result, err := s.db.Exec(query, policyID)
	if err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("policy not found: policy_id=%d", policyID)
	}

	log.Debugf("Policy deleted from storage: policy_id=%d", policyID)
	return nil
}

// LoadPolicies loads all policies from the database
func (s *SQLiteStorage) LoadPolicies() ([]*Policy, error) {
	query := `
	SELECT policy_id, translated_policy_id, dscp, user_priority,
		src_addr, dst_addr, src_port, protocol, dst_port_start, dst_port_end, direction
	FROM qos_policies
	ORDER BY policy_id ASC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}
	defer rows.Close()

	var policies []*Policy
	for rows.Next() {
		p := &Policy{}
		var srcAddr, dstAddr sql.NullString
		var rangeStart, rangeEnd sql.NullInt64
		err := rows.Scan(
			&p.policyID,
			&p.translatedPolicyID,
			&p.dscp,
			&p.userPriority,
			&srcAddr,
			&dstAddr,
			&p.srcPort,
			&p.protocol,
			&rangeStart,
			&rangeEnd,
			&p.direction,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		if srcAddr.Valid {
			if p.srcAddr, err = net.ParseMAC(srcAddr.String); err != nil {
				return nil, fmt.Errorf("bad src_addr for policy %d: %w", p.policyID, err)
			}
		}
		if dstAddr.Valid {
			if p.dstAddr, err = net.ParseMAC(dstAddr.String); err != nil {
				return nil, fmt.Errorf("bad dst_addr for policy %d: %w", p.policyID, err)
			}
		}
		if rangeStart.Valid && rangeEnd.Valid {
			p.dstPortRange = &PortRange{
				Start: int32(rangeStart.Int64),
				End:   int32(rangeEnd.Int64),
			}
		}
		policies = append(policies, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policies: %w", err)
	}

	log.Infof("Loaded %d policies from storage", len(policies))
	return policies, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// GetPolicyCount returns the total number of policies in storage
func (s *SQLiteStorage) GetPolicyCount() (int, error) {
	query := `SELECT COUNT(*) FROM qos_policies`

	var count int
	err := s.db.QueryRow(query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get policy count: %w", err)
	}

	return count, nil
}

// ClearAll removes all policies from storage (useful for testing)
func (s *SQLiteStorage) ClearAll() error {
	query := `DELETE FROM qos_policies`

	_, err := s.db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to clear policies: %w", err)
	}

	log.Info("All policies cleared from storage")
	return nil
}
