package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/propulsorfi/txtracker/internal/core/domain"
)

// TxRepo implements storage.TransactionRepository using PostgreSQL.
type TxRepo struct {
	db *DB
}

// NewTxRepo creates a new PostgreSQL transaction repository.
func NewTxRepo(db *DB) *TxRepo {
	return &TxRepo{db: db}
}

type txRow struct {
	ChainID          uint64     `db:"chain_id"`
	TxHash           string     `db:"tx_hash"`
	FromAddress      string     `db:"from_address"`
	Subject          string     `db:"subject"`
	AddedTime        time.Time  `db:"added_time"`
	LastCheckedBlock uint64     `db:"last_checked_block"`
	Approval         []byte     `db:"approval"`
	Receipt          []byte     `db:"receipt"`
	ConfirmedTime    *time.Time `db:"confirmed_time"`
}

func (row *txRow) toDomain() (*domain.TransactionRecord, error) {
	record := &domain.TransactionRecord{
		Hash:             row.TxHash,
		From:             row.FromAddress,
		Subject:          domain.TxSubject(row.Subject),
		AddedTime:        row.AddedTime,
		LastCheckedBlock: row.LastCheckedBlock,
		ConfirmedTime:    row.ConfirmedTime,
	}
	if len(row.Approval) > 0 {
		var approval domain.Approval
		if err := json.Unmarshal(row.Approval, &approval); err != nil {
			return nil, fmt.Errorf("decode approval for %s: %w", row.TxHash, err)
		}
		record.Approval = &approval
	}
	if len(row.Receipt) > 0 {
		var receipt domain.Receipt
		if err := json.Unmarshal(row.Receipt, &receipt); err != nil {
			return nil, fmt.Errorf("decode receipt for %s: %w", row.TxHash, err)
		}
		record.Receipt = &receipt
	}
	return record, nil
}

// Save upserts a record under its network. The write-through happens on
// every store mutation, so the upsert refreshes the mutable columns only.
func (r *TxRepo) Save(ctx context.Context, chainID domain.ChainID, record *domain.TransactionRecord) error {
	var approval, receipt []byte
	var err error
	if record.Approval != nil {
		if approval, err = json.Marshal(record.Approval); err != nil {
			return fmt.Errorf("encode approval: %w", err)
		}
	}
	if record.Receipt != nil {
		if receipt, err = json.Marshal(record.Receipt); err != nil {
			return fmt.Errorf("encode receipt: %w", err)
		}
	}

	query := `
		INSERT INTO transactions (
			chain_id, tx_hash, from_address, subject, added_time, last_checked_block, approval, receipt, confirmed_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (chain_id, tx_hash) DO UPDATE SET
			last_checked_block = EXCLUDED.last_checked_block,
			receipt = EXCLUDED.receipt,
			confirmed_time = EXCLUDED.confirmed_time
	`
	_, err = r.db.ExecContext(ctx, query,
		uint64(chainID), record.Hash, record.From, string(record.Subject),
		record.AddedTime, record.LastCheckedBlock, approval, receipt, record.ConfirmedTime,
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

// LoadNetwork returns the full hash-to-record mapping for a network.
func (r *TxRepo) LoadNetwork(ctx context.Context, chainID domain.ChainID) (map[string]*domain.TransactionRecord, error) {
	query := `
		SELECT chain_id, tx_hash, from_address, subject, added_time, last_checked_block, approval, receipt, confirmed_time
		FROM transactions
		WHERE chain_id = $1
	`
	var rows []txRow
	if err := r.db.SelectContext(ctx, &rows, query, uint64(chainID)); err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	out := make(map[string]*domain.TransactionRecord, len(rows))
	for i := range rows {
		record, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out[record.Hash] = record
	}
	return out, nil
}

// DeleteFinalizedBefore removes finalized records confirmed before the cutoff.
func (r *TxRepo) DeleteFinalizedBefore(ctx context.Context, chainID domain.ChainID, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM transactions
		WHERE chain_id = $1 AND receipt IS NOT NULL AND confirmed_time < $2
	`
	result, err := r.db.ExecContext(ctx, query, uint64(chainID), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete finalized transactions: %w", err)
	}
	return result.RowsAffected()
}
