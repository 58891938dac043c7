package domain

import "time"

// TxSubject categorizes what a transaction was broadcast for. It drives
// user-facing messaging only, never control flow.
type TxSubject string

const (
	SubjectApprove  TxSubject = "Approve"
	SubjectDeposit  TxSubject = "Deposit"
	SubjectWithdraw TxSubject = "Withdraw"
	SubjectMigrate  TxSubject = "Migrate"
)

// KnownSubject reports whether s is one of the defined subjects.
func KnownSubject(s TxSubject) bool {
	switch s {
	case SubjectApprove, SubjectDeposit, SubjectWithdraw, SubjectMigrate:
		return true
	}
	return false
}

// Approval describes a related token-approval action.
type Approval struct {
	Token   string `json:"token"`
	Spender string `json:"spender"`
}

// Receipt is the chain-confirmed outcome of a transaction.
// Status 1 means success, 0 means reverted; it is informational for the UI
// and does not affect terminality.
type Receipt struct {
	BlockHash        string `json:"block_hash"`
	BlockNumber      uint64 `json:"block_number"`
	ContractAddress  string `json:"contract_address,omitempty"`
	From             string `json:"from"`
	To               string `json:"to,omitempty"`
	Status           uint64 `json:"status"`
	TransactionHash  string `json:"transaction_hash"`
	TransactionIndex uint64 `json:"transaction_index"`
}

// RecencyWindow is how long after broadcast a transaction counts as recent.
const RecencyWindow = 24 * time.Hour

// TransactionRecord tracks one broadcast transaction from submission to
// confirmation. The hash is the primary key within a network's mapping.
//
// LastCheckedBlock is the highest block at which a receipt check came back
// empty; zero means the record has never been checked. Once Receipt is set
// the record is terminal and never mutated again.
type TransactionRecord struct {
	Hash             string     `json:"hash"`
	From             string     `json:"from"`
	AddedTime        time.Time  `json:"added_time"`
	Subject          TxSubject  `json:"subject"`
	Approval         *Approval  `json:"approval,omitempty"`
	LastCheckedBlock uint64     `json:"last_checked_block,omitempty"`
	Receipt          *Receipt   `json:"receipt,omitempty"`
	ConfirmedTime    *time.Time `json:"confirmed_time,omitempty"`
}

// Pending reports whether the transaction has no receipt yet.
func (t *TransactionRecord) Pending() bool {
	return t.Receipt == nil
}

// Recent reports whether the transaction was added within the recency window.
func (t *TransactionRecord) Recent(now time.Time) bool {
	return now.Sub(t.AddedTime) < RecencyWindow
}

// Clone returns a deep copy of the record, safe to hand to readers.
func (t *TransactionRecord) Clone() *TransactionRecord {
	cp := *t
	if t.Approval != nil {
		approval := *t.Approval
		cp.Approval = &approval
	}
	if t.Receipt != nil {
		receipt := *t.Receipt
		cp.Receipt = &receipt
	}
	if t.ConfirmedTime != nil {
		confirmed := *t.ConfirmedTime
		cp.ConfirmedTime = &confirmed
	}
	return &cp
}
