package domain

import "fmt"

func shortenHash(hash string) string {
	if len(hash) <= 6 {
		return hash
	}
	return hash[:6]
}

// ProgressMessage is the user-facing text shown while a transaction of the
// given subject is still pending.
func ProgressMessage(chainID ChainID, hash string, subject TxSubject) string {
	switch subject {
	case SubjectApprove:
		return fmt.Sprintf("Approval in progress... #%s — don't forget to deposit once confirmed!", shortenHash(hash))
	case SubjectDeposit:
		return fmt.Sprintf("Deposit in progress... #%s", shortenHash(hash))
	case SubjectWithdraw:
		return fmt.Sprintf("Withdraw in progress... #%s", shortenHash(hash))
	case SubjectMigrate:
		return fmt.Sprintf("Migration in progress... #%s", shortenHash(hash))
	}
	return fmt.Sprintf("Transaction in progress... #%s", shortenHash(hash))
}

// SuccessMessage is the user-facing text for a confirmed transaction.
func SuccessMessage(chainID ChainID, hash string, subject TxSubject) string {
	switch subject {
	case SubjectApprove:
		return fmt.Sprintf("Successfully approved #%s", shortenHash(hash))
	case SubjectDeposit:
		return fmt.Sprintf("Successfully deposited #%s", shortenHash(hash))
	case SubjectWithdraw:
		return fmt.Sprintf("Successfully withdrawn #%s", shortenHash(hash))
	case SubjectMigrate:
		return fmt.Sprintf("Successfully migrated #%s", shortenHash(hash))
	}
	return fmt.Sprintf("Transaction confirmed #%s", shortenHash(hash))
}
