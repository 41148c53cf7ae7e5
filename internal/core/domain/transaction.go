package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TransactionType is the set of banking transaction categories the producer
// knows how to phrase. Unknown types fall back to a generic message built
// from the transaction status.
type TransactionType string

const (
	TransactionDeposit       TransactionType = "deposit"
	TransactionWithdrawal    TransactionType = "withdrawal"
	TransactionTransfer      TransactionType = "transfer"
	TransactionStockPurchase TransactionType = "stock_purchase"
	TransactionStockSale     TransactionType = "stock_sale"
)

// TransactionDescriptor carries the facts about a completed transaction that
// the notification producer needs. The fan-out core does not interpret it
// beyond phrasing the title and body.
type TransactionDescriptor struct {
	TransactionID uuid.UUID
	Type          TransactionType
	Amount        float64
	Currency      string
	Status        string
}

// displayName maps a transaction type to its human-readable form.
func (t TransactionType) displayName() (string, bool) {
	switch t {
	case TransactionDeposit:
		return "Deposit", true
	case TransactionWithdrawal:
		return "Withdrawal", true
	case TransactionTransfer:
		return "Transfer", true
	case TransactionStockPurchase:
		return "Stock Purchase", true
	case TransactionStockSale:
		return "Stock Sale", true
	}
	return "", false
}

// UserMessage returns the title and body for the user-scoped notification.
func (d TransactionDescriptor) UserMessage() (title, body string) {
	amount := fmt.Sprintf("%.2f %s", d.Amount, d.Currency)

	if name, ok := d.Type.displayName(); ok {
		title = name + " Completed"
		body = fmt.Sprintf("Your %s of %s has been completed.", strings.ToLower(name), amount)
		return title, body
	}

	// Generic fallback phrased from the lower-cased status.
	status := strings.ToLower(d.Status)
	if status == "" {
		status = "processed"
	}
	title = "Transaction Update"
	body = fmt.Sprintf("Your transaction of %s is now %s.", amount, status)
	return title, body
}

// AdminMessage returns the title and body for the admin-broadcast copy.
func (d TransactionDescriptor) AdminMessage() (title, body string) {
	amount := fmt.Sprintf("%.2f %s", d.Amount, d.Currency)

	name, ok := d.Type.displayName()
	if !ok {
		title = "New Transaction"
		body = fmt.Sprintf("A transaction of %s was completed.", amount)
		return title, body
	}
	title = fmt.Sprintf("New %s Transaction", name)
	body = fmt.Sprintf("A %s of %s was completed.", strings.ToLower(name), amount)
	return title, body
}
