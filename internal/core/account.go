package core

// Account is a named ledger: one ordered sequence of transactions with a
// derived balance. Insertion order is not assumed chronological; ordering by
// date happens only when balances and reports are computed.
type Account struct {
	Name         string        `json:"name"`
	Transactions []Transaction `json:"transactions"`
	Balance      float64       `json:"balance"`
}

// ComputeBalance sums all transaction amounts, sign-preserving.
func (a Account) ComputeBalance() float64 {
	var total float64
	for _, tx := range a.Transactions {
		total += tx.Amount
	}
	return total
}

// WithBalance returns a copy of the account with Balance recomputed.
func (a Account) WithBalance() Account {
	a.Balance = a.ComputeBalance()
	return a
}

// NormalizeAccount builds a canonical account from raw records. Every raw
// record yields a transaction; normalization never drops entries.
func NormalizeAccount(name string, raws []RawTransaction) Account {
	txs := make([]Transaction, len(raws))
	for i, raw := range raws {
		txs[i] = Normalize(raw)
	}
	return Account{Name: name, Transactions: txs}.WithBalance()
}

// RawAccount is the untrusted wire shape of an account: name plus raw
// transaction records.
type RawAccount struct {
	Name         string           `json:"name"`
	Transactions []RawTransaction `json:"transactions"`
}

// NormalizeAccounts canonicalizes a full raw account list, preserving order.
func NormalizeAccounts(raws []RawAccount) []Account {
	accounts := make([]Account, len(raws))
	for i, ra := range raws {
		accounts[i] = NormalizeAccount(ra.Name, ra.Transactions)
	}
	return accounts
}
