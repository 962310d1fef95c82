package core

import "fmt"

// ParsedCode is source known to parse as a valid JS module. Construction
// always validates; the stored form is the original source text.
type ParsedCode struct {
	Source string
}

// CodeValidator validates src as a JS module. The actual parse lives in the
// execution host's engine (ValidateModule in core/vm_host.go) since only it
// carries a JS parser; this type lets account.go name a validator while
// staying free of an engine dependency.
type CodeValidator func(src string) error

// Account is the per-address record of balance, nonce, and optional
// deployed code (spec §3).
type Account struct {
	Nonce   uint64
	Balance uint64
	Code    *ParsedCode // nil unless this is a smart-function account
}

func accountPath(addr Address) Path {
	return Path(fmt.Sprintf("/jstz_account/%s", addr.String()))
}

// AccountRegistry is the account CRUD layer built on top of a Transaction,
// per spec §4.2.
type AccountRegistry struct {
	tx *Transaction
}

func NewAccountRegistry(tx *Transaction) *AccountRegistry {
	return &AccountRegistry{tx: tx}
}

// Get returns the account at addr, lazily materialized as a zero-value
// account if it has never been written (spec §3 "Lifecycles").
func (r *AccountRegistry) Get(addr Address) (Account, error) {
	raw, ok, err := r.tx.Get(accountPath(addr))
	if err != nil {
		return Account{}, err
	}
	if !ok {
		return Account{}, nil
	}
	return DecodeAccount(raw)
}

func (r *AccountRegistry) put(addr Address, acc Account) error {
	raw, err := EncodeAccount(acc)
	if err != nil {
		return err
	}
	return r.tx.Insert(accountPath(addr), raw)
}

func (r *AccountRegistry) Balance(addr Address) (uint64, error) {
	acc, err := r.Get(addr)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

func (r *AccountRegistry) AddBalance(addr Address, amount uint64) error {
	acc, err := r.Get(addr)
	if err != nil {
		return err
	}
	newBal := acc.Balance + amount
	if newBal < acc.Balance {
		return New(KindBalanceOverflow, "balance overflow for %s", addr)
	}
	acc.Balance = newBal
	return r.put(addr, acc)
}

func (r *AccountRegistry) SubBalance(addr Address, amount uint64) error {
	acc, err := r.Get(addr)
	if err != nil {
		return err
	}
	if acc.Balance < amount {
		return New(KindInsufficientFunds, "account %s has %d, needs %d", addr, acc.Balance, amount)
	}
	acc.Balance -= amount
	return r.put(addr, acc)
}

// Transfer moves amount from src to dst as sequential sub-then-add. Because
// execution is single-threaded, partial failure cannot be observed; the
// caller rolls back the surrounding transaction on error.
func (r *AccountRegistry) Transfer(src, dst Address, amount uint64) error {
	if err := r.SubBalance(src, amount); err != nil {
		return err
	}
	if err := r.AddBalance(dst, amount); err != nil {
		return err
	}
	return nil
}

func (r *AccountRegistry) Nonce(addr Address) (uint64, error) {
	acc, err := r.Get(addr)
	if err != nil {
		return 0, err
	}
	return acc.Nonce, nil
}

func (r *AccountRegistry) IncrementNonce(addr Address) error {
	acc, err := r.Get(addr)
	if err != nil {
		return err
	}
	acc.Nonce++
	return r.put(addr, acc)
}

// SetCode sets addr's function code. Fails with AccountExists if code is
// already set (spec §4.2).
func (r *AccountRegistry) SetCode(addr Address, code ParsedCode) error {
	acc, err := r.Get(addr)
	if err != nil {
		return err
	}
	if acc.Code != nil {
		return New(KindAccountExists, "account %s already has code", addr)
	}
	acc.Code = &code
	return r.put(addr, acc)
}

// CreateSmartFunction derives a fresh smart-function address, transfers
// initialBalance from creator, stores code, and returns the new address.
func (r *AccountRegistry) CreateSmartFunction(creator Address, creatorNonce uint64, initialBalance uint64, code ParsedCode) (Address, error) {
	addr := DeriveSmartFunctionAddress(creator, creatorNonce, []byte(code.Source))
	acc, err := r.Get(addr)
	if err != nil {
		return Address{}, err
	}
	if acc.Code != nil {
		return Address{}, New(KindAccountExists, "smart function %s already exists", addr)
	}
	acc.Code = &code
	if err := r.put(addr, acc); err != nil {
		return Address{}, err
	}
	if initialBalance > 0 {
		if err := r.Transfer(creator, addr, initialBalance); err != nil {
			return Address{}, err
		}
	}
	return addr, nil
}
