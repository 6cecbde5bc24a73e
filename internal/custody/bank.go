package custody

import (
	"context"
	"fmt"
	"sort"
	"sync"

	gethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/gagliardetto/solana-go"

	stakeerr "tierStaking/internal/errors"
	"tierStaking/internal/model"
)

// Transfer moves Amount from one token account to another. Authority must be
// the owner of From.
type Transfer struct {
	From      solana.PublicKey
	To        solana.PublicKey
	Authority solana.PublicKey
	Amount    uint64
}

// Bank is the token-transfer primitive. TransferBatch is all-or-nothing:
// either every leg moves or none does.
type Bank interface {
	Open(ctx context.Context, account model.TokenAccount) error
	Balance(ctx context.Context, account solana.PublicKey) (uint64, error)
	Transfer(ctx context.Context, t Transfer) error
	TransferBatch(ctx context.Context, transfers []Transfer) error
}

// MemoryBank is an in-process Bank used for local deployments and tests.
type MemoryBank struct {
	mu       sync.Mutex
	accounts map[solana.PublicKey]*model.TokenAccount
}

func NewMemoryBank() *MemoryBank {
	return &MemoryBank{accounts: make(map[solana.PublicKey]*model.TokenAccount)}
}

// Open creates an empty account. Reopening with the same mint and owner is a
// no-op.
func (b *MemoryBank) Open(ctx context.Context, account model.TokenAccount) error {
	if account.Mint.IsZero() {
		return stakeerr.ErrInvalidMint
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.accounts[account.Address]; ok {
		if !existing.Mint.Equals(account.Mint) || !existing.Owner.Equals(account.Owner) {
			return fmt.Errorf("account %s already open for mint %s: %w", account.Address, existing.Mint, stakeerr.ErrInvalidMint)
		}
		return nil
	}
	b.accounts[account.Address] = &model.TokenAccount{
		Address: account.Address,
		Mint:    account.Mint,
		Owner:   account.Owner,
	}
	return nil
}

func (b *MemoryBank) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	acc, ok := b.accounts[account]
	if !ok {
		return 0, fmt.Errorf("%s: %w", account, stakeerr.ErrAccountNotFound)
	}
	return acc.Amount, nil
}

// Credit mints amount into an open account.
func (b *MemoryBank) Credit(ctx context.Context, account solana.PublicKey, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	acc, ok := b.accounts[account]
	if !ok {
		return fmt.Errorf("%s: %w", account, stakeerr.ErrAccountNotFound)
	}
	total, overflow := gethmath.SafeAdd(acc.Amount, amount)
	if overflow {
		return stakeerr.ErrOverflow
	}
	acc.Amount = total
	return nil
}

func (b *MemoryBank) Transfer(ctx context.Context, t Transfer) error {
	return b.TransferBatch(ctx, []Transfer{t})
}

// TransferBatch validates every leg against staged balances and applies them
// only if all legs pass.
func (b *MemoryBank) TransferBatch(ctx context.Context, transfers []Transfer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	staged := make(map[solana.PublicKey]uint64, len(transfers)*2)
	balance := func(acc *model.TokenAccount) uint64 {
		if v, ok := staged[acc.Address]; ok {
			return v
		}
		return acc.Amount
	}

	for i, t := range transfers {
		from, ok := b.accounts[t.From]
		if !ok {
			return fmt.Errorf("transfer %d source %s: %w", i, t.From, stakeerr.ErrAccountNotFound)
		}
		to, ok := b.accounts[t.To]
		if !ok {
			return fmt.Errorf("transfer %d destination %s: %w", i, t.To, stakeerr.ErrAccountNotFound)
		}
		if !from.Mint.Equals(to.Mint) {
			return fmt.Errorf("transfer %d %s -> %s: %w", i, from.Mint, to.Mint, stakeerr.ErrInvalidMint)
		}
		if !from.Owner.Equals(t.Authority) {
			return fmt.Errorf("transfer %d from %s: %w", i, t.From, stakeerr.ErrUnauthorizedTransfer)
		}

		fromBal := balance(from)
		if fromBal < t.Amount {
			return fmt.Errorf("transfer %d from %s has %d, needs %d: %w", i, t.From, fromBal, t.Amount, stakeerr.ErrInsufficientBalance)
		}
		staged[from.Address] = fromBal - t.Amount

		toBal, overflow := gethmath.SafeAdd(balance(to), t.Amount)
		if overflow {
			return fmt.Errorf("transfer %d to %s: %w", i, t.To, stakeerr.ErrOverflow)
		}
		staged[to.Address] = toBal
	}

	for addr, amount := range staged {
		b.accounts[addr].Amount = amount
	}
	return nil
}

// Account returns a copy of an open account.
func (b *MemoryBank) Account(address solana.PublicKey) (model.TokenAccount, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	acc, ok := b.accounts[address]
	if !ok {
		return model.TokenAccount{}, false
	}
	return *acc, true
}

// Accounts lists all accounts ordered by address.
func (b *MemoryBank) Accounts() []model.TokenAccount {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]model.TokenAccount, 0, len(b.accounts))
	for _, acc := range b.accounts {
		out = append(out, *acc)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address.String() < out[j].Address.String()
	})
	return out
}

// Restore replaces all accounts.
func (b *MemoryBank) Restore(accounts []model.TokenAccount) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.accounts = make(map[solana.PublicKey]*model.TokenAccount, len(accounts))
	for _, acc := range accounts {
		acc := acc
		b.accounts[acc.Address] = &acc
	}
}
