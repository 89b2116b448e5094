package ledger

import (
	"errors"
	"math/big"
	"testing"

	"perpeditions/core/state"
	"perpeditions/storage"
)

func addr(last byte) [20]byte {
	var a [20]byte
	a[19] = last
	return a
}

func newTestLedger(t *testing.T) *StateLedger {
	t.Helper()
	return NewStateLedger(state.NewManager(storage.NewMemDB()))
}

func TestRegisterContractAndIsAdmin(t *testing.T) {
	l := newTestLedger(t)
	tenant := addr(0x01)
	owner := addr(0x02)

	if _, err := l.IsAdmin(tenant, owner); !errors.Is(err, ErrContractNotRegistered) {
		t.Fatalf("expected ErrContractNotRegistered, got %v", err)
	}

	if err := l.RegisterContract(tenant, owner); err != nil {
		t.Fatalf("register contract: %v", err)
	}
	ok, err := l.IsAdmin(tenant, owner)
	if err != nil || !ok {
		t.Fatalf("expected owner to be admin, got ok=%v err=%v", ok, err)
	}
	ok, err = l.IsAdmin(tenant, addr(0x03))
	if err != nil || ok {
		t.Fatalf("expected stranger not to be admin, got ok=%v err=%v", ok, err)
	}

	// Ownership transfer takes effect on the next authorization check.
	newOwner := addr(0x04)
	if err := l.RegisterContract(tenant, newOwner); err != nil {
		t.Fatalf("re-register contract: %v", err)
	}
	ok, err = l.IsAdmin(tenant, owner)
	if err != nil || ok {
		t.Fatalf("expected previous owner to lose admin, got ok=%v err=%v", ok, err)
	}
	ok, err = l.IsAdmin(tenant, newOwner)
	if err != nil || !ok {
		t.Fatalf("expected new owner to be admin, got ok=%v err=%v", ok, err)
	}
}

func TestPermissionBits(t *testing.T) {
	l := newTestLedger(t)
	tenant := addr(0x01)
	operator := addr(0x10)

	bits, err := l.Permissions(tenant, operator)
	if err != nil || bits != 0 {
		t.Fatalf("expected empty bitmap, got bits=%d err=%v", bits, err)
	}

	if err := l.AddPermission(tenant, operator, 1<<2); err != nil {
		t.Fatalf("add permission: %v", err)
	}
	if err := l.AddPermission(tenant, operator, 1<<4); err != nil {
		t.Fatalf("add permission: %v", err)
	}
	bits, err = l.Permissions(tenant, operator)
	if err != nil || bits != (1<<2|1<<4) {
		t.Fatalf("expected combined bitmap, got bits=%d err=%v", bits, err)
	}

	ok, err := l.HasPermission(tenant, operator, 1<<2)
	if err != nil || !ok {
		t.Fatalf("expected bit 2 set, got ok=%v err=%v", ok, err)
	}
	ok, err = l.HasPermission(tenant, operator, 1<<2|1<<3)
	if err != nil || ok {
		t.Fatalf("expected partial match to fail, got ok=%v err=%v", ok, err)
	}

	if err := l.SetPermission(tenant, operator, 0); err != nil {
		t.Fatalf("clear permission: %v", err)
	}
	ok, err = l.HasPermission(tenant, operator, 1<<2)
	if err != nil || ok {
		t.Fatalf("expected cleared bitmap, got ok=%v err=%v", ok, err)
	}
}

func TestMintNewEditionAssignsMonotonicIDs(t *testing.T) {
	l := newTestLedger(t)
	tenant := addr(0x01)
	other := addr(0x02)

	if _, err := l.MintNewEdition(tenant, nil); !errors.Is(err, ErrContractNotRegistered) {
		t.Fatalf("expected ErrContractNotRegistered, got %v", err)
	}

	if err := l.RegisterContract(tenant, addr(0xA0)); err != nil {
		t.Fatalf("register contract: %v", err)
	}
	if err := l.RegisterContract(other, addr(0xA1)); err != nil {
		t.Fatalf("register contract: %v", err)
	}

	next, err := l.NextEditionID(tenant)
	if err != nil || next != 1 {
		t.Fatalf("expected next id 1, got %d err=%v", next, err)
	}

	for want := uint64(1); want <= 3; want++ {
		id, err := l.MintNewEdition(tenant, nil)
		if err != nil {
			t.Fatalf("mint %d: %v", want, err)
		}
		if id != want {
			t.Fatalf("expected id %d, got %d", want, id)
		}
	}

	// Identifier sequences are independent per tenant.
	id, err := l.MintNewEdition(other, nil)
	if err != nil || id != 1 {
		t.Fatalf("expected other tenant to start at 1, got %d err=%v", id, err)
	}

	next, err = l.NextEditionID(tenant)
	if err != nil || next != 4 {
		t.Fatalf("expected next id 4, got %d err=%v", next, err)
	}
}

func TestTokenURIRoundTrip(t *testing.T) {
	l := newTestLedger(t)
	tenant := addr(0x01)

	if _, err := l.TokenURI(tenant, 1); err == nil {
		t.Fatal("expected error for missing uri")
	}
	if err := l.SetTokenURI(tenant, 1, "https://test-api.com/1"); err != nil {
		t.Fatalf("set uri: %v", err)
	}
	uri, err := l.TokenURI(tenant, 1)
	if err != nil {
		t.Fatalf("get uri: %v", err)
	}
	if uri != "https://test-api.com/1" {
		t.Fatalf("unexpected uri %q", uri)
	}
}

func TestTransfer(t *testing.T) {
	l := newTestLedger(t)
	payer := addr(0x10)
	payee := addr(0x11)

	if err := l.Transfer(payer, payee, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := l.Transfer(payer, payee, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := l.Transfer(payer, payee, big.NewInt(1)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	if err := l.Credit(payer, big.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Transfer(payer, payee, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	balance, err := l.BalanceOf(payer)
	if err != nil || balance.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("expected payer balance 60, got %v err=%v", balance, err)
	}
	balance, err = l.BalanceOf(payee)
	if err != nil || balance.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("expected payee balance 40, got %v err=%v", balance, err)
	}

	// Zero value transfers succeed without touching accounts.
	if err := l.Transfer(payer, payee, big.NewInt(0)); err != nil {
		t.Fatalf("zero transfer: %v", err)
	}
	if err := l.Transfer(payer, payee, big.NewInt(61)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestTransferToSelfKeepsBalance(t *testing.T) {
	l := newTestLedger(t)
	account := addr(0x10)

	if err := l.Credit(account, big.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Transfer(account, account, big.NewInt(60)); err != nil {
		t.Fatalf("self transfer: %v", err)
	}
	balance, err := l.BalanceOf(account)
	if err != nil || balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected unchanged balance 100, got %v err=%v", balance, err)
	}

	// Self-transfers still require the sender to cover the amount.
	if err := l.Transfer(account, account, big.NewInt(101)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestCreditRejectsInvalidAmounts(t *testing.T) {
	l := newTestLedger(t)
	if err := l.Credit(addr(0x10), nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := l.Credit(addr(0x10), big.NewInt(-5)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}
