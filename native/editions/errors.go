package editions

import "errors"

var (
	// ErrNotContractOwner is returned when a caller who is not the ledger-side
	// owner of the tenant contract attempts a privileged operation.
	ErrNotContractOwner = errors.New("editions: caller is not the contract owner")
	// ErrTenantNotConfigured is returned when edition creation is attempted
	// before the tenant contract received a sale configuration.
	ErrTenantNotConfigured = errors.New("editions: contract not configured")
	// ErrSaleStillActive is returned when the tenant's current edition window
	// has not elapsed yet.
	ErrSaleStillActive = errors.New("editions: sale still active")
	// ErrUnknownEdition is returned when a mint references an edition that was
	// never created for the tenant.
	ErrUnknownEdition = errors.New("editions: unknown edition")
	// ErrSoldOut is returned when a mint would push an edition past its supply cap.
	ErrSoldOut = errors.New("editions: edition sold out")
	// ErrPerAddressLimitExceeded is returned when a mint would push a single
	// address past the edition's per-address cap.
	ErrPerAddressLimitExceeded = errors.New("editions: per-address mint limit exceeded")
	// ErrInsufficientFunds is returned when the payment does not cover the sale
	// price plus the protocol fee.
	ErrInsufficientFunds = errors.New("editions: insufficient payment")
	// ErrTransferFailed is returned when routing the sale proceeds through the
	// ledger fails; the enclosing mint must abort without partial effect.
	ErrTransferFailed = errors.New("editions: funds transfer failed")
	// ErrTokenLimitReached is returned when the tenant has exhausted its
	// configured lifetime token allowance.
	ErrTokenLimitReached = errors.New("editions: token limit reached")
)

var (
	errNilState       = errors.New("editions engine: state not configured")
	errNilLedger      = errors.New("editions engine: ledger not configured")
	errInvalidConfig  = errors.New("editions engine: invalid contract config")
	errInvalidTerms   = errors.New("editions engine: invalid sale terms")
	errInvalidPayment = errors.New("editions engine: payment must not be negative")
	errZeroQuantity   = errors.New("editions engine: quantity must be positive")
)
