package domain

import (
	// md5 keeps stored shipping hashes comparable with the legacy rows.
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"time"
)

// CustomerPaymentToken holds reusable account details for a
// (customer, store, payment method) triple. The account data is stored
// encrypted at rest; this struct carries the decrypted fields.
type CustomerPaymentToken struct {
	CustomerID string
	StoreID    string
	MethodCode string

	// UniqueID is the gateway reference of the registration the token
	// originates from; follow-up debits reference it.
	UniqueID string

	AccountData map[string]string

	// ShippingHash detects a changed shipping address since the token was
	// stored; a mismatch forces re-registration for secured methods.
	ShippingHash string

	UpdatedAt time.Time
}

// ShippingAddress is the subset of the shipping address that goes into the
// shipping hash.
type ShippingAddress struct {
	Firstname string
	Lastname  string
	Street    string
	Postcode  string
	City      string
	Country   string
}

// Hash renders the address fingerprint used to detect address changes.
func (a ShippingAddress) Hash() string {
	sum := md5.Sum([]byte( //nolint:gosec
		a.Firstname + a.Lastname + a.Street + a.Postcode + a.City + a.Country,
	))
	return hex.EncodeToString(sum[:])
}
