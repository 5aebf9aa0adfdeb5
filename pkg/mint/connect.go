package mint

import (
	"fmt"

	"github.com/bathron/bathrond/pkg/btcburn"
	"github.com/bathron/bathrond/pkg/settlement"
)

// Connect applies an already-validated TX_MINT_M0BTC: each entry's claim
// record transitions PENDING -> FINAL and M0BTC_supply grows by its
// burned_sats. The transaction's own output UTXOs come into existence
// through ordinary UTXO processing, not this package.
func Connect(store *btcburn.Store, records []*btcburn.Record, blockHeight uint32) error {
	supply, err := store.GetM0BTCSupply()
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := store.Finalize(rec, blockHeight); err != nil {
			return fmt.Errorf("mint: connect: %w", err)
		}
		supply, err = settlement.AddNoOverflow(supply, rec.BurnedSats)
		if err != nil {
			return fmt.Errorf("mint: connect: supply: %w", err)
		}
	}
	return store.PutM0BTCSupply(supply)
}

// Disconnect reverses Connect on block disconnect: FINAL -> PENDING, and
// supply decreases by the same amount. Underflow here is a fatal
// consistency error, not a reject: it means Connect and Disconnect
// disagree about which records were ever finalized.
func Disconnect(store *btcburn.Store, records []*btcburn.Record) error {
	supply, err := store.GetM0BTCSupply()
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := store.Unfinalize(rec); err != nil {
			return fmt.Errorf("mint: disconnect: %w", err)
		}
		if supply < rec.BurnedSats {
			return fmt.Errorf("mint: disconnect: M0BTC_supply underflow (fatal consistency error)")
		}
		supply -= rec.BurnedSats
	}
	return store.PutM0BTCSupply(supply)
}
