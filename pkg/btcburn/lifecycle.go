package btcburn

import "fmt"

// ConnectClaim writes (or overwrites) a PENDING record at connect time.
// If a record already exists for this txid, a released claim being
// re-claimed after a BTC reorg, its old index entry is removed first so
// the overwrite preserves auditability without orphaning index rows.
func (s *Store) ConnectClaim(rec *Record) error {
	old, err := s.GetRecord(rec.BtcTxid)
	if err != nil {
		return err
	}
	if old != nil {
		if err := s.DeleteIndexEntries(old.Status, old.ClaimHeight, old.BtcTxid); err != nil {
			return err
		}
	}
	return s.PutRecord(rec)
}

// DisconnectClaim deletes the record entirely on block disconnect.
func (s *Store) DisconnectClaim(txid [32]byte) error {
	rec, err := s.GetRecord(txid)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	return s.DeleteRecord(rec)
}

// Finalize transitions rec to FINAL at finalHeight, driven by a connecting
// TX_MINT_M0BTC. Callers must have already verified eligibility via
// Engine.Eligible.
func (s *Store) Finalize(rec *Record, finalHeight uint32) error {
	if rec.Status != StatusPending {
		return fmt.Errorf("btcburn: finalize called on non-pending record %s", rec.BtcTxid)
	}
	if err := s.DeleteIndexEntries(StatusPending, rec.ClaimHeight, rec.BtcTxid); err != nil {
		return err
	}
	rec.Status = StatusFinal
	rec.FinalHeight = finalHeight
	return s.PutRecord(rec)
}

// Unfinalize reverses Finalize on TX_MINT_M0BTC disconnect.
func (s *Store) Unfinalize(rec *Record) error {
	if rec.Status != StatusFinal {
		return fmt.Errorf("btcburn: unfinalize called on non-final record %s", rec.BtcTxid)
	}
	if err := s.DeleteIndexEntries(StatusFinal, rec.ClaimHeight, rec.BtcTxid); err != nil {
		return err
	}
	rec.Status = StatusPending
	rec.FinalHeight = 0
	return s.PutRecord(rec)
}
