// Copyright 2025 The BATHRON developers
//
// Package script classifies the two script shapes the settlement core cares
// about: the single-byte OP_TRUE vault script, and everything else. Full
// script evaluation belongs to the script verifier; this package only
// recognizes shapes, it never executes a script.
package script

import "github.com/bathron/bathrond/pkg/bathash"

// OpTrue is the single-byte vault script. Anyone can satisfy it; the
// settlement containment rule (package settlement) is what makes it safe.
const OpTrue byte = 0x51

// OpReturn begins a provably-unspendable data-carrier output.
const OpReturn byte = 0x6a

// IsOpTrue reports whether s is exactly the one-byte OP_TRUE vault script.
func IsOpTrue(s []byte) bool {
	return len(s) == 1 && s[0] == OpTrue
}

// IsOpReturn reports whether s begins with OP_RETURN, marking the output as
// a non-spendable data carrier.
func IsOpReturn(s []byte) bool {
	return len(s) >= 1 && s[0] == OpReturn
}

// P2PKH builds a standard pay-to-pubkey-hash script:
// OP_DUP OP_HASH160 <20-byte hash> OP_EQUALVERIFY OP_CHECKSIG.
func P2PKH(dest bathash.Hash160) []byte {
	const (
		opDup         = 0x76
		opHash160     = 0xa9
		opEqualVerify = 0x88
		opCheckSig    = 0xac
		pushData20    = 0x14
	)
	out := make([]byte, 0, 25)
	out = append(out, opDup, opHash160, pushData20)
	out = append(out, dest[:]...)
	out = append(out, opEqualVerify, opCheckSig)
	return out
}

// IsP2PKHTo reports whether s is a P2PKH script paying the given destination.
func IsP2PKHTo(s []byte, dest bathash.Hash160) bool {
	want := P2PKH(dest)
	if len(s) != len(want) {
		return false
	}
	for i := range s {
		if s[i] != want[i] {
			return false
		}
	}
	return true
}
