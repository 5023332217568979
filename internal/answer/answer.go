// Package answer computes the challenge answers for computed lock-stacks.
//
// Every computed lock resolves to a 3-digit uppercase hex string derived
// from a content payload and the player's handle. Binding the handle into
// the checksum makes answers per-player: a value copied from someone else's
// run will not open the same lock here.
package answer

import "fmt"

// Modulus bounds the checksum to the 3-hex-digit range.
const Modulus = 4096

// Checksum sums the UTF-8 byte values of text modulo 4096.
func Checksum(text string) int {
	sum := 0
	for _, b := range []byte(text) {
		sum += int(b)
	}
	return sum % Modulus
}

// Hex3 clamps n to [0, 4095] and renders it as 3-digit uppercase hex,
// zero-padded.
func Hex3(n int) string {
	if n < 0 {
		n = 0
	}
	if n > Modulus-1 {
		n = Modulus - 1
	}
	return fmt.Sprintf("%03X", n)
}

// Expected returns the canonical answer for a computed lock: the checksum
// of the payload with the player handle bound in.
func Expected(payload, handle string) string {
	return Hex3(Checksum(payload + "|HANDLE=" + handle))
}
