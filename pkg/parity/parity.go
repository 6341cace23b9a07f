// Package parity computes and checks the parity bit of the FSK link frames.
package parity

// Bit returns the XOR fold of all 8 bits of b, i.e. true if b has an odd number of 1 bits.
// A frame carries this value as its parity bit.
func Bit(b byte) bool {
	b ^= b >> 4
	b ^= b >> 2
	b ^= b >> 1
	return b&1 == 1
}

// IsOddParityValid reports whether the received parity bit matches the parity computed over b.
func IsOddParityValid(b byte, received bool) bool {
	return Bit(b) == received
}
