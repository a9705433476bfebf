// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

// CalculateChecksum returns the byte that makes the unsigned sum of data and
// the checksum itself equal to zero modulo 256. data is the control byte,
// command id and payload in wire order; the sync marker and length byte are
// not covered.
func CalculateChecksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return ^sum + 1
}

// VerifyChecksum reports whether data, ending with its checksum byte, sums
// to zero modulo 256.
func VerifyChecksum(data []byte) bool {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum == 0
}
