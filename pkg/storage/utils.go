package storage

import "github.com/cespare/xxhash/v2"

func hashKey(key string) uint32 {
	return uint32(xxhash.Sum64String(key))
}

// nextPow2 округляет n вверх до степени двойки.
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
