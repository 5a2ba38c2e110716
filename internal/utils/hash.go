package utils

import (
	"fmt"
	"hash/fnv"
)

func HashStringToUint64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// ShortHash returns a compact hex fragment of the fnv hash, used to
// disambiguate derived identifiers that would otherwise collide.
func ShortHash(s string) string {
	return fmt.Sprintf("%06x", HashStringToUint64(s)&0xffffff)
}
