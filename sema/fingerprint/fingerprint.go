// Package fingerprint provides a fixed-size bloom filter over 64-bit name
// hashes, used to skip member lookups that cannot succeed.
//
// A FingerPrint answers "might this name be declared anywhere in the
// hierarchy below?" with no false negatives: if Contains returns false the
// name is definitely absent, if it returns true the name may or may not be
// present. Bits are never cleared; shrinking the represented set requires
// recomputing a fresh FingerPrint from scratch.
package fingerprint

// NumBits is the fixed capacity of a FingerPrint in bits.
const NumBits = 512

// NumWords is the number of 64-bit words backing a FingerPrint.
const NumWords = NumBits / 64

// mask selects the bit index from a hash value.
const mask = NumBits - 1

// FingerPrint is a fixed-length bit array. The zero value is the empty set.
type FingerPrint [NumWords]uint64

// Include sets the bit derived from the given name hash.
func (fp *FingerPrint) Include(hash uint64) {
	bit := hash & mask
	fp[bit/64] |= 1 << (bit % 64)
}

// IncludeAll unions another fingerprint into this one, word by word.
func (fp *FingerPrint) IncludeAll(other *FingerPrint) {
	for i := range fp {
		fp[i] |= other[i]
	}
}

// Contains reports whether the bit for the given name hash is set.
// A false result is definitive; a true result may be a false positive.
func (fp *FingerPrint) Contains(hash uint64) bool {
	bit := hash & mask
	return fp[bit/64]&(1<<(bit%64)) != 0
}

// IsEmpty reports whether no bit is set.
func (fp *FingerPrint) IsEmpty() bool {
	for _, w := range fp {
		if w != 0 {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Name hashing
// ---------------------------------------------------------------------------

// FNV-1a constants (64-bit).
const (
	fnvOffset uint64 = 14695981039346656037
	fnvPrime  uint64 = 1099511628211
)

// HashString returns the 64-bit FNV-1a hash of a name.
//
// This is the hash fed to Include and Contains. It is computed inline rather
// than through hash/fnv to avoid an allocation per name on the intern path.
func HashString(s string) uint64 {
	h := fnvOffset
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime
	}
	return h
}
