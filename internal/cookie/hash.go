// Package cookie implements the wire format shared with the client-side
// experiment script: the assignment cookie ("__utmx"), the timestamp cookie
// ("__utmxx"), and the domain hash both cookies are keyed by. Both sides must
// produce byte-identical values for the same inputs, so the grammar and the
// hash here cannot drift.
package cookie

// DomainHash computes the 28-bit hash of a domain name used as the leading
// field of both experiment cookies. The empty string hashes to 1.
//
// The function walks the input from the last byte to the first, folding each
// byte into the accumulator and then XOR-ing the top seven bits back down
// whenever they are set. All arithmetic is unsigned 32-bit.
func DomainHash(domain string) uint32 {
	if domain == "" {
		return 1
	}
	var hash uint32
	for i := len(domain) - 1; i >= 0; i-- {
		c := uint32(domain[i])
		hash = ((hash << 6) & 0xFFFFFFF) + c + (c << 14)
		if top := hash & 0xFE00000; top != 0 {
			hash ^= top >> 21
		}
	}
	return hash
}
