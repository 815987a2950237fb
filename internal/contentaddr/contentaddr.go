// Package contentaddr derives the cross-device document id for a target.
//
// Two devices that independently create a target for the same problem must
// compute the same document id, so the digest contract is fixed: SHA-256
// over the exact UTF-8 bytes of the problem link, lower-case hex, truncated
// to the first 20 hex characters (10 digest bytes). Changing any part of
// this breaks convergence with every deployed client.
package contentaddr

import (
	"crypto/sha256"
	"encoding/hex"
	"log"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// AddressLen is the length of a content-derived document id in hex chars.
const AddressLen = 20

// Address returns the content address for a problem link. The link is hashed
// byte-for-byte; no trimming or case folding happens here, callers normalize
// before storing.
func Address(problemLink string) string {
	sum := sha256.Sum256([]byte(problemLink))
	return hex.EncodeToString(sum[:])[:AddressLen]
}

// DocID picks the document key for a target. Targets with a problem link
// converge across devices by content address. Link-less targets (topics) key
// by their device-local id and therefore sync as independent per-device
// rows; a target with neither gets a random id.
func DocID(problemLink string, localID int64) string {
	if problemLink != "" {
		return Address(problemLink)
	}
	if localID > 0 {
		return strconv.FormatInt(localID, 10)
	}
	return uuid.New().String()
}

// Sanitize is the last-resort key transform for links that cannot be hashed
// into a usable document id on some client. It strips everything but
// alphanumerics. Keys produced here do NOT match Address output, so targets
// keyed this way will not converge with digest-keyed copies.
func Sanitize(problemLink string) string {
	var b strings.Builder
	for _, r := range problemLink {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	log.Printf("contentaddr: sanitize fallback used for %q, key will not converge with digest keys", problemLink)
	return b.String()
}
