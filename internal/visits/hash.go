package visits

import (
	"crypto/sha256"
	"encoding/hex"
)

// AnonymizeIP hashes an IP address with the instance salt. The raw address
// is never stored when anonymization is enabled - only this digest.
func AnonymizeIP(ipAddress, salt string) string {
	hash := sha256.Sum256([]byte(ipAddress + salt))
	return hex.EncodeToString(hash[:])
}
