// Package uid derives DICOM UIDs from UUIDs using the 2.25 root
// (PS3.5 Annex B.2).
package uid

import (
	"crypto/md5"
	"encoding/json"
	"math/big"

	"github.com/google/uuid"
)

// Root is the UID root for UUID derived identifiers
const Root = "2.25."

// New returns a random UID of the form 2.25.<uuid as decimal>
func New() string {
	return FromUUID(uuid.New())
}

// FromUUID renders a UUID as a 2.25 UID
func FromUUID(u uuid.UUID) string {
	return Root + new(big.Int).SetBytes(u[:]).String()
}

// Hash returns a UID that is stable for the JSON form of value, empty if
// value cannot be marshaled
func Hash(value any) string {
	raw, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	sum := md5.Sum(raw)
	u, err := uuid.FromBytes(sum[:])
	if err != nil {
		return ""
	}
	return FromUUID(u)
}

// Derive returns a new UID that is stable for a source UID and a reason,
// such as the SOP Instance UID of a lossy copy of an instance
func Derive(source, reason string) string {
	return Hash([2]string{source, reason})
}
