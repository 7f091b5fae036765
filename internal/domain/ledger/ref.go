package ledger

import "github.com/google/uuid"

var deltaRefSpace = uuid.MustParse("6f1c2a4e-8d3b-4b7a-9e2f-1a5c7d9b3e80")

// DeltaRef is a fixed-size key for a named delta, derived from its
// normalized name. Button payloads carry it instead of the name, whose UTF-8
// length can exceed the platform's callback data limit.
func DeltaRef(name string) string {
	return uuid.NewSHA1(deltaRefSpace, []byte(NormalizeDeltaName(name))).String()
}
