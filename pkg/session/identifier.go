package session

import (
	cryptorand "crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

var identityEntropy = ulid.Monotonic(cryptorand.Reader, 0)

// NewIdentity generates a participant identity for one session. Identities
// are client-generated, stable for the session's lifetime, and not verified
// for global uniqueness; a collision between two participants is an accepted
// risk of this scheme.
func NewIdentity() string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), identityEntropy).String()
	return fmt.Sprintf("user_%s", strings.ToLower(id[len(id)-8:]))
}
