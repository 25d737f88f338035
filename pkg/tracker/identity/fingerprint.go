package identity

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// Signals are the device traits available for fingerprinting. Any of them
// may be empty.
type Signals struct {
	UserAgent    string
	Language     string
	Platform     string
	Timezone     string
	ScreenWidth  int
	ScreenHeight int
	ColorDepth   int
}

// Fingerprint derives a visitor id from s and salt. The salt keeps
// identical devices apart.
func Fingerprint(s Signals, salt string) string {
	d := xxhash.New()
	for _, part := range []string{
		s.UserAgent, s.Language, s.Platform, s.Timezone,
		fmt.Sprintf("%dx%dx%d", s.ScreenWidth, s.ScreenHeight, s.ColorDepth),
		salt,
	} {
		_, _ = d.WriteString(part)
		_, _ = d.WriteString("|")
	}
	return fmt.Sprintf("v_%016x", d.Sum64())
}

// randomVisitorID is used when durable storage is unavailable.
func randomVisitorID() string {
	return "v_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
