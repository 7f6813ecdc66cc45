package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/gasandbox/sandbox-server/internal/game/zone"
)

// Checksum returns a SHA-256 over a canonical rendering of the snapshot. Zone order and
// card order within each zone are significant; definition metadata other than the id is not.
func Checksum(s GameState) string {
	sum := sha256.Sum256(canonical(s))
	return hex.EncodeToString(sum[:])
}

func canonical(s GameState) []byte {
	var buf bytes.Buffer
	for _, z := range zone.All() {
		fmt.Fprintf(&buf, "ZONE:%s|%d\n", z, len(s.zones[z]))
		for _, c := range s.zones[z] {
			fmt.Fprintf(&buf, "  CARD:%s|%s|%t\n", c.UID, c.ID, c.Rested)
		}
	}
	return buf.Bytes()
}
