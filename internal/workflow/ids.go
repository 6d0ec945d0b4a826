package workflow

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// newCertificateID generates an exemption certificate identifier. Issued at
// most once per report; repeated determination reads return the stored value.
func newCertificateID() string {
	b := make([]byte, 6)
	rand.Read(b)
	return fmt.Sprintf("EC-%s", strings.ToUpper(hex.EncodeToString(b)))
}

// newReceiptID generates a filing receipt identifier in the registry's
// BSA-prefixed format.
func newReceiptID() string {
	b := make([]byte, 4)
	rand.Read(b)
	return fmt.Sprintf("BSA-%d-%s", time.Now().UnixNano(), strings.ToUpper(hex.EncodeToString(b)))
}
