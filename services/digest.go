package services

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
)

// Digest bildet SHA-1 über die Textform aller Argumente in der gegebenen Reihenfolge.
func Digest(args ...any) string {
	h := sha1.New()
	for _, arg := range args {
		io.WriteString(h, fmt.Sprint(arg))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RecordKey identifiziert einen kanonischen Zitatinhalt auf genau einem Artikel.
func RecordKey(domain string, pageID int64, canonical string) string {
	return Digest(domain, pageID, canonical)
}

// CanonicalKey identifiziert kanonischen Inhalt artikelübergreifend.
func CanonicalKey(canonical string) string { return Digest(canonical) }

// RawKey identifiziert eine exakte Textvariante.
func RawKey(raw string) string { return Digest(raw) }
