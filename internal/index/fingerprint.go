package index

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/litstore/internal/record"
)

// DomainFingerprint separates record fingerprints from other hashes.
// The version suffix allows changing the normalization later.
const DomainFingerprint = "litstore/fingerprint/v1"

// Fingerprint returns the content fingerprint of r.
//
// Author, title and year are NFC-normalized, lower-cased, stripped of
// braces and whitespace-collapsed before hashing, so formatting differences
// between sources do not matter.
// Format: SHA256(domain + 0x00 + author + 0x00 + title + 0x00 + year)
func Fingerprint(r *record.Record) (string, error) {
	parts := make([]string, 0, 3)
	for _, key := range []string{record.FieldAuthor, record.FieldTitle, record.FieldYear} {
		v := normalize(r.Fields[key])
		if v == "" {
			return "", ErrNotEnoughData
		}
		parts = append(parts, v)
	}

	h := sha256.New()
	h.Write([]byte(DomainFingerprint))
	for _, p := range parts {
		h.Write([]byte{0x00})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.NewReplacer("{", "", "}", "").Replace(s)
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
