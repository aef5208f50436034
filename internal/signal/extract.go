// Package signal ingests raw social text and extracts tradable asset
// references from it.
package signal

import (
	"regexp"

	"github.com/mr-tron/base58"
)

var (
	// Base58 strings of pubkey length; candidates are shortlisted by the
	// pattern and confirmed by decoding.
	contractPattern = regexp.MustCompile(`[1-9A-HJ-NP-Za-km-z]{43,44}`)
	tickerPattern   = regexp.MustCompile(`\$[A-Z]{2,5}\b`)
)

// ExtractMints returns the deduplicated contract identifiers mentioned
// in text. A match counts only if it decodes to a 32-byte public key.
func ExtractMints(text string) []string {
	var mints []string
	seen := make(map[string]struct{})
	for _, match := range contractPattern.FindAllString(text, -1) {
		if _, ok := seen[match]; ok {
			continue
		}
		raw, err := base58.Decode(match)
		if err != nil || len(raw) != 32 {
			continue
		}
		seen[match] = struct{}{}
		mints = append(mints, match)
	}
	return mints
}

// ExtractTickers returns the deduplicated cashtag symbols in text,
// without the leading dollar sign.
func ExtractTickers(text string) []string {
	var tickers []string
	seen := make(map[string]struct{})
	for _, match := range tickerPattern.FindAllString(text, -1) {
		sym := match[1:]
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		tickers = append(tickers, sym)
	}
	return tickers
}
