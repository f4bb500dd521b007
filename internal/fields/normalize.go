package fields

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer cleans a captured group. It returns false when the capture should
// be treated as no match.
type Normalizer func(raw string) (string, bool)

var normalizers = map[string]Normalizer{
	"trim":     normalizeTrim,
	"collapse": normalizeCollapse,
	"upper":    normalizeUpper,
	"amount":   normalizeAmount,
}

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\u00a0", " ", "\u202f", " ")

// NormalizeText prepares OCR output for matching: unified line endings,
// plain spaces and NFC-composed accents so "Razón" matches however it was encoded.
func NormalizeText(text string) string {
	if text == "" {
		return text
	}
	return norm.NFC.String(lineEndings.Replace(text))
}

func normalizeTrim(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	return s, s != ""
}

func normalizeCollapse(raw string) (string, bool) {
	s := strings.Join(strings.Fields(raw), " ")
	return s, s != ""
}

func normalizeUpper(raw string) (string, bool) {
	s, ok := normalizeCollapse(raw)
	return strings.ToUpper(s), ok
}

var amountNoise = strings.NewReplacer("$", "", ",", "", " ", "", "\t", "", "\n", "")

// MaxAmountIntegerDigits matches the NUMERIC(14,2) total_amount column.
const MaxAmountIntegerDigits = 12

var amountCeiling = decimal.New(1, MaxAmountIntegerDigits)

// normalizeAmount strips the currency symbol and thousands separators and
// keeps the value only when it parses as a decimal that fits the store.
func normalizeAmount(raw string) (string, bool) {
	s := amountNoise.Replace(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", false
	}
	d = d.Round(2)
	if d.Abs().GreaterThanOrEqual(amountCeiling) {
		return "", false
	}
	return d.StringFixed(2), true
}

// foldKey is the comparison key for reject lists: accents removed, whitespace
// collapsed, upper case.
func foldKey(s string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(strings.Join(strings.Fields(out), " "))
}
