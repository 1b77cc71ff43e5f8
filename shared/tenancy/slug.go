package tenancy

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugLength is the longest slug accepted, in runes
const MaxSlugLength = 200

// ErrInvalidSlug is returned for input that cannot form a slug
var ErrInvalidSlug = errors.New("invalid slug")

// letters that do not decompose into a base letter plus marks
var foldReplacer = strings.NewReplacer(
	"æ", "ae", "Æ", "ae",
	"ø", "o", "Ø", "o",
	"œ", "oe", "Œ", "oe",
	"ß", "ss",
	"đ", "d", "Đ", "d",
	"ł", "l", "Ł", "l",
	"þ", "th", "Þ", "th",
)

// foldASCII strips diacritics: "Café Åre" becomes "Cafe Are"
func foldASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, foldReplacer.Replace(s))
	if err != nil {
		return s
	}
	return folded
}

// Normalize applies the slug rule: ASCII-fold, lowercase, collapse every run of characters
// outside [a-z0-9] into one hyphen and trim hyphens from both ends.
func Normalize(raw string) (string, error) {
	if utf8.RuneCountInString(raw) > MaxSlugLength {
		return "", ErrInvalidSlug
	}
	for _, r := range raw {
		if unicode.IsControl(r) {
			return "", ErrInvalidSlug
		}
	}

	folded := strings.ToLower(foldASCII(raw))

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	slug := b.String()
	if slug == "" {
		return "", ErrInvalidSlug
	}
	return slug, nil
}

// DeriveSlug builds the base slug for a business name, cut short enough to carry a
// collision suffix
func DeriveSlug(businessName string) (string, error) {
	name := []rune(strings.TrimSpace(businessName))
	if len(name) > MaxSlugLength {
		name = name[:MaxSlugLength]
	}
	slug, err := Normalize(string(name))
	if err != nil {
		return "", err
	}
	if len(slug) > MaxSlugLength-suffixReserve {
		slug = strings.TrimRight(slug[:MaxSlugLength-suffixReserve], "-")
	}
	return slug, nil
}
