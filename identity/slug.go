package identity

import (
	"regexp"
	"strings"
)

var (
	turkishReplacer = strings.NewReplacer(
		"ı", "i", "İ", "I",
		"ğ", "g", "Ğ", "G",
		"ü", "u", "Ü", "U",
		"ş", "s", "Ş", "S",
		"ö", "o", "Ö", "O",
		"ç", "c", "Ç", "C",
	)
	nonAlnumRegex = regexp.MustCompile(`[^a-zA-Z0-9]+`)
)

// Transliterate folds Turkish letters onto their unaccented Latin forms.
// Other characters are left alone.
func Transliterate(s string) string {
	return turkishReplacer.Replace(s)
}

// Slug turns a category label into a stable snake_case key, e.g.
// "Güvenlik & Site İçi" -> "guvenlik_site_ici". Slug(Slug(x)) == Slug(x).
func Slug(label string) string {
	s := Transliterate(label)
	s = nonAlnumRegex.ReplaceAllString(s, "_")
	return strings.Trim(strings.ToLower(s), "_")
}
