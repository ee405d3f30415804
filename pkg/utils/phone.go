package utils

import "strings"

// FormatWhatsAppNumber turns a local Indonesian number into the +62 form used
// by wa.me links. Numbers already carrying a country code are left alone.
func FormatWhatsAppNumber(phone string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(phone) {
		if (r >= '0' && r <= '9') || (r == '+' && b.Len() == 0) {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case digits == "":
		return ""
	case strings.HasPrefix(digits, "+"):
		return digits
	case strings.HasPrefix(digits, "0"):
		return "+62" + digits[1:]
	case strings.HasPrefix(digits, "62"):
		return "+" + digits
	default:
		return "+62" + digits
	}
}
