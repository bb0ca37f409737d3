// Package taxid handles the Brazilian individual taxpayer number (CPF).
package taxid

import "strings"

const (
	Length    = 11
	MaskedLen = 14
)

// Strip keeps every ASCII digit of s.
func Strip(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Digits keeps the ASCII digits of s, at most 11 of them, the way the input field does.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < '0' || r > '9' {
			continue
		}
		if b.Len() == Length {
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Mask formats a complete CPF as ###.###.###-##. Partial input is returned as bare digits.
func Mask(s string) string {
	d := Digits(s)
	if len(d) != Length {
		return d
	}
	return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]
}

// Complete reports whether s carries exactly 11 digits.
func Complete(s string) bool {
	return len(Strip(s)) == Length
}

// Valid checks both verification digits. Repeated-digit numbers are rejected.
func Valid(s string) bool {
	d := Strip(s)
	if len(d) != Length {
		return false
	}
	if strings.Count(d, d[:1]) == Length {
		return false
	}
	return checkDigit(d[:9]) == d[9] && checkDigit(d[:10]) == d[10]
}

func checkDigit(prefix string) byte {
	sum := 0
	weight := len(prefix) + 1
	for i := 0; i < len(prefix); i++ {
		sum += int(prefix[i]-'0') * weight
		weight--
	}
	rest := sum % 11
	if rest < 2 {
		return '0'
	}
	return byte('0' + 11 - rest)
}
