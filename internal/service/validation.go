package service

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var emailPattern = regexp.MustCompile(`^\w+([\.-]?\w+)*@\w+([\.-]?\w+)*(\.\w{2,3})+$`)

const (
	maxFullNameLen = 100
	maxPhoneLen    = 30
	maxTimezoneLen = 50
	minPasswordLen = 6
)

func isValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// truncateRunes corta s a n runas sin partir caracteres multibyte.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func emailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
