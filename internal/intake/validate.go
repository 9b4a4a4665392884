package intake

import (
	"html"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"qrintake/internal/errcode"
)

const (
	maxNameLength   = 255
	maxEmailLength  = 254
	maxReasonLength = 5000
)

// plainText drops markup so names and reasons render safely in the dashboard.
var plainText = bluemonday.StrictPolicy()

const maxStripPasses = 8

// stripMarkup returns s as plain text. Entities are decoded before each
// sanitize pass so encoded tags cannot survive; it stops once a pass changes nothing.
func stripMarkup(s string) string {
	for i := 0; i < maxStripPasses; i++ {
		clean := html.UnescapeString(plainText.Sanitize(html.UnescapeString(s)))
		if clean == s {
			return strings.TrimSpace(clean)
		}
		s = clean
	}
	return strings.TrimSpace(plainText.Sanitize(s))
}

// validateFields normalizes f in place and returns the first violated rule.
func validateFields(f *Fields, allowedTypes map[string]struct{}) error {
	f.Name = stripMarkup(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Reason = stripMarkup(f.Reason)
	f.ApplicationType = strings.TrimSpace(f.ApplicationType)

	if f.Name == "" {
		return errcode.Validation("name is required")
	}
	if utf8.RuneCountInString(f.Name) > maxNameLength {
		return errcode.Validation("name is too long")
	}
	if !validEmail(f.Email) {
		return errcode.Validation("email is invalid")
	}
	if _, ok := allowedTypes[f.ApplicationType]; !ok {
		return errcode.Validation("applicationType is not supported")
	}
	if utf8.RuneCountInString(f.Reason) > maxReasonLength {
		return errcode.Validation("reason is too long")
	}
	return nil
}

// validEmail accepts a bare local@domain.tld address.
func validEmail(email string) bool {
	if email == "" || len(email) > maxEmailLength {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return false
	}
	domain := email[at+1:]
	dot := strings.LastIndexByte(domain, '.')
	return dot > 0 && dot < len(domain)-1
}
