package threats

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

// ContactInfo is where a removal request should be sent.
type ContactInfo struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

var removalTimes = map[Difficulty]string{
	DifficultyEasy:     "1-3 days",
	DifficultyMedium:   "1-2 weeks",
	DifficultyHard:     "2-4 weeks",
	DifficultyVeryHard: "1-3 months",
}

// EstimatedRemovalTime maps a difficulty onto a human-readable range.
func EstimatedRemovalTime(d Difficulty) string {
	if t, ok := removalTimes[d]; ok {
		return t
	}
	return "1-2 weeks"
}

// siteSlug lowercases a site name, drops any domain suffix and keeps only
// letters and digits.
func siteSlug(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	if i := strings.Index(lower, "."); i > 0 {
		lower = lower[:i]
	}

	var b strings.Builder
	for _, r := range lower {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "site"
	}
	return b.String()
}

func siteHash(name string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(name)))
	return h.Sum32()
}

// RemovalContact derives method-specific contact details from the site name.
func RemovalContact(method RemovalMethod, siteName string) ContactInfo {
	slug := siteSlug(siteName)
	h := siteHash(siteName)

	switch method {
	case MethodEmailRequest:
		return ContactInfo{Type: "email", Value: fmt.Sprintf("privacy@%s.com", slug)}
	case MethodContactRequired:
		return ContactInfo{Type: "phone", Value: fmt.Sprintf("1-800-%03d-%04d", 200+h%800, (h/800)%10000)}
	case MethodLegalRequired:
		return ContactInfo{
			Type:  "mail",
			Value: fmt.Sprintf("Legal Department, %s, PO Box %d, Wilmington, DE 19801", siteName, 1000+h%9000),
		}
	case MethodManualProcess:
		return ContactInfo{Type: "url", Value: fmt.Sprintf("https://www.%s.com/settings/privacy", slug)}
	default:
		return ContactInfo{Type: "url", Value: fmt.Sprintf("https://www.%s.com/opt-out", slug)}
	}
}

// RemovalSteps returns ordered instructions for filing a removal with siteName.
func RemovalSteps(method RemovalMethod, siteName string) []string {
	contact := RemovalContact(method, siteName).Value

	switch method {
	case MethodEmailRequest:
		return []string{
			fmt.Sprintf("Email a removal request to %s", contact),
			"Include your full name, current address and the URL of the listing",
			"Ask for deletion under applicable privacy law (CCPA or GDPR)",
			"Follow up if there is no response within 30 days",
		}
	case MethodContactRequired:
		return []string{
			fmt.Sprintf("Call %s support at %s", siteName, contact),
			"Provide the listing details and verify your identity",
			"Request permanent suppression of your record",
			"Write down the reference number for follow-up",
		}
	case MethodLegalRequired:
		return []string{
			"Capture screenshots of the exposed information",
			fmt.Sprintf("Send a written deletion demand to %s", contact),
			"Cite the privacy statutes of your state of residence",
			"Consult a privacy attorney if the request is refused",
		}
	case MethodManualProcess:
		return []string{
			fmt.Sprintf("Sign in to your %s account", siteName),
			fmt.Sprintf("Open the privacy settings at %s", contact),
			"Remove or hide the exposed information",
			"Request deletion of the account data if it is no longer needed",
		}
	default:
		return []string{
			fmt.Sprintf("Open the %s opt-out page at %s", siteName, contact),
			"Search for your listing by name and state",
			"Select your record and submit the removal form",
			"Confirm the request from the verification email",
			"Check again in 7 days to confirm the listing is gone",
		}
	}
}
