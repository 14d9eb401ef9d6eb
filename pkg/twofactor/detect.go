package twofactor

import (
	"regexp"
	"strings"
)

// Method is one second-factor resolution path.
type Method string

const (
	MethodTOTP       Method = "totp"
	MethodSMS        Method = "sms"
	MethodBackupCode Method = "backup_code"
)

// Challenge describes a detected second-factor prompt.
type Challenge struct {
	Method Method
	// PhoneHint is the masked phone number shown on SMS prompts, if any.
	PhoneHint string
	// BackupCodesAvailable is set when the page offers backup-code entry.
	BackupCodesAvailable bool
}

// challengePathRe gates detection on the URL: content-only matches produce
// false positives on unrelated pages that merely mention security codes.
var challengePathRe = regexp.MustCompile(`(?i)/accounts/login/two_factor|/two_factor|/challenge/`)

// phoneHintRe matches masked phone numbers like "+1 *** *** **67" or
// "•••• 1234" variants rendered with asterisks.
var phoneHintRe = regexp.MustCompile(`\+?\d{0,3}[\s._-]*\*{2,}[\s*._-]*\d{2,4}`)

// totpKeywords indicate an authentication-app prompt. Checked before the
// SMS default: TOTP pages frequently mention a fallback to SMS, so the more
// specific signal must win.
var totpKeywords = []string{
	"authentication app",
	"authenticator app",
	"security code from your app",
	"code generator",
	"totp",
}

var backupKeywords = []string{
	"backup code",
	"recovery code",
}

// DetectChallenge inspects page content and URL for a second-factor prompt.
// Returns nil when the URL is not a known challenge path.
func DetectChallenge(pageContent, pageURL string) *Challenge {
	if !challengePathRe.MatchString(pageURL) {
		return nil
	}

	lower := strings.ToLower(pageContent)

	ch := &Challenge{Method: MethodSMS}
	for _, kw := range backupKeywords {
		if strings.Contains(lower, kw) {
			ch.BackupCodesAvailable = true
			break
		}
	}
	for _, kw := range totpKeywords {
		if strings.Contains(lower, kw) {
			ch.Method = MethodTOTP
			return ch
		}
	}

	if hint := phoneHintRe.FindString(pageContent); hint != "" {
		ch.PhoneHint = strings.TrimSpace(hint)
	}
	return ch
}
