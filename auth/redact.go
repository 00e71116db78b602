package auth

// Redact returns a log-safe form of a credential: the first and last two
// characters with the middle elided. Short credentials are fully masked.
func Redact(credential string) string {
	if credential == "" {
		return ""
	}
	if len(credential) <= 8 {
		return "****"
	}
	return credential[:2] + "****" + credential[len(credential)-2:]
}
