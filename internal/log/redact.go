package log

import "strings"

// RedactURL keeps only scheme and host of u so tokens in paths or query
// strings never reach the logs.
//
//	https://example.com/path/private.ics?token=abcd -> https://example.com/...(redacted)
func RedactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "url://...(redacted)"
	}
	i += 3

	j := i
	for j < len(u) && u[j] != '/' && u[j] != '?' {
		j++
	}

	return u[:j] + redactedSuffix
}
