package executor

import (
	"net/url"
	"regexp"
	"strconv"
)

var (
	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)
	// urlPattern matches the local addresses dev servers print when they
	// start listening (vite, next, express and friends).
	urlPattern = regexp.MustCompile(`https?://(?:localhost|127\.0\.0\.1|0\.0\.0\.0|\[::1?\])(?::\d+)?[^\s]*`)
)

// detectServerURL reports the port and preview URL announced by line.
// Wildcard hosts are rewritten to localhost so the URL is browsable.
func detectServerURL(line string) (int, string, bool) {
	match := urlPattern.FindString(ansiPattern.ReplaceAllString(line, ""))
	if match == "" {
		return 0, "", false
	}
	u, err := url.Parse(match)
	if err != nil {
		return 0, "", false
	}

	port := 80
	if u.Scheme == "https" {
		port = 443
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, "", false
		}
		port = n
	}

	switch u.Hostname() {
	case "0.0.0.0", "::", "::1":
		u.Host = "localhost:" + strconv.Itoa(port)
	}
	return port, u.String(), true
}
