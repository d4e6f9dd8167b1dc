package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteCookieGuide writes instructions for copying the session cookies that
// `auth login` asks for.
func WriteCookieGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "SESSION COOKIE GUIDE")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "chainblock acts with your logged-in browser session. To copy it:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  1. Log in at https://x.com in your browser.")
	fmt.Fprintln(w, "  2. Open Developer Tools (F12, or Cmd+Option+I on macOS).")
	fmt.Fprintln(w, "  3. Chrome/Edge: Application > Cookies > https://x.com")
	fmt.Fprintln(w, "     Firefox:     Storage > Cookies > https://x.com")
	fmt.Fprintln(w, "  4. Copy the values of these cookies:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "       auth_token   40 hex characters")
	fmt.Fprintln(w, "       ct0          the CSRF token, usually 160 hex characters")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Copy only the value, without quotes or the trailing semicolon.")
	fmt.Fprintln(w, "Logging out in the browser invalidates both cookies.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "WARNING: these cookies grant full access to the account. chainblock")
	fmt.Fprintln(w, "keeps them in the system keychain or an encrypted file.")
	fmt.Fprintln(w, rule)
}

// WriteQuickGuide writes the one-line version of WriteCookieGuide
func WriteQuickGuide(w io.Writer) {
	fmt.Fprintln(w, "DevTools > Application > Cookies > x.com: copy auth_token and ct0 (type 'help' for details)")
}
