package gitconfig

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxMessageLength = 300

var homePathRegex = regexp.MustCompile(`(/Users|/home)/[^/\s'"]+`)

// sanitize turns git's stderr into a message that does not reveal the local
// filesystem layout.
func sanitize(stderr []byte, exitCode int, home string) string {
	msg := strings.TrimSpace(string(stderr))
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "permission denied"):
		return "permission denied"
	case strings.Contains(lower, "no such file or directory"):
		return "file not found"
	case msg == "":
		return fmt.Sprintf("exited with status %d", exitCode)
	}

	if home != "" && home != "/" {
		msg = strings.ReplaceAll(msg, home, "~")
	}
	msg = homePathRegex.ReplaceAllString(msg, "~")

	if utf8.RuneCountInString(msg) > maxMessageLength {
		msg = string([]rune(msg)[:maxMessageLength]) + "..."
	}
	return msg
}
