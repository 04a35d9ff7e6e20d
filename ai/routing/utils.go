package routing

import (
	"github.com/hrygo/concierge/ai/internal/strutil"
)

// truncate truncates a string to maxLen characters (Unicode-safe).
func truncate(s string, maxLen int) string {
	return strutil.Truncate(s, maxLen)
}
