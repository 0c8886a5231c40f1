package reputation

import "strings"

// Classifier decides whether a recorded failure reason means the host is
// unreachable (DNS / name-resolution class) rather than merely slow.
type Classifier func(reason string) bool

// Failure reasons may be recorded from peers running other stacks, so
// the default covers Go resolver wording and errno-style spellings.
// Exact error text is deployment-dependent; this is best effort only.
var unreachableSignatures = []string{
	"no such host",
	"name or service not known",
	"temporary failure in name resolution",
	"server misbehaving",
	"enotfound",
	"eai_again",
	"getaddrinfo",
}

// UnreachableHost is the default Classifier.
func UnreachableHost(reason string) bool {
	reason = strings.ToLower(reason)
	for _, sig := range unreachableSignatures {
		if strings.Contains(reason, sig) {
			return true
		}
	}
	return false
}
