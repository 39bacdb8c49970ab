package bus

import (
	"strings"
)

const (
	SubjectPrefix = "streamgate.req."
	// TapSubject matches every chunk and done subject.
	TapSubject = SubjectPrefix + ">"

	doneSuffix = ".done"
)

func ChunkSubject(requestID string) string {
	return SubjectPrefix + requestID
}

func DoneSubject(requestID string) string {
	return SubjectPrefix + requestID + doneSuffix
}

// ParseSubject splits a tap subject into its request id and whether it is the
// done marker.
func ParseSubject(subject string) (requestID string, done bool, ok bool) {
	rest, found := strings.CutPrefix(subject, SubjectPrefix)
	if !found || rest == "" {
		return "", false, false
	}
	if id, isDone := strings.CutSuffix(rest, doneSuffix); isDone {
		return id, true, id != "" && !strings.Contains(id, ".")
	}
	return rest, false, !strings.Contains(rest, ".")
}
