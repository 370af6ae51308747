package runner

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/leapstack-labs/queryrunner/pkg/core"
)

// Annotation is the tracing comment a host prepends to queries for runners
// whose AnnotateQuery returns true.
type Annotation struct {
	Username  string
	QueryID   string
	RequestID string
}

// NewAnnotation builds an annotation for user. An empty queryID means an
// ad-hoc query. A fresh request ID is generated for every call.
func NewAnnotation(user *core.User, queryID string) Annotation {
	if queryID == "" {
		queryID = "adhoc"
	}
	username := user.DisplayName()
	if username == "" {
		username = "system"
	}
	return Annotation{
		Username:  username,
		QueryID:   queryID,
		RequestID: uuid.NewString(),
	}
}

// Apply returns query prefixed with the annotation comment.
func (a Annotation) Apply(query string) string {
	return fmt.Sprintf("/* Username: %s, Query ID: %s, Request ID: %s */ %s",
		sanitizeComment(a.Username), sanitizeComment(a.QueryID), sanitizeComment(a.RequestID), query)
}

// sanitizeComment drops every '*' and '/' so no value can open or close the
// comment, whatever the leftover characters would join into.
func sanitizeComment(s string) string {
	return strings.NewReplacer("*", "", "/", "").Replace(s)
}
