package model

import (
	"strings"

	"github.com/google/uuid"
)

// Link is a named directed edge between two part frames. A link's name must
// be unique among the outgoing links of its source frame; it is the
// identifier scripts use to reach the target.
//
// A link may additionally carry a temporary name while a rename is pending:
// scripts that still reference the temp name resolve through it until the
// rename is applied or discarded.
type Link struct {
	sessionID string
	name      string
	tempName  string
	source    *Frame
	target    *Frame
}

func newLink(source, target *Frame, name string) *Link {
	return &Link{
		sessionID: uuid.NewString(),
		name:      name,
		source:    source,
		target:    target,
	}
}

func (l *Link) SessionID() string { return l.sessionID }
func (l *Link) Name() string      { return l.name }
func (l *Link) TempName() string  { return l.tempName }
func (l *Link) Source() *Frame    { return l.source }
func (l *Link) Target() *Frame    { return l.target }

// SetTempName records a pending rename. Empty clears it.
func (l *Link) SetTempName(name string) { l.tempName = name }

// FrameLinkName reports whether the given script attribute name follows the
// frame convention (wrapped in single underscores, e.g. "_flow_") and if so
// returns the inner link name.
func FrameLinkName(attr string) (string, bool) {
	if len(attr) < 3 {
		return "", false
	}
	if !strings.HasPrefix(attr, "_") || !strings.HasSuffix(attr, "_") {
		return "", false
	}
	return attr[1 : len(attr)-1], true
}
