package issue

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/bimcollab/internal/xmltree"
)

// ActionImport marks the system comment appended to every imported issue.
const ActionImport = "bcf_import"

// Issue is a BCF topic with its comments and viewpoints.
type Issue struct {
	ID            uuid.UUID         `json:"id" yaml:"id"`
	Name          string            `json:"name" yaml:"name"`
	Description   string            `json:"desc,omitempty" yaml:"desc,omitempty"`
	Status        Status            `json:"status" yaml:"status"`
	Priority      Priority          `json:"priority,omitempty" yaml:"priority,omitempty"`
	TopicType     string            `json:"topic_type,omitempty" yaml:"topic_type,omitempty"`
	Owner         string            `json:"owner" yaml:"owner"`
	Created       time.Time         `json:"created" yaml:"created"`
	DueDate       *time.Time        `json:"due_date,omitempty" yaml:"due_date,omitempty"`
	AssignedRoles []string          `json:"assigned_roles,omitempty" yaml:"assigned_roles,omitempty"`
	Comments      []Comment         `json:"comments,omitempty" yaml:"comments,omitempty"`
	Viewpoints    []*Viewpoint      `json:"viewpoints,omitempty" yaml:"viewpoints,omitempty"`
	Extras        Extras            `json:"extras,omitempty" yaml:"extras,omitempty"`
	Origin        *Origin           `json:"origin,omitempty" yaml:"origin,omitempty"`
	Thumbnail     *ThumbnailRequest `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
}

// Origin names the model an issue was raised against when it differs from
// the model being exported (a federation member, for instance).
type Origin struct {
	Namespace string `json:"namespace" yaml:"namespace"`
	Model     string `json:"model" yaml:"model"`
}

// ThumbnailRequest asks the image collaborator for a thumbnail cut from a
// viewpoint screenshot. Ref is the placeholder the issue points at until the
// thumbnail exists.
type ThumbnailRequest struct {
	Ref           string    `json:"ref" yaml:"ref"`
	ViewpointGUID uuid.UUID `json:"viewpoint_guid" yaml:"viewpoint_guid"`
}

// Comment is one entry of an issue's discussion.
type Comment struct {
	GUID      uuid.UUID  `json:"guid" yaml:"guid"`
	Created   time.Time  `json:"created" yaml:"created"`
	Owner     string     `json:"owner" yaml:"owner"`
	Text      string     `json:"comment,omitempty" yaml:"comment,omitempty"`
	Viewpoint *uuid.UUID `json:"viewpoint,omitempty" yaml:"viewpoint,omitempty"`
	Sealed    bool       `json:"sealed,omitempty" yaml:"sealed,omitempty"`
	Action    *Action    `json:"action,omitempty" yaml:"action,omitempty"`
}

// Action marks a comment as generated by the system.
type Action struct {
	Property string `json:"property" yaml:"property"`
	From     string `json:"from,omitempty" yaml:"from,omitempty"`
	To       string `json:"to,omitempty" yaml:"to,omitempty"`
}

// IsSystem reports whether the comment was generated rather than written.
func (c Comment) IsSystem() bool {
	return c.Action != nil && c.Action.Property != ""
}

// UserComments returns the comments that are not system generated.
func (i *Issue) UserComments() []Comment {
	var out []Comment
	for _, c := range i.Comments {
		if !c.IsSystem() {
			out = append(out, c)
		}
	}
	return out
}

// Extras holds BCF elements with no internal field, keyed by element name.
// Keys starting with an underscore are internal flags and never serialized.
type Extras map[string][]*xmltree.Element

// Text returns the trimmed text of the first element stored under name.
func (x Extras) Text(name string) (string, bool) {
	els := x[name]
	if len(els) == 0 || els[0] == nil {
		return "", false
	}
	return strings.TrimSpace(els[0].Text), true
}

// SetText stores a single text element under name.
func (x Extras) SetText(name, text string) {
	x[name] = []*xmltree.Element{xmltree.Leaf(name, text)}
}

// Add appends elements under their own names.
func (x Extras) Add(els ...*xmltree.Element) {
	for _, el := range els {
		x[el.Name] = append(x[el.Name], el)
	}
}

// Flag reports whether an internal flag is set.
func (x Extras) Flag(name string) bool {
	v, ok := x.Text(name)
	return ok && v == "true"
}

// SetFlag sets an internal flag.
func (x Extras) SetFlag(name string) {
	x.SetText(name, "true")
}

// Ordered returns the serializable elements, first in the given order and
// then the remaining keys alphabetically.
func (x Extras) Ordered(order []string, skip ...string) []*xmltree.Element {
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}
	seen := make(map[string]bool, len(x))
	var out []*xmltree.Element
	emit := func(name string) {
		if seen[name] || skipped[name] || strings.HasPrefix(name, "_") {
			return
		}
		seen[name] = true
		for _, el := range x[name] {
			if el != nil {
				out = append(out, el.Clone())
			}
		}
	}
	for _, name := range order {
		emit(name)
	}
	rest := make([]string, 0, len(x))
	for name := range x {
		rest = append(rest, name)
	}
	sort.Strings(rest)
	for _, name := range rest {
		emit(name)
	}
	return out
}
