package bcf

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/bimcollab/internal/issue"
	"github.com/randalmurphal/bimcollab/internal/xmltree"
)

// NoDescription is written when an issue has no description.
const NoDescription = "(No Description)"

const (
	xsiNS = "http://www.w3.org/2001/XMLSchema-instance"
	xsdNS = "http://www.w3.org/2001/XMLSchema"
)

// topicOrder is the BCF 2.1 sequence of Topic children.
var topicOrder = []string{
	"ReferenceLink", "Title", "Priority", "Index", "Labels", "CreationDate",
	"CreationAuthor", "ModifiedDate", "ModifiedAuthor", "DueDate", "AssignedTo",
	"Stage", "Description", "BimSnippet", "DocumentReference", "RelatedTopic",
}

// markupLevelExtras live beside Topic rather than inside it.
var markupLevelExtras = map[string]bool{"Header": true}

// ViewpointRef ties a viewpoint GUID to its files inside the topic folder.
type ViewpointRef struct {
	GUID      uuid.UUID
	Viewpoint string
	Snapshot  string
}

// FormatDate renders t the way BCF dates are written.
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02",
}

// ParseDate accepts the ISO-8601 variants found in BCF files.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// BuildMarkup builds markup.bcf for iss. refs lists the viewpoint files
// written for the issue, in order.
func BuildMarkup(iss *issue.Issue, refs []ViewpointRef) (*xmltree.Element, error) {
	if iss == nil {
		return nil, fmt.Errorf("build markup: nil issue")
	}
	extras := iss.Extras
	if extras == nil {
		extras = issue.Extras{}
	}

	root := xmltree.New("Markup").
		SetAttr("xmlns:xsi", xsiNS).
		SetAttr("xmlns:xsd", xsdNS)
	for _, el := range extras["Header"] {
		root.Add(el.Clone())
	}

	topic := xmltree.New("Topic").
		SetAttr("Guid", iss.ID.String()).
		SetAttr("TopicStatus", string(iss.Status))
	if iss.TopicType != "" {
		topic.SetAttr("TopicType", iss.TopicType)
	}

	own := map[string]*xmltree.Element{
		"Title":          xmltree.Leaf("Title", iss.Name),
		"CreationDate":   xmltree.Leaf("CreationDate", FormatDate(iss.Created)),
		"CreationAuthor": xmltree.Leaf("CreationAuthor", iss.Owner),
	}
	if iss.Priority != "" {
		own["Priority"] = xmltree.Leaf("Priority", string(iss.Priority))
	}
	if iss.DueDate != nil {
		own["DueDate"] = xmltree.Leaf("DueDate", FormatDate(*iss.DueDate))
	}
	if len(iss.AssignedRoles) > 0 {
		own["AssignedTo"] = xmltree.Leaf("AssignedTo", strings.Join(iss.AssignedRoles, ","))
	}
	desc := iss.Description
	if desc == "" {
		desc = NoDescription
	}
	own["Description"] = xmltree.Leaf("Description", desc)

	for _, name := range topicOrder {
		if el, ok := own[name]; ok {
			topic.Add(el)
			continue
		}
		for _, el := range extras[name] {
			topic.Add(el.Clone())
		}
	}
	skip := append([]string{}, topicOrder...)
	for name := range markupLevelExtras {
		skip = append(skip, name)
	}
	topic.Add(extras.Ordered(nil, skip...)...)
	root.Add(topic)

	for _, c := range iss.UserComments() {
		root.Add(buildComment(c))
	}

	for _, ref := range refs {
		vps := xmltree.New("Viewpoints").SetAttr("Guid", ref.GUID.String())
		vps.AddLeaf("Viewpoint", ref.Viewpoint)
		if ref.Snapshot != "" {
			vps.AddLeaf("Snapshot", ref.Snapshot)
		}
		root.Add(vps)
	}
	return root, nil
}

func buildComment(c issue.Comment) *xmltree.Element {
	guid := c.GUID
	if guid == uuid.Nil {
		guid = uuid.New()
	}
	el := xmltree.New("Comment").SetAttr("Guid", guid.String())
	el.AddLeaf("Date", FormatDate(c.Created))
	el.AddLeaf("Author", c.Owner)
	el.AddLeaf("Comment", c.Text)
	if c.Viewpoint != nil {
		el.Add(xmltree.New("Viewpoint").SetAttr("Guid", c.Viewpoint.String()))
	}
	return el
}

// ParseOptions carries import context for ParseMarkup.
type ParseOptions struct {
	// FolderGUID is used when the Topic carries no usable Guid.
	FolderGUID uuid.UUID
	// User owns the import system comment.
	User string
	// Now stamps the import comment; defaults to time.Now.
	Now func() time.Time
}

func (o ParseOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// topicFields are Topic children mapped onto Issue fields.
var topicFields = map[string]bool{
	"Title": true, "Priority": true, "CreationDate": true, "CreationAuthor": true,
	"Description": true, "AssignedTo": true, "DueDate": true,
}

// ParseMarkup reads markup.bcf into an issue and the viewpoint files it
// references. Status and priority are parsed leniently.
func ParseMarkup(data []byte, opts ParseOptions) (*issue.Issue, []ViewpointRef, error) {
	root, err := xmltree.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	if root.Name != "Markup" {
		return nil, nil, fmt.Errorf("root element is %s, want Markup", root.Name)
	}
	topic := root.Child("Topic")
	if topic == nil {
		return nil, nil, fmt.Errorf("markup has no Topic")
	}

	iss := &issue.Issue{Extras: issue.Extras{}}
	iss.ID = opts.FolderGUID
	if raw, ok := topic.Attr("Guid"); ok {
		if id, err := uuid.Parse(strings.TrimSpace(raw)); err == nil {
			iss.ID = id
		}
	}
	if iss.ID == uuid.Nil {
		iss.ID = uuid.New()
	}
	rawStatus, _ := topic.Attr("TopicStatus")
	iss.Status = issue.ParseStatus(rawStatus)
	iss.TopicType, _ = topic.Attr("TopicType")

	iss.Name, _ = topic.GetPath("Title")
	if p, ok := topic.GetPath("Priority"); ok {
		iss.Priority = issue.ParsePriority(p)
	}
	iss.Description, _ = topic.GetPath("Description")
	iss.Owner, _ = topic.GetPath("CreationAuthor")
	iss.Created = opts.now()
	if raw, ok := topic.GetPath("CreationDate"); ok {
		if t, err := ParseDate(raw); err == nil {
			iss.Created = t
		}
	}
	if raw, ok := topic.GetPath("DueDate"); ok && raw != "" {
		if t, err := ParseDate(raw); err == nil {
			iss.DueDate = &t
		} else {
			iss.Extras.Add(topic.Child("DueDate").Clone())
		}
	}
	if raw, ok := topic.GetPath("AssignedTo"); ok {
		for _, role := range strings.Split(raw, ",") {
			if role = strings.TrimSpace(role); role != "" {
				iss.AssignedRoles = append(iss.AssignedRoles, role)
			}
		}
	}
	for _, child := range topic.Children {
		if !topicFields[child.Name] {
			iss.Extras.Add(child.Clone())
		}
	}
	for _, child := range root.Children {
		if markupLevelExtras[child.Name] {
			iss.Extras.Add(child.Clone())
		}
	}

	for _, el := range root.ChildrenNamed("Comment") {
		iss.Comments = append(iss.Comments, parseComment(el, iss.Created))
	}
	iss.Comments = append(iss.Comments, issue.Comment{
		GUID:    uuid.New(),
		Created: opts.now(),
		Owner:   opts.User,
		Sealed:  true,
		Action:  &issue.Action{Property: issue.ActionImport},
	})

	var refs []ViewpointRef
	for _, el := range root.ChildrenNamed("Viewpoints") {
		ref := ViewpointRef{}
		if raw, ok := el.Attr("Guid"); ok {
			ref.GUID, _ = uuid.Parse(strings.TrimSpace(raw))
		}
		if ref.GUID == uuid.Nil {
			ref.GUID = uuid.New()
		}
		ref.Viewpoint, _ = el.GetPath("Viewpoint")
		ref.Snapshot, _ = el.GetPath("Snapshot")
		refs = append(refs, ref)
	}
	return iss, refs, nil
}

func parseComment(el *xmltree.Element, fallback time.Time) issue.Comment {
	c := issue.Comment{Sealed: true, Created: fallback}
	if raw, ok := el.Attr("Guid"); ok {
		c.GUID, _ = uuid.Parse(strings.TrimSpace(raw))
	}
	if c.GUID == uuid.Nil {
		c.GUID = uuid.New()
	}
	if raw, ok := el.GetPath("Date"); ok {
		if t, err := ParseDate(raw); err == nil {
			c.Created = t
		}
	}
	c.Owner, _ = el.GetPath("Author")
	c.Text, _ = el.GetPath("Comment")
	if raw, ok := el.Path("Viewpoint").Attr("Guid"); ok {
		if id, err := uuid.Parse(strings.TrimSpace(raw)); err == nil {
			c.Viewpoint = &id
		}
	}
	return c
}
