package bcf

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/bimcollab/internal/issue"
	"github.com/randalmurphal/bimcollab/internal/xmltree"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func parseOpts() ParseOptions {
	return ParseOptions{User: "importer", Now: func() time.Time { return fixedNow }}
}

func sampleIssue() *issue.Issue {
	due := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	vpID := uuid.MustParse("8dc86298-9737-40b4-a448-98a9e953293a")
	return &issue.Issue{
		ID:            uuid.MustParse("a6e2d1c4-4a86-4a0e-9c1e-3f52e1d7d0a1"),
		Name:          "Leak in roof",
		Description:   "Water near the north gutter",
		Status:        issue.StatusInProgress,
		Priority:      issue.PriorityHigh,
		TopicType:     "Clash",
		Owner:         "alice@example.com",
		Created:       time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC),
		DueDate:       &due,
		AssignedRoles: []string{"Architect", "MEP"},
		Comments: []issue.Comment{
			{GUID: uuid.New(), Created: time.Date(2024, 1, 16, 8, 0, 0, 0, time.UTC), Owner: "bob", Text: "Confirmed on site", Viewpoint: &vpID},
			{GUID: uuid.New(), Created: time.Date(2024, 1, 17, 8, 0, 0, 0, time.UTC), Owner: "system", Action: &issue.Action{Property: "assigned_roles", From: "MEP", To: "Architect"}},
		},
	}
}

func TestBuildMarkup_Topic(t *testing.T) {
	t.Parallel()

	iss := sampleIssue()
	doc, err := BuildMarkup(iss, nil)
	require.NoError(t, err)

	topic := doc.Child("Topic")
	require.NotNil(t, topic)
	assert.Equal(t, iss.ID.String(), topic.AttrOr("Guid", ""))
	assert.Equal(t, "in progress", topic.AttrOr("TopicStatus", ""))
	assert.Equal(t, "Clash", topic.AttrOr("TopicType", ""))

	for path, want := range map[string]string{
		"Title":          "Leak in roof",
		"Priority":       "high",
		"CreationDate":   "2024-01-15T09:30:00.000Z",
		"CreationAuthor": "alice@example.com",
		"DueDate":        "2024-06-30T00:00:00.000Z",
		"AssignedTo":     "Architect,MEP",
		"Description":    "Water near the north gutter",
	} {
		got, ok := topic.GetPath(path)
		assert.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}
}

func TestBuildMarkup_ExcludesSystemComments(t *testing.T) {
	t.Parallel()

	doc, err := BuildMarkup(sampleIssue(), nil)
	require.NoError(t, err)

	comments := doc.ChildrenNamed("Comment")
	require.Len(t, comments, 1)
	text, _ := comments[0].GetPath("Comment")
	assert.Equal(t, "Confirmed on site", text)
	author, _ := comments[0].GetPath("Author")
	assert.Equal(t, "bob", author)
	assert.Equal(t, "8dc86298-9737-40b4-a448-98a9e953293a", comments[0].Path("Viewpoint").AttrOr("Guid", ""))
}

func TestBuildMarkup_DefaultsAndExtras(t *testing.T) {
	t.Parallel()

	iss := &issue.Issue{ID: uuid.New(), Name: "x", Status: issue.StatusOpen, Extras: issue.Extras{}}
	iss.Extras.SetText("DueDate", "someday")
	iss.Extras.SetText("AssignedTo", "Facility Manager")
	iss.Extras.Add(xmltree.Leaf("Labels", "roof"), xmltree.Leaf("Stage", "Design"))
	iss.Extras.Add(xmltree.New("Header").Add(xmltree.New("File").SetAttr("IfcProject", "0xyz")))
	iss.Extras.Add(xmltree.Leaf("VendorThing", "kept"))
	iss.Extras.SetFlag("_internal")

	doc, err := BuildMarkup(iss, nil)
	require.NoError(t, err)

	require.Equal(t, "Header", doc.Children[0].Name)
	topic := doc.Child("Topic")
	desc, _ := topic.GetPath("Description")
	assert.Equal(t, NoDescription, desc)
	due, _ := topic.GetPath("DueDate")
	assert.Equal(t, "someday", due)
	assigned, _ := topic.GetPath("AssignedTo")
	assert.Equal(t, "Facility Manager", assigned)
	_, hasPriority := topic.GetPath("Priority")
	assert.False(t, hasPriority)
	assert.Nil(t, topic.Child("_internal"))

	var names []string
	for _, c := range topic.Children {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{
		"Title", "Labels", "CreationDate", "CreationAuthor", "DueDate",
		"AssignedTo", "Stage", "Description", "VendorThing",
	}, names)
}

func TestBuildMarkup_ViewpointRefs(t *testing.T) {
	t.Parallel()

	refs := []ViewpointRef{
		{GUID: uuid.New(), Viewpoint: "viewpoint.bcfv", Snapshot: "snapshot.png"},
		{GUID: uuid.New(), Viewpoint: "viewpoint1.bcfv"},
	}
	doc, err := BuildMarkup(sampleIssue(), refs)
	require.NoError(t, err)

	vps := doc.ChildrenNamed("Viewpoints")
	require.Len(t, vps, 2)
	assert.Equal(t, refs[0].GUID.String(), vps[0].AttrOr("Guid", ""))
	snap, ok := vps[0].GetPath("Snapshot")
	assert.True(t, ok)
	assert.Equal(t, "snapshot.png", snap)
	_, ok = vps[1].GetPath("Snapshot")
	assert.False(t, ok)
}

func TestParseMarkup_StatusDefaultsToOpen(t *testing.T) {
	t.Parallel()

	data := []byte(`<Markup><Topic Guid="a6e2d1c4-4a86-4a0e-9c1e-3f52e1d7d0a1"><Title>t</Title></Topic></Markup>`)
	iss, _, err := ParseMarkup(data, parseOpts())
	require.NoError(t, err)
	assert.Equal(t, issue.StatusOpen, iss.Status)
	assert.Equal(t, issue.Priority(""), iss.Priority)
}

func TestParseMarkup_LenientEnums(t *testing.T) {
	t.Parallel()

	data := []byte(`<Markup><Topic TopicStatus="Resolved"><Title>t</Title><Priority>CRITICAL</Priority></Topic></Markup>`)
	iss, _, err := ParseMarkup(data, parseOpts())
	require.NoError(t, err)
	assert.Equal(t, issue.Status("Resolved"), iss.Status)
	assert.Equal(t, issue.Priority("CRITICAL"), iss.Priority)

	data = []byte(`<Markup><Topic TopicStatus="CLOSED"><Title>t</Title><Priority>Low</Priority></Topic></Markup>`)
	iss, _, err = ParseMarkup(data, parseOpts())
	require.NoError(t, err)
	assert.Equal(t, issue.StatusClosed, iss.Status)
	assert.Equal(t, issue.PriorityLow, iss.Priority)
}

func TestParseMarkup_Fields(t *testing.T) {
	t.Parallel()

	folder := uuid.New()
	data := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<Markup>
  <Header><File IfcProject="0abc"/></Header>
  <Topic Guid="not-a-guid" TopicType="Issue">
    <Title>Door swing</Title>
    <Labels>Arch</Labels>
    <CreationDate>2024-01-15T09:30:00+01:00</CreationDate>
    <CreationAuthor>carol</CreationAuthor>
    <DueDate>next week</DueDate>
    <AssignedTo>Architect, Structural ,</AssignedTo>
    <Description>Clashes with wall</Description>
  </Topic>
  <Comment Guid="d3b07384-d9a0-4c9b-8f3c-5e6a7b8c9d0e">
    <Date>2024-01-16T10:00:00Z</Date>
    <Author>dave</Author>
    <Comment>Moved door</Comment>
    <Viewpoint Guid="8dc86298-9737-40b4-a448-98a9e953293a"/>
  </Comment>
  <Viewpoints Guid="8dc86298-9737-40b4-a448-98a9e953293a">
    <Viewpoint>viewpoint.bcfv</Viewpoint>
    <Snapshot>snapshot.png</Snapshot>
  </Viewpoints>
</Markup>`)
	opts := parseOpts()
	opts.FolderGUID = folder

	iss, refs, err := ParseMarkup(data, opts)
	require.NoError(t, err)

	assert.Equal(t, folder, iss.ID)
	assert.Equal(t, "Door swing", iss.Name)
	assert.Equal(t, "Issue", iss.TopicType)
	assert.Equal(t, "carol", iss.Owner)
	assert.Equal(t, "Clashes with wall", iss.Description)
	assert.True(t, iss.Created.Equal(time.Date(2024, 1, 15, 8, 30, 0, 0, time.UTC)))
	assert.Nil(t, iss.DueDate)
	due, ok := iss.Extras.Text("DueDate")
	assert.True(t, ok)
	assert.Equal(t, "next week", due)
	assert.Equal(t, []string{"Architect", "Structural"}, iss.AssignedRoles)
	assert.Len(t, iss.Extras["Labels"], 1)
	assert.Len(t, iss.Extras["Header"], 1)

	require.Len(t, iss.Comments, 2)
	c := iss.Comments[0]
	assert.Equal(t, "dave", c.Owner)
	assert.Equal(t, "Moved door", c.Text)
	assert.True(t, c.Sealed)
	require.NotNil(t, c.Viewpoint)
	assert.Equal(t, "8dc86298-9737-40b4-a448-98a9e953293a", c.Viewpoint.String())

	marker := iss.Comments[1]
	require.NotNil(t, marker.Action)
	assert.Equal(t, issue.ActionImport, marker.Action.Property)
	assert.Equal(t, "importer", marker.Owner)
	assert.Equal(t, fixedNow, marker.Created)
	assert.True(t, marker.IsSystem())

	require.Len(t, refs, 1)
	assert.Equal(t, "viewpoint.bcfv", refs[0].Viewpoint)
	assert.Equal(t, "snapshot.png", refs[0].Snapshot)
}

func TestParseMarkup_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{"not xml", "garbage"},
		{"wrong root", "<VisualizationInfo/>"},
		{"no topic", "<Markup><Comment/></Markup>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseMarkup([]byte(tt.data), parseOpts())
			assert.Error(t, err)
		})
	}
}

func TestMarkup_RoundTrip(t *testing.T) {
	t.Parallel()

	orig := sampleIssue()
	doc, err := BuildMarkup(orig, nil)
	require.NoError(t, err)
	data, err := xmltree.Marshal(doc, xmltree.DefaultOptions)
	require.NoError(t, err)

	got, _, err := ParseMarkup(data, parseOpts())
	require.NoError(t, err)

	assert.Equal(t, orig.ID, got.ID)
	assert.Equal(t, orig.Name, got.Name)
	assert.Equal(t, orig.Status, got.Status)
	assert.Equal(t, orig.Priority, got.Priority)
	assert.Equal(t, orig.Owner, got.Owner)
	assert.True(t, orig.Created.Equal(got.Created))
	require.NotNil(t, got.DueDate)
	assert.True(t, orig.DueDate.Equal(*got.DueDate))
	assert.Equal(t, orig.AssignedRoles, got.AssignedRoles)

	user := got.UserComments()
	require.Len(t, user, 1)
	assert.Equal(t, orig.Comments[0].Text, user[0].Text)
	assert.Equal(t, orig.Comments[0].Owner, user[0].Owner)
	assert.True(t, orig.Comments[0].Created.Equal(user[0].Created))
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	for _, s := range []string{
		"2024-01-15T09:30:00Z",
		"2024-01-15T09:30:00.123+02:00",
		"2024-01-15T09:30:00",
		"2024-01-15T09:30:00+0200",
		"2024-01-15",
	} {
		_, err := ParseDate(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseDate("15/01/2024")
	assert.Error(t, err)
}
