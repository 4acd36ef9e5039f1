package bcf

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/bimcollab/internal/issue"
	"github.com/randalmurphal/bimcollab/internal/xmltree"
)

func mustComponents(t *testing.T, s string) *xmltree.Element {
	t.Helper()
	el, err := xmltree.Parse([]byte(s))
	require.NoError(t, err)
	return el
}

func baseResolve() ResolveOptions {
	return ResolveOptions{IssueName: "Leak", Namespace: "acme", DefaultModel: "m1"}
}

func TestResolveGroups_Absent(t *testing.T) {
	t.Parallel()

	res := ResolveGroups(nil, baseResolve())
	assert.Nil(t, res.Highlighted)
	assert.Nil(t, res.Hidden)
	assert.Nil(t, res.Shown)

	res = ResolveGroups(mustComponents(t, `<Components><ViewSetupHints/></Components>`), baseResolve())
	assert.Nil(t, res.Highlighted)
	assert.Nil(t, res.Hidden)
	assert.Nil(t, res.Shown)

	// An empty visibility block yields no groups rather than empty ones.
	res = ResolveGroups(mustComponents(t, `<Components><Visibility DefaultVisibility="true"/></Components>`), baseResolve())
	assert.Nil(t, res.Hidden)
	assert.Nil(t, res.Shown)
}

func TestResolveGroups_SelectionAndColoring(t *testing.T) {
	t.Parallel()

	comps := mustComponents(t, `<Components>
  <Selection><Component IfcGuid="a"/><Component IfcGuid="b"/></Selection>
  <Coloring>
    <Color Color="FF00FF00"><Component IfcGuid="b"/><Component IfcGuid="c"/></Color>
  </Coloring>
</Components>`)

	res := ResolveGroups(comps, baseResolve())
	require.NotNil(t, res.Highlighted)
	assert.Equal(t, "Leak (highlighted)", res.Highlighted.Name)
	assert.Equal(t, issue.Color{0, 255, 0}, res.Highlighted.Color)
	require.Len(t, res.Highlighted.Objects, 1)
	set := res.Highlighted.Objects[0]
	assert.Equal(t, "acme", set.Namespace)
	assert.Equal(t, "m1", set.Model)
	assert.Equal(t, []string{"a", "b", "c"}, set.IFCGUIDs)
	assert.Nil(t, res.Hidden)
	assert.Nil(t, res.Shown)
}

func TestResolveGroups_Visibility(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		xml        string
		wantShown  []string
		wantHidden []string
	}{
		{
			name:       "default visible",
			xml:        `<Components><Visibility DefaultVisibility="true"><Component IfcGuid="s1"/><Exceptions><Component IfcGuid="h1"/></Exceptions></Visibility></Components>`,
			wantShown:  []string{"s1"},
			wantHidden: []string{"h1"},
		},
		{
			name:       "default hidden inverts roles",
			xml:        `<Components><Visibility DefaultVisibility="false"><Component IfcGuid="h1"/><Exceptions><Component IfcGuid="s1"/></Exceptions></Visibility></Components>`,
			wantShown:  []string{"s1"},
			wantHidden: []string{"h1"},
		},
		{
			name:       "missing attribute is false",
			xml:        `<Components><Visibility><Exceptions><Component IfcGuid="s1"/></Exceptions></Visibility></Components>`,
			wantShown:  []string{"s1"},
			wantHidden: nil,
		},
		{
			name: "blocks accumulate",
			xml: `<Components>
<Visibility DefaultVisibility="true"><Exceptions><Component IfcGuid="h1"/></Exceptions></Visibility>
<Visibility DefaultVisibility="true"><Exceptions><Component IfcGuid="h2"/><Component IfcGuid="h1"/></Exceptions></Visibility>
</Components>`,
			wantHidden: []string{"h1", "h2"},
		},
		{
			name:       "legacy component flags",
			xml:        `<Components><Component IfcGuid="h1" Visible="false"/><Component IfcGuid="v1" Visible="true"/></Components>`,
			wantHidden: []string{"h1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ResolveGroups(mustComponents(t, tt.xml), baseResolve())
			assert.Equal(t, tt.wantShown, res.Shown.IFCGUIDs())
			assert.Equal(t, tt.wantHidden, res.Hidden.IFCGUIDs())
		})
	}
}

func TestResolveGroups_HighlightWinsOverHidden(t *testing.T) {
	t.Parallel()

	comps := mustComponents(t, `<Components>
  <Selection><Component IfcGuid="x"/></Selection>
  <Visibility DefaultVisibility="true">
    <Component IfcGuid="s1"/>
    <Exceptions><Component IfcGuid="x"/><Component IfcGuid="h1"/></Exceptions>
  </Visibility>
</Components>`)

	res := ResolveGroups(comps, baseResolve())
	assert.Equal(t, []string{"x"}, res.Highlighted.IFCGUIDs())
	assert.Equal(t, []string{"h1"}, res.Hidden.IFCGUIDs())
	// shown is concatenated with highlighted
	assert.Equal(t, []string{"s1", "x"}, res.Shown.IFCGUIDs())
}

func TestResolveGroups_ShownKeepsDuplicatesOfHighlighted(t *testing.T) {
	t.Parallel()

	comps := mustComponents(t, `<Components>
  <Selection><Component IfcGuid="x"/></Selection>
  <Visibility DefaultVisibility="true"><Component IfcGuid="x"/></Visibility>
</Components>`)

	res := ResolveGroups(comps, baseResolve())
	assert.Equal(t, []string{"x", "x"}, res.Shown.IFCGUIDs())
}

func TestResolveGroups_LegacySelected(t *testing.T) {
	t.Parallel()

	comps := mustComponents(t, `<Components><Component IfcGuid="a" Selected="true" Visible="false"/></Components>`)
	res := ResolveGroups(comps, baseResolve())
	assert.Equal(t, []string{"a"}, res.Highlighted.IFCGUIDs())
	assert.Nil(t, res.Hidden)
}

func TestResolveGroups_Federated(t *testing.T) {
	t.Parallel()

	opts := baseResolve()
	opts.Federated = true
	opts.IDToModel = map[string]string{"a": "sub1", "b": "sub2", "h": "sub1"}

	comps := mustComponents(t, `<Components>
  <Selection><Component IfcGuid="a"/><Component IfcGuid="b"/><Component IfcGuid="stale"/></Selection>
  <Visibility DefaultVisibility="true"><Exceptions><Component IfcGuid="h"/><Component IfcGuid="stale"/><Component IfcGuid="gone"/></Exceptions></Visibility>
</Components>`)

	res := ResolveGroups(comps, opts)
	require.NotNil(t, res.Highlighted)
	require.Len(t, res.Highlighted.Objects, 2)
	assert.Equal(t, "sub1", res.Highlighted.Objects[0].Model)
	assert.Equal(t, []string{"a"}, res.Highlighted.Objects[0].IFCGUIDs)
	assert.Equal(t, "sub2", res.Highlighted.Objects[1].Model)
	assert.True(t, res.Hidden.Contains("acme", "sub1", "h"))
	assert.Equal(t, 1, res.Hidden.Len())

	// dropped, reported once each, not fatal
	assert.Equal(t, []string{"stale", "gone"}, res.Unresolved)
}

func TestResolveGroups_LargeSelectionDedupesInOrder(t *testing.T) {
	t.Parallel()

	const n = 20000
	var b strings.Builder
	b.WriteString("<Components><Selection>")
	for i := range n {
		fmt.Fprintf(&b, `<Component IfcGuid="g%d"/>`, i)
	}
	// every id again, plus hidden duplicates of the selection
	for i := range n {
		fmt.Fprintf(&b, `<Component IfcGuid="g%d"/>`, i)
	}
	b.WriteString(`</Selection><Visibility DefaultVisibility="true"><Exceptions>`)
	for i := range n {
		fmt.Fprintf(&b, `<Component IfcGuid="g%d"/><Component IfcGuid="h%d"/>`, i, i%10)
	}
	b.WriteString("</Exceptions></Visibility></Components>")

	res := ResolveGroups(mustComponents(t, b.String()), baseResolve())
	require.NotNil(t, res.Highlighted)
	ids := res.Highlighted.IFCGUIDs()
	require.Len(t, ids, n)
	assert.Equal(t, "g0", ids[0])
	assert.Equal(t, fmt.Sprintf("g%d", n-1), ids[n-1])

	require.NotNil(t, res.Hidden)
	assert.Equal(t, []string{"h0", "h1", "h2", "h3", "h4", "h5", "h6", "h7", "h8", "h9"}, res.Hidden.IFCGUIDs())
}

func TestResolveGroups_NonFederatedIgnoresLookup(t *testing.T) {
	t.Parallel()

	opts := baseResolve()
	opts.IDToModel = map[string]string{"a": "sub1"}
	res := ResolveGroups(mustComponents(t, `<Components><Selection><Component IfcGuid="a"/></Selection></Components>`), opts)
	assert.True(t, res.Highlighted.Contains("acme", "m1", "a"))
	assert.Empty(t, res.Unresolved)
}

func TestBuildComponents_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		groups func() ExportGroups
	}{
		{"hidden only", func() ExportGroups {
			h := &issue.Group{}
			h.Add("acme", "m1", "h1")
			h.Add("acme", "m1", "h2")
			return ExportGroups{Hidden: h}
		}},
		{"hidden and shown", func() ExportGroups {
			h := &issue.Group{}
			h.Add("acme", "m1", "h1")
			s := &issue.Group{}
			s.Add("acme", "m1", "s1")
			return ExportGroups{Hidden: h, Shown: s}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := tt.groups()
			res := ResolveGroups(BuildComponents(groups), baseResolve())
			assert.Equal(t, groups.Hidden.IFCGUIDs(), res.Hidden.IFCGUIDs())
			assert.Equal(t, groups.Shown.IFCGUIDs(), res.Shown.IFCGUIDs())
			assert.Nil(t, res.Highlighted)
		})
	}
}

func TestBuildComponents_Highlighted(t *testing.T) {
	t.Parallel()

	hl := &issue.Group{Color: issue.Color{255, 0, 16}}
	hl.Add("acme", "m1", "a")
	hl.Add("acme", "m2", "a")

	comps := BuildComponents(ExportGroups{Highlighted: hl})
	require.Len(t, comps.All("Selection/Component"), 1)
	assert.Equal(t, "FF0010", comps.Path("Coloring/Color").AttrOr("Color", ""))
	assert.Equal(t, "true", comps.Path("Visibility").AttrOr("DefaultVisibility", ""))

	res := ResolveGroups(comps, baseResolve())
	assert.Equal(t, []string{"a"}, res.Highlighted.IFCGUIDs())
	assert.Equal(t, issue.Color{255, 0, 16}, res.Highlighted.Color)
}

func TestParseColor(t *testing.T) {
	t.Parallel()

	c, ok := parseColor("#00ff80")
	assert.True(t, ok)
	assert.Equal(t, issue.Color{0, 255, 128}, c)
	_, ok = parseColor("red")
	assert.False(t, ok)
}
