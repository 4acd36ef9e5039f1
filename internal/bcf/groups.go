package bcf

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	bcferrors "github.com/randalmurphal/bimcollab/internal/errors"
	"github.com/randalmurphal/bimcollab/internal/issue"
	"github.com/randalmurphal/bimcollab/internal/xmltree"
)

// Default group colors.
var (
	HighlightColor = issue.Color{255, 255, 0}
	HiddenColor    = issue.Color{0, 0, 0}
	ShownColor     = issue.Color{0, 0, 0}
)

// ResolveOptions are the inputs to ResolveGroups besides the XML.
type ResolveOptions struct {
	IssueName    string
	Namespace    string
	DefaultModel string
	// IDToModel maps an IFC GUID to its sub-model. Only consulted when
	// Federated is set.
	IDToModel map[string]string
	Federated bool
	Logger    *slog.Logger
}

// GroupResult holds the resolved groups of one viewpoint. A nil group means
// the viewpoint does not alter that state; it is never an empty group.
type GroupResult struct {
	Highlighted *issue.Group
	Hidden      *issue.Group
	Shown       *issue.Group
	// Unresolved lists component ids dropped because no model owns them.
	Unresolved []string
}

type objectRef struct {
	model string
	id    string
}

// groupBuilder collects ids into a group with map-backed dedupe; the group
// is materialized by build.
type groupBuilder struct {
	group *issue.Group
	sets  map[string]int
	seen  map[objectRef]struct{}
}

func newGroupBuilder(name string, color issue.Color) *groupBuilder {
	return &groupBuilder{
		group: &issue.Group{Name: name, Color: color},
		sets:  map[string]int{},
		seen:  map[objectRef]struct{}{},
	}
}

func (b *groupBuilder) add(namespace string, ref objectRef) {
	if _, ok := b.seen[ref]; ok {
		return
	}
	b.seen[ref] = struct{}{}
	i, ok := b.sets[ref.model]
	if !ok {
		i = len(b.group.Objects)
		b.sets[ref.model] = i
		b.group.Objects = append(b.group.Objects, issue.ObjectSet{Namespace: namespace, Model: ref.model})
	}
	b.group.Objects[i].IFCGUIDs = append(b.group.Objects[i].IFCGUIDs, ref.id)
}

func (b *groupBuilder) contains(ref objectRef) bool {
	_, ok := b.seen[ref]
	return ok
}

// build returns the group, or nil when nothing was added.
func (b *groupBuilder) build() *issue.Group {
	if len(b.seen) == 0 {
		return nil
	}
	return b.group
}

// ResolveGroups turns the Selection, Coloring and Visibility blocks of a
// Components element into highlighted, hidden and shown groups.
func ResolveGroups(components *xmltree.Element, opts ResolveOptions) GroupResult {
	var res GroupResult
	if components == nil {
		return res
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	unresolved := map[string]bool{}
	resolve := func(c *xmltree.Element) (objectRef, bool) {
		id, ok := c.Attr("IfcGuid")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return objectRef{}, false
		}
		if !opts.Federated {
			return objectRef{model: opts.DefaultModel, id: id}, true
		}
		model, ok := opts.IDToModel[id]
		if !ok {
			if !unresolved[id] {
				unresolved[id] = true
				res.Unresolved = append(res.Unresolved, id)
				logger.Debug("dropping component",
					"issue", opts.IssueName, "error", bcferrors.ErrUnresolvedReference(id))
			}
			return objectRef{}, false
		}
		return objectRef{model: model, id: id}, true
	}

	highlighted := newGroupBuilder(opts.IssueName+" (highlighted)", HighlightColor)
	addTo := func(b *groupBuilder, c *xmltree.Element) {
		if ref, ok := resolve(c); ok {
			b.add(opts.Namespace, ref)
		}
	}
	for _, c := range components.All("Selection/Component") {
		addTo(highlighted, c)
	}
	for _, color := range components.All("Coloring/Color") {
		if rgb, ok := parseColor(color.AttrOr("Color", "")); ok {
			highlighted.group.Color = rgb
		}
		for _, c := range color.ChildrenNamed("Component") {
			addTo(highlighted, c)
		}
	}

	hidden := newGroupBuilder(opts.IssueName+" (hidden)", HiddenColor)
	shown := newGroupBuilder(opts.IssueName+" (shown)", ShownColor)
	hide := func(c *xmltree.Element) {
		ref, ok := resolve(c)
		if !ok || highlighted.contains(ref) {
			return
		}
		hidden.add(opts.Namespace, ref)
	}

	// BCF 2.0 puts the state on the components themselves.
	for _, c := range components.ChildrenNamed("Component") {
		if isTrue(c.AttrOr("Selected", "")) {
			addTo(highlighted, c)
		}
	}
	for _, c := range components.ChildrenNamed("Component") {
		if v, ok := c.Attr("Visible"); ok && !isTrue(v) {
			hide(c)
		}
	}

	for _, vis := range components.ChildrenNamed("Visibility") {
		defaultVisible := isTrue(vis.AttrOr("DefaultVisibility", "false"))
		direct := vis.ChildrenNamed("Component")
		exceptions := vis.All("Exceptions/Component")
		if !defaultVisible {
			direct, exceptions = exceptions, direct
		}
		for _, c := range direct {
			addTo(shown, c)
		}
		for _, c := range exceptions {
			hide(c)
		}
	}

	res.Highlighted = highlighted.build()
	res.Hidden = hidden.build()
	if res.Shown = shown.build(); res.Shown != nil && res.Highlighted != nil {
		res.Shown.Objects = append(res.Shown.Objects, cloneObjects(res.Highlighted.Objects)...)
	}
	return res
}

func cloneObjects(sets []issue.ObjectSet) []issue.ObjectSet {
	out := make([]issue.ObjectSet, len(sets))
	for i, s := range sets {
		out[i] = issue.ObjectSet{
			Namespace: s.Namespace,
			Model:     s.Model,
			IFCGUIDs:  append([]string(nil), s.IFCGUIDs...),
		}
	}
	return out
}

// BuildComponents encodes export groups as a BCF 2.1 Components element.
// Highlighted objects become the Selection (and a Coloring when the group has
// a color). With only hidden objects, visibility defaults to true and the
// hidden objects are the exceptions; once shown objects exist, visibility
// defaults to false, shown objects are the exceptions and hidden objects are
// listed directly.
func BuildComponents(groups ExportGroups) *xmltree.Element {
	comps := xmltree.New("Components")
	if ids := groups.Highlighted.IFCGUIDs(); len(ids) > 0 {
		comps.Add(componentList("Selection", ids))
	}

	vis := xmltree.New("Visibility")
	if shown := groups.Shown.IFCGUIDs(); len(shown) > 0 {
		vis.SetAttr("DefaultVisibility", "false")
		for _, id := range dedupe(groups.Hidden.IFCGUIDs()) {
			vis.Add(component(id))
		}
		vis.Add(componentList("Exceptions", shown))
	} else {
		vis.SetAttr("DefaultVisibility", "true")
		if hidden := groups.Hidden.IFCGUIDs(); len(hidden) > 0 {
			vis.Add(componentList("Exceptions", hidden))
		}
	}
	comps.Add(vis)

	if h := groups.Highlighted; h != nil && h.Len() > 0 && h.Color != (issue.Color{}) {
		color := componentList("Color", h.IFCGUIDs()).SetAttr("Color", formatColor(h.Color))
		comps.Add(xmltree.New("Coloring").Add(color))
	}
	return comps
}

func componentList(name string, ids []string) *xmltree.Element {
	el := xmltree.New(name)
	for _, id := range dedupe(ids) {
		el.Add(component(id))
	}
	return el
}

func component(id string) *xmltree.Element {
	return xmltree.New("Component").SetAttr("IfcGuid", id)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func isTrue(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

func formatColor(c issue.Color) string {
	return fmt.Sprintf("%02X%02X%02X", clampByte(c[0]), clampByte(c[1]), clampByte(c[2]))
}

func clampByte(v int) int {
	return max(0, min(255, v))
}

// parseColor reads RRGGBB or AARRGGBB hex.
func parseColor(s string) (issue.Color, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 8 {
		s = s[2:]
	}
	if len(s) != 6 {
		return issue.Color{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return issue.Color{}, false
	}
	return issue.Color{int(v >> 16 & 0xFF), int(v >> 8 & 0xFF), int(v & 0xFF)}, true
}
