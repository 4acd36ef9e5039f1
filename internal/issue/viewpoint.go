package issue

import "github.com/google/uuid"

// Viewpoint is a saved camera with optional clipping and object state.
type Viewpoint struct {
	GUID             uuid.UUID       `json:"guid" yaml:"guid"`
	Type             ViewpointType   `json:"type,omitempty" yaml:"type,omitempty"`
	Position         []float64       `json:"position,omitempty" yaml:"position,omitempty"`
	ViewDir          []float64       `json:"view_dir,omitempty" yaml:"view_dir,omitempty"`
	Up               []float64       `json:"up,omitempty" yaml:"up,omitempty"`
	FOV              float64         `json:"fov,omitempty" yaml:"fov,omitempty"`
	OrthographicSize float64         `json:"orthographic_size,omitempty" yaml:"orthographic_size,omitempty"`
	ClippingPlanes   []ClippingPlane `json:"clippingPlanes,omitempty" yaml:"clipping_planes,omitempty"`
	Screenshot       []byte          `json:"screenshot,omitempty" yaml:"screenshot,omitempty"`

	// Group references used on export.
	HighlightedGroupID string `json:"highlighted_group_id,omitempty" yaml:"highlighted_group_id,omitempty"`
	HiddenGroupID      string `json:"hidden_group_id,omitempty" yaml:"hidden_group_id,omitempty"`
	ShownGroupID       string `json:"shown_group_id,omitempty" yaml:"shown_group_id,omitempty"`

	// Group data produced by import, persisted and relinked by the caller.
	HighlightedGroup *Group `json:"highlighted_group,omitempty" yaml:"highlighted_group,omitempty"`
	HiddenGroup      *Group `json:"hidden_group,omitempty" yaml:"hidden_group,omitempty"`
	ShownGroup       *Group `json:"shown_group,omitempty" yaml:"shown_group,omitempty"`

	Extras Extras `json:"extras,omitempty" yaml:"extras,omitempty"`
}

// HasCamera reports whether position, view direction and up vector are all
// present. Viewpoints without them are exported without a camera block.
func (v *Viewpoint) HasCamera() bool {
	return len(v.Position) >= 3 && len(v.ViewDir) >= 3 && len(v.Up) >= 3
}

// ClippingPlane is a half-space with a signed distance from the origin.
type ClippingPlane struct {
	Normal        []float64 `json:"normal" yaml:"normal"`
	Distance      float64   `json:"distance" yaml:"distance"`
	ClipDirection int       `json:"clipDirection" yaml:"clip_direction"`
}

// Color is an RGB triple.
type Color [3]int

// Group is a set of external object ids, partitioned by model.
type Group struct {
	ID      string      `json:"id,omitempty" yaml:"id,omitempty"`
	Name    string      `json:"name" yaml:"name"`
	Color   Color       `json:"color" yaml:"color"`
	Objects []ObjectSet `json:"objects" yaml:"objects"`
}

// ObjectSet lists the IFC GUIDs of one model, in first-seen order.
type ObjectSet struct {
	Namespace string   `json:"account" yaml:"namespace"`
	Model     string   `json:"model" yaml:"model"`
	IFCGUIDs  []string `json:"ifc_guids" yaml:"ifc_guids"`
}

// Add appends id to the (namespace, model) set unless already present.
// It reports whether the id was new. Each call scans the group, so bulk
// loads should dedupe through a map first.
func (g *Group) Add(namespace, model, id string) bool {
	for i := range g.Objects {
		set := &g.Objects[i]
		if set.Namespace != namespace || set.Model != model {
			continue
		}
		for _, existing := range set.IFCGUIDs {
			if existing == id {
				return false
			}
		}
		set.IFCGUIDs = append(set.IFCGUIDs, id)
		return true
	}
	g.Objects = append(g.Objects, ObjectSet{Namespace: namespace, Model: model, IFCGUIDs: []string{id}})
	return true
}

// Contains reports whether id is present for (namespace, model).
func (g *Group) Contains(namespace, model, id string) bool {
	if g == nil {
		return false
	}
	for _, set := range g.Objects {
		if set.Namespace != namespace || set.Model != model {
			continue
		}
		for _, existing := range set.IFCGUIDs {
			if existing == id {
				return true
			}
		}
	}
	return false
}

// Len returns the total number of ids across all sets.
func (g *Group) Len() int {
	if g == nil {
		return 0
	}
	n := 0
	for _, set := range g.Objects {
		n += len(set.IFCGUIDs)
	}
	return n
}

// IFCGUIDs returns every id across all sets in order.
func (g *Group) IFCGUIDs() []string {
	if g == nil {
		return nil
	}
	var out []string
	for _, set := range g.Objects {
		out = append(out, set.IFCGUIDs...)
	}
	return out
}
