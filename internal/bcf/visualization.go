package bcf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/randalmurphal/bimcollab/internal/issue"
	"github.com/randalmurphal/bimcollab/internal/xmltree"
)

// Extras keys with special meaning for viewpoints.
const (
	// FlagNoPerspective marks a viewpoint imported without a PerspectiveCamera.
	FlagNoPerspective = "_noPerspective"
)

// visualizationOrder is the BCF 2.1 sequence of VisualizationInfo children.
var visualizationOrder = []string{
	"Components", "OrthogonalCamera", "PerspectiveCamera", "Lines", "ClippingPlanes", "Bitmap",
}

// ViewpointFileName returns the .bcfv name of the n-th viewpoint (zero based).
func ViewpointFileName(n int) string {
	return "viewpoint" + suffix(n) + ".bcfv"
}

// SnapshotFileName returns the .png name of the n-th screenshot (zero based).
func SnapshotFileName(n int) string {
	return "snapshot" + suffix(n) + ".png"
}

func suffix(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// ExportGroups are the resolved groups a viewpoint references on export.
type ExportGroups struct {
	Highlighted *issue.Group
	Hidden      *issue.Group
	Shown       *issue.Group
}

func (g ExportGroups) empty() bool {
	return g.Highlighted == nil && g.Hidden == nil && g.Shown == nil
}

// BuildVisualization builds the .bcfv document of one viewpoint. scale is the
// unit multiplier from UnitScale.
func BuildVisualization(vp *issue.Viewpoint, scale float64, groups ExportGroups) (*xmltree.Element, error) {
	if vp == nil {
		return nil, fmt.Errorf("build visualization: nil viewpoint")
	}
	extras := vp.Extras
	if extras == nil {
		extras = issue.Extras{}
	}

	root := xmltree.New("VisualizationInfo").
		SetAttr("xmlns:xsi", xsiNS).
		SetAttr("xmlns:xsd", xsdNS).
		SetAttr("Guid", vp.GUID.String())

	if comps := buildComponentsBlock(extras, groups); comps != nil {
		root.Add(comps)
	}

	if vp.HasCamera() {
		if vp.Type == issue.ViewpointOrthographic {
			root.Add(buildCamera("OrthogonalCamera", vp, scale).
				Add(xmltree.Leaf("ViewToWorldScale", formatFloat(vp.OrthographicSize*scale))))
		} else if !extras.Flag(FlagNoPerspective) {
			root.Add(buildCamera("PerspectiveCamera", vp, scale).
				Add(xmltree.Leaf("FieldOfView", formatFloat(RadToDeg(vp.FOV)))))
		}
	}

	for _, el := range extras["Lines"] {
		root.Add(el.Clone())
	}

	if len(vp.ClippingPlanes) > 0 {
		planes := xmltree.New("ClippingPlanes")
		for _, p := range vp.ClippingPlanes {
			clip, ok := ToBCFClip(p, scale)
			if !ok {
				return nil, fmt.Errorf("clipping plane normal has %d components", len(p.Normal))
			}
			planes.Add(xmltree.New("ClippingPlane").Add(
				vectorElement("Location", clip.Location),
				vectorElement("Direction", clip.Direction),
			))
		}
		root.Add(planes)
	} else {
		for _, el := range extras["ClippingPlanes"] {
			root.Add(el.Clone())
		}
	}

	for _, el := range extras["Bitmap"] {
		root.Add(el.Clone())
	}
	root.Add(extras.Ordered(nil, append(visualizationOrder, "ViewSetupHints")...)...)
	return root, nil
}

func buildComponentsBlock(extras issue.Extras, groups ExportGroups) *xmltree.Element {
	if groups.empty() {
		if legacy := extras["Components"]; len(legacy) > 0 {
			return legacy[0].Clone()
		}
	}
	var comps *xmltree.Element
	if !groups.empty() {
		comps = BuildComponents(groups)
	}
	if hints := extras["ViewSetupHints"]; len(hints) > 0 {
		if comps == nil {
			comps = xmltree.New("Components")
		}
		comps.Children = append([]*xmltree.Element{hints[0].Clone()}, comps.Children...)
	}
	return comps
}

func buildCamera(name string, vp *issue.Viewpoint, scale float64) *xmltree.Element {
	pos, _ := vec3(vp.Position)
	dir, _ := vec3(vp.ViewDir)
	up, _ := vec3(vp.Up)
	return xmltree.New(name).Add(
		vectorElement("CameraViewPoint", ToBCF(pos, scale)),
		vectorElement("CameraDirection", ToBCFDirection(dir)),
		vectorElement("CameraUpVector", ToBCFDirection(up)),
	)
}

func vectorElement(name string, v Vec3) *xmltree.Element {
	el := xmltree.New(name)
	el.AddLeaf("X", formatFloat(v[0]))
	el.AddLeaf("Y", formatFloat(v[1]))
	el.AddLeaf("Z", formatFloat(v[2]))
	return el
}

func formatFloat(f float64) string {
	if f == 0 {
		// drop the sign of negative zero
		f = 0
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// VisualizationData is a parsed .bcfv document.
type VisualizationData struct {
	// Viewpoint carries the camera, clipping planes and untranslated extras.
	// GUID is nil when the document has none.
	Viewpoint *issue.Viewpoint
	// Components is the raw Components subtree for ResolveGroups, or nil.
	Components *xmltree.Element
}

// visualizationFields are VisualizationInfo children mapped onto fields.
var visualizationFields = map[string]bool{
	"Components": true, "PerspectiveCamera": true, "OrthogonalCamera": true, "ClippingPlanes": true,
}

// ParseVisualization reads a .bcfv document. scale is the unit multiplier the
// imported geometry is converted to.
func ParseVisualization(data []byte, scale float64) (*VisualizationData, error) {
	root, err := xmltree.Parse(data)
	if err != nil {
		return nil, err
	}
	if root.Name != "VisualizationInfo" {
		return nil, fmt.Errorf("root element is %s, want VisualizationInfo", root.Name)
	}
	if scale == 0 {
		scale = 1
	}

	vp := &issue.Viewpoint{Extras: issue.Extras{}}
	if raw, ok := root.Attr("Guid"); ok {
		vp.GUID, _ = uuid.Parse(strings.TrimSpace(raw))
	}

	if cam := root.Child("PerspectiveCamera"); cam != nil {
		if err := parseCamera(cam, vp, scale); err != nil {
			return nil, fmt.Errorf("PerspectiveCamera: %w", err)
		}
		vp.Type = issue.ViewpointPerspective
		if raw, ok := cam.GetPath("FieldOfView"); ok {
			fov, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("PerspectiveCamera/FieldOfView: %w", err)
			}
			vp.FOV = DegToRad(fov)
		}
	} else {
		vp.Extras.SetFlag(FlagNoPerspective)
		if cam := root.Child("OrthogonalCamera"); cam != nil {
			if err := parseCamera(cam, vp, scale); err != nil {
				return nil, fmt.Errorf("OrthogonalCamera: %w", err)
			}
			vp.Type = issue.ViewpointOrthographic
			vp.FOV = OrthogonalFOV
			if raw, ok := cam.GetPath("ViewToWorldScale"); ok {
				size, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return nil, fmt.Errorf("OrthogonalCamera/ViewToWorldScale: %w", err)
				}
				vp.OrthographicSize = size / scale
			}
		}
	}

	for _, el := range root.All("ClippingPlanes/ClippingPlane") {
		loc, err := parseVector(el.Child("Location"))
		if err != nil {
			return nil, fmt.Errorf("ClippingPlane/Location: %w", err)
		}
		dir, err := parseVector(el.Child("Direction"))
		if err != nil {
			return nil, fmt.Errorf("ClippingPlane/Direction: %w", err)
		}
		vp.ClippingPlanes = append(vp.ClippingPlanes, FromBCFClip(BCFClip{Location: loc, Direction: dir}, scale))
	}

	out := &VisualizationData{Viewpoint: vp, Components: root.Child("Components")}
	if out.Components != nil {
		if hints := out.Components.Child("ViewSetupHints"); hints != nil {
			vp.Extras.Add(hints.Clone())
		}
	}
	for _, child := range root.Children {
		if !visualizationFields[child.Name] {
			vp.Extras.Add(child.Clone())
		}
	}
	return out, nil
}

func parseCamera(cam *xmltree.Element, vp *issue.Viewpoint, scale float64) error {
	pos, err := parseVector(cam.Child("CameraViewPoint"))
	if err != nil {
		return fmt.Errorf("CameraViewPoint: %w", err)
	}
	dir, err := parseVector(cam.Child("CameraDirection"))
	if err != nil {
		return fmt.Errorf("CameraDirection: %w", err)
	}
	up, err := parseVector(cam.Child("CameraUpVector"))
	if err != nil {
		return fmt.Errorf("CameraUpVector: %w", err)
	}
	vp.Position = FromBCF(pos, scale).Slice()
	vp.ViewDir = FromBCFDirection(dir).Slice()
	vp.Up = FromBCFDirection(up).Slice()
	return nil
}

func parseVector(el *xmltree.Element) (Vec3, error) {
	if el == nil {
		return Vec3{}, fmt.Errorf("missing")
	}
	var v Vec3
	for i, axis := range []string{"X", "Y", "Z"} {
		raw, ok := el.GetPath(axis)
		if !ok {
			return Vec3{}, fmt.Errorf("missing %s", axis)
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Vec3{}, fmt.Errorf("%s: %w", axis, err)
		}
		v[i] = f
	}
	return v, nil
}
