package models

// FeatureType identifies one of the fixed set of supported CAD operations.
type FeatureType string

const (
	FeatureSketchRectangle FeatureType = "sketch-rectangle"
	FeatureSketchCircle    FeatureType = "sketch-circle"
	FeatureSketchLine      FeatureType = "sketch-line"
	FeatureExtrude         FeatureType = "extrude"
	FeatureFillet          FeatureType = "fillet"
	FeatureChamfer         FeatureType = "chamfer"
	FeatureMirror          FeatureType = "mirror"
	FeaturePattern         FeatureType = "pattern"
	FeatureDimensionEdit   FeatureType = "dimension-edit"
	FeatureExport          FeatureType = "export"
	FeatureOther           FeatureType = "other"

	// FeatureRecall is not a CAD operation: it is the router action for
	// "show me the history" intents and never reaches the CAD engine.
	FeatureRecall FeatureType = "recall"
)

// ParamKind is the expected value type of an operation parameter.
type ParamKind string

const (
	ParamNumber ParamKind = "number"
	ParamString ParamKind = "string"
)

// ParamSpec describes one parameter of a feature operation.
type ParamSpec struct {
	Name string
	Kind ParamKind

	// Positive requires a strictly positive value. Applies to physical
	// quantities (depths, radii, spacings); coordinates may be negative.
	Positive bool

	// Description is shown to the reasoning engine in the grounded prompt.
	Description string
}

// FeatureSpec describes a supported feature type: its required and optional
// parameters plus a short usage hint for the reasoning engine.
type FeatureSpec struct {
	Type     FeatureType
	Hint     string
	Required []ParamSpec
	Optional []ParamSpec
}

// Catalog is the fixed operation schema. All lengths are in meters.
// Each hint documents the defaults applied when the user leaves a
// dimension unspecified (fillet 0.005, chamfer 0.002, pattern 3 x 0.02,
// mirror about the front plane).
var Catalog = []FeatureSpec{
	{
		Type: FeatureSketchRectangle,
		Hint: "corner rectangle on the active sketch plane; default 0,0 to 0.1,0.1",
		Required: []ParamSpec{
			{Name: "x1", Kind: ParamNumber, Description: "first corner x"},
			{Name: "y1", Kind: ParamNumber, Description: "first corner y"},
			{Name: "x2", Kind: ParamNumber, Description: "opposite corner x"},
			{Name: "y2", Kind: ParamNumber, Description: "opposite corner y"},
		},
	},
	{
		Type: FeatureSketchCircle,
		Hint: "circle on the active sketch plane; default center 0,0 radius 0.05",
		Required: []ParamSpec{
			{Name: "cx", Kind: ParamNumber, Description: "center x"},
			{Name: "cy", Kind: ParamNumber, Description: "center y"},
			{Name: "radius", Kind: ParamNumber, Positive: true, Description: "radius"},
		},
	},
	{
		Type: FeatureSketchLine,
		Hint: "straight line on the active sketch plane",
		Required: []ParamSpec{
			{Name: "x1", Kind: ParamNumber, Description: "start x"},
			{Name: "y1", Kind: ParamNumber, Description: "start y"},
			{Name: "x2", Kind: ParamNumber, Description: "end x"},
			{Name: "y2", Kind: ParamNumber, Description: "end y"},
		},
	},
	{
		Type: FeatureExtrude,
		Hint: "boss-extrude the most recent sketch; default depth 0.01",
		Required: []ParamSpec{
			{Name: "depth", Kind: ParamNumber, Positive: true, Description: "extrusion depth"},
		},
	},
	{
		Type: FeatureFillet,
		Hint: "fillet the selected edges; default radius 0.005",
		Required: []ParamSpec{
			{Name: "radius", Kind: ParamNumber, Positive: true, Description: "fillet radius"},
		},
	},
	{
		Type: FeatureChamfer,
		Hint: "equal-distance chamfer on the selected edges; default distance 0.002",
		Required: []ParamSpec{
			{Name: "distance", Kind: ParamNumber, Positive: true, Description: "chamfer distance"},
		},
	},
	{
		Type: FeatureMirror,
		Hint: "mirror the selected features about a plane; default plane \"Front Plane\"",
		Required: []ParamSpec{
			{Name: "plane", Kind: ParamString, Description: "mirror plane name"},
		},
	},
	{
		Type: FeaturePattern,
		Hint: "linear pattern of the selected feature; default 3 instances, 0.02 spacing",
		Required: []ParamSpec{
			{Name: "count", Kind: ParamNumber, Positive: true, Description: "instance count"},
			{Name: "spacing", Kind: ParamNumber, Positive: true, Description: "instance spacing"},
		},
	},
	{
		Type: FeatureDimensionEdit,
		Hint: "add or modify dimensions on the current sketch",
		Required: []ParamSpec{
			{Name: "raw_command", Kind: ParamString, Description: "the dimension instruction verbatim"},
		},
	},
	{
		Type: FeatureExport,
		Hint: "export the model; default format STEP",
		Required: []ParamSpec{
			{Name: "path", Kind: ParamString, Description: "output file path"},
		},
		Optional: []ParamSpec{
			{Name: "format", Kind: ParamString, Description: "STEP or STL"},
		},
	},
	{
		Type: FeatureOther,
		Hint: "anything that does not fit the types above",
	},
}

// Spec returns the catalog entry for a feature type, or nil when the type
// is not part of the fixed operation schema.
func Spec(t FeatureType) *FeatureSpec {
	for i := range Catalog {
		if Catalog[i].Type == t {
			return &Catalog[i]
		}
	}
	return nil
}

// LengthParams names the parameters that carry a length and therefore get
// unit-normalized to meters. Everything else (counts, plane names, paths)
// passes through untouched.
var LengthParams = map[string]bool{
	"x1": true, "y1": true, "x2": true, "y2": true,
	"cx": true, "cy": true,
	"radius":   true,
	"depth":    true,
	"distance": true,
	"spacing":  true,
}
