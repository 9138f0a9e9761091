package state

import (
	"encoding/json"
	"image/color"
	"math"

	"github.com/gogpu/canvas/geom"
)

// Kind identifies one of the entity collections of a canvas document.
type Kind string

// Entity kinds.
const (
	KindRasterLayer      Kind = "raster_layer"
	KindControlLayer     Kind = "control_layer"
	KindInpaintMask      Kind = "inpaint_mask"
	KindRegionalGuidance Kind = "regional_guidance"
	KindReferenceImage   Kind = "reference_image"
)

// DrawOrder lists the drawable kinds from bottom to top.
var DrawOrder = []Kind{KindRasterLayer, KindControlLayer, KindRegionalGuidance, KindInpaintMask}

// IsDrawable reports whether entities of this kind hold objects.
func (k Kind) IsDrawable() bool {
	switch k {
	case KindRasterLayer, KindControlLayer, KindInpaintMask, KindRegionalGuidance:
		return true
	default:
		return false
	}
}

// IsMask reports whether entities of this kind carry a fill and are
// rasterized at full opacity.
func (k Kind) IsMask() bool {
	return k == KindInpaintMask || k == KindRegionalGuidance
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k.IsDrawable() || k == KindReferenceImage
}

// Color is an sRGB color with 8-bit channels and a [0, 1] alpha.
type Color struct {
	R uint8   `json:"r" yaml:"r"`
	G uint8   `json:"g" yaml:"g"`
	B uint8   `json:"b" yaml:"b"`
	A float64 `json:"a" yaml:"a"`
}

// RGB returns an opaque color.
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b, A: 1}
}

// NRGBA converts c to a non-premultiplied image color.
func (c Color) NRGBA() color.NRGBA {
	a := math.Max(0, math.Min(1, c.A))
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(a*255 + 0.5)}
}

// ImageRef points at an image held by the asset store.
type ImageRef struct {
	Name   string `json:"image_name" yaml:"image_name"`
	Width  int    `json:"width" yaml:"width"`
	Height int    `json:"height" yaml:"height"`
}

// ObjectType tags the variants of Object.
type ObjectType string

// Object types.
const (
	TypeBrushLine  ObjectType = "brush_line"
	TypeEraserLine ObjectType = "eraser_line"
	TypeRect       ObjectType = "rect"
	TypeImage      ObjectType = "image"
)

// Object is a drawable primitive owned by an entity. The set of variants is
// closed: *BrushLine, *EraserLine, *RectShape and *ImageObject.
//
// Objects are immutable once created. An entity's object list changes only
// by append, removal or wholesale replacement.
type Object interface {
	ObjectID() string
	Type() ObjectType
	isObject()
}

// BrushLine is a freehand stroke. Points is a flat [x0, y0, x1, y1, ...]
// list in entity-local coordinates.
type BrushLine struct {
	ID          string     `json:"id"`
	StrokeWidth float64    `json:"strokeWidth"`
	Points      []float64  `json:"points"`
	Color       Color      `json:"color"`
	Clip        *geom.Rect `json:"clip"`
}

// EraserLine is a stroke that removes coverage from the objects below it.
type EraserLine struct {
	ID          string     `json:"id"`
	StrokeWidth float64    `json:"strokeWidth"`
	Points      []float64  `json:"points"`
	Clip        *geom.Rect `json:"clip"`
}

// RectShape is a filled axis-aligned rectangle.
type RectShape struct {
	ID    string    `json:"id"`
	Rect  geom.Rect `json:"rect"`
	Color Color     `json:"color"`
}

// ImageObject embeds an asset-store image at the entity origin.
type ImageObject struct {
	ID    string   `json:"id"`
	Image ImageRef `json:"image"`
}

// NewImageObject wraps ref in an image object with a fresh id.
func NewImageObject(ref ImageRef) *ImageObject {
	return &ImageObject{ID: NewID("image"), Image: ref}
}

func (o *BrushLine) ObjectID() string   { return o.ID }
func (o *EraserLine) ObjectID() string  { return o.ID }
func (o *RectShape) ObjectID() string   { return o.ID }
func (o *ImageObject) ObjectID() string { return o.ID }

func (*BrushLine) Type() ObjectType   { return TypeBrushLine }
func (*EraserLine) Type() ObjectType  { return TypeEraserLine }
func (*RectShape) Type() ObjectType   { return TypeRect }
func (*ImageObject) Type() ObjectType { return TypeImage }

func (*BrushLine) isObject()   {}
func (*EraserLine) isObject()  {}
func (*RectShape) isObject()   {}
func (*ImageObject) isObject() {}

// The JSON forms carry the type tag so that structural hashes of two
// objects with equal fields but different types differ.

func (o *BrushLine) MarshalJSON() ([]byte, error) {
	type alias BrushLine
	return json.Marshal(struct {
		Type ObjectType `json:"type"`
		*alias
	}{TypeBrushLine, (*alias)(o)})
}

func (o *EraserLine) MarshalJSON() ([]byte, error) {
	type alias EraserLine
	return json.Marshal(struct {
		Type ObjectType `json:"type"`
		*alias
	}{TypeEraserLine, (*alias)(o)})
}

func (o *RectShape) MarshalJSON() ([]byte, error) {
	type alias RectShape
	return json.Marshal(struct {
		Type ObjectType `json:"type"`
		*alias
	}{TypeRect, (*alias)(o)})
}

func (o *ImageObject) MarshalJSON() ([]byte, error) {
	type alias ImageObject
	return json.Marshal(struct {
		Type ObjectType `json:"type"`
		*alias
	}{TypeImage, (*alias)(o)})
}

// Fill styles for mask kinds.
const (
	FillSolid      = "solid"
	FillGrid       = "grid"
	FillCrosshatch = "crosshatch"
	FillDiagonal   = "diagonal"
	FillHorizontal = "horizontal"
	FillVertical   = "vertical"
)

// Fill describes how a mask is painted on screen.
type Fill struct {
	Style string `json:"style"`
	Color Color  `json:"color"`
}

// Entity is a layer-like element of the document. The set of variants is
// closed: *RasterLayer, *ControlLayer, *InpaintMask, *RegionalGuidance and
// *ReferenceImage.
type Entity interface {
	EntityID() string
	Kind() Kind
	Enabled() bool
	isEntity()
}

// Drawable is an entity that owns objects.
type Drawable interface {
	Entity
	// Base returns the shared layer fields. Callers must not modify them.
	Base() *Layer
}

// Layer holds the fields shared by all drawable kinds.
type Layer struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	IsEnabled bool       `json:"isEnabled"`
	IsLocked  bool       `json:"isLocked"`
	Opacity   float64    `json:"opacity"`
	Position  geom.Coord `json:"position"`
	Objects   []Object   `json:"objects"`
}

func (l *Layer) EntityID() string { return l.ID }
func (l *Layer) Enabled() bool    { return l.IsEnabled }
func (l *Layer) Base() *Layer     { return l }

// RasterLayer is a plain pixel layer.
type RasterLayer struct {
	Layer
}

// ControlLayer holds a control image for the generator.
type ControlLayer struct {
	Layer
	WithTransparencyEffect bool `json:"withTransparencyEffect"`
}

// InpaintMask marks the regions to regenerate.
type InpaintMask struct {
	Layer
	Fill Fill `json:"fill"`
}

// RegionalGuidance attaches prompts to a masked region.
type RegionalGuidance struct {
	Layer
	Fill           Fill   `json:"fill"`
	PositivePrompt string `json:"positivePrompt"`
	NegativePrompt string `json:"negativePrompt"`
}

// ReferenceImage is a non-drawable entity pointing at a reference image.
type ReferenceImage struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsEnabled bool      `json:"isEnabled"`
	IsLocked  bool      `json:"isLocked"`
	Image     *ImageRef `json:"image"`
}

func (*RasterLayer) Kind() Kind      { return KindRasterLayer }
func (*ControlLayer) Kind() Kind     { return KindControlLayer }
func (*InpaintMask) Kind() Kind      { return KindInpaintMask }
func (*RegionalGuidance) Kind() Kind { return KindRegionalGuidance }
func (*ReferenceImage) Kind() Kind   { return KindReferenceImage }

func (*RasterLayer) isEntity()      {}
func (*ControlLayer) isEntity()     {}
func (*InpaintMask) isEntity()      {}
func (*RegionalGuidance) isEntity() {}
func (*ReferenceImage) isEntity()   {}

func (e *ReferenceImage) EntityID() string { return e.ID }
func (e *ReferenceImage) Enabled() bool    { return e.IsEnabled }

// FillOf returns the fill of a mask entity.
func FillOf(e Entity) (Fill, bool) {
	switch v := e.(type) {
	case *InpaintMask:
		return v.Fill, true
	case *RegionalGuidance:
		return v.Fill, true
	default:
		return Fill{}, false
	}
}

// Collection is the ordered list of entities of one kind. Later entries
// draw on top of earlier ones.
type Collection struct {
	Entities []Entity
	IsHidden bool
}

// Index returns the position of id in c, or -1.
func (c *Collection) Index(id string) int {
	for i, e := range c.Entities {
		if e.EntityID() == id {
			return i
		}
	}
	return -1
}

// AspectRatio is the bbox aspect ratio and its lock state.
type AspectRatio struct {
	Value    float64 `json:"value" yaml:"value"`
	IsLocked bool    `json:"isLocked" yaml:"isLocked"`
}

// Bbox is the document region sent for generation.
type Bbox struct {
	Rect        geom.Rect   `json:"rect" yaml:"rect"`
	AspectRatio AspectRatio `json:"aspectRatio" yaml:"aspectRatio"`
}

// StagedImage is a candidate generation result. Offset is relative to the
// bbox origin.
type StagedImage struct {
	Image  ImageRef   `json:"image" yaml:"image"`
	Offset geom.Coord `json:"offset" yaml:"offset"`
}

// Staging holds the candidate results of the current generation batch.
type Staging struct {
	Images        []StagedImage
	SelectedIndex int
	IsStaging     bool
}

// Selected returns the selected staged image.
func (s Staging) Selected() (StagedImage, bool) {
	if s.SelectedIndex < 0 || s.SelectedIndex >= len(s.Images) {
		return StagedImage{}, false
	}
	return s.Images[s.SelectedIndex], true
}

// State is an immutable snapshot of the canvas document.
type State struct {
	RasterLayers     Collection
	ControlLayers    Collection
	RegionalGuidance Collection
	InpaintMasks     Collection
	ReferenceImages  Collection

	Bbox           Bbox
	Staging        Staging
	AutoAddBoardID string
}

// DefaultBboxSize is the edge length of the initial square bbox.
const DefaultBboxSize = 512

// New returns an empty document with the default bbox.
func New() *State {
	return &State{
		Bbox: Bbox{
			Rect:        geom.NewRect(0, 0, DefaultBboxSize, DefaultBboxSize),
			AspectRatio: AspectRatio{Value: 1},
		},
	}
}

// Collection returns the collection holding entities of kind k, or nil for
// an unknown kind.
func (s *State) Collection(k Kind) *Collection {
	switch k {
	case KindRasterLayer:
		return &s.RasterLayers
	case KindControlLayer:
		return &s.ControlLayers
	case KindRegionalGuidance:
		return &s.RegionalGuidance
	case KindInpaintMask:
		return &s.InpaintMasks
	case KindReferenceImage:
		return &s.ReferenceImages
	default:
		return nil
	}
}

// Entity looks up an entity of any kind by id.
func (s *State) Entity(id string) (Entity, bool) {
	for _, k := range append(DrawOrder[:len(DrawOrder):len(DrawOrder)], KindReferenceImage) {
		c := s.Collection(k)
		if i := c.Index(id); i >= 0 {
			return c.Entities[i], true
		}
	}
	return nil, false
}

// Drawables returns every drawable entity in draw order, bottom first.
func (s *State) Drawables() []Drawable {
	var out []Drawable
	for _, k := range DrawOrder {
		for _, e := range s.Collection(k).Entities {
			if d, ok := e.(Drawable); ok {
				out = append(out, d)
			}
		}
	}
	return out
}

// IsHidden reports whether the whole collection of kind k is hidden.
func (s *State) IsHidden(k Kind) bool {
	if c := s.Collection(k); c != nil {
		return c.IsHidden
	}
	return false
}
