package state

import (
	"fmt"
	"io"

	"github.com/gogpu/canvas/geom"
	"gopkg.in/yaml.v3"
)

// Documents are stored as YAML. JSON documents decode too, since YAML is a
// superset of JSON.

type documentFile struct {
	Bbox             Bbox          `yaml:"bbox"`
	AutoAddBoardID   string        `yaml:"autoAddBoardId,omitempty"`
	RasterLayers     collectionDoc `yaml:"rasterLayers"`
	ControlLayers    collectionDoc `yaml:"controlLayers"`
	RegionalGuidance collectionDoc `yaml:"regionalGuidance"`
	InpaintMasks     collectionDoc `yaml:"inpaintMasks"`
	ReferenceImages  collectionDoc `yaml:"referenceImages"`
	Staging          stagingDoc    `yaml:"staging,omitempty"`
}

type collectionDoc struct {
	IsHidden bool        `yaml:"isHidden,omitempty"`
	Entities []entityDoc `yaml:"entities"`
}

type stagingDoc struct {
	Images        []StagedImage `yaml:"images,omitempty"`
	SelectedIndex int           `yaml:"selectedIndex,omitempty"`
	IsStaging     bool          `yaml:"isStaging,omitempty"`
}

type entityDoc struct {
	ID                     string      `yaml:"id"`
	Name                   string      `yaml:"name,omitempty"`
	IsEnabled              *bool       `yaml:"isEnabled,omitempty"`
	IsLocked               bool        `yaml:"isLocked,omitempty"`
	Opacity                *float64    `yaml:"opacity,omitempty"`
	Position               geom.Coord  `yaml:"position"`
	Objects                []objectDoc `yaml:"objects,omitempty"`
	Fill                   *fillDoc    `yaml:"fill,omitempty"`
	WithTransparencyEffect *bool       `yaml:"withTransparencyEffect,omitempty"`
	PositivePrompt         string      `yaml:"positivePrompt,omitempty"`
	NegativePrompt         string      `yaml:"negativePrompt,omitempty"`
	Image                  *ImageRef   `yaml:"image,omitempty"`
}

type fillDoc struct {
	Style string `yaml:"style"`
	Color Color  `yaml:"color"`
}

type objectDoc struct {
	Type        ObjectType `yaml:"type"`
	ID          string     `yaml:"id"`
	StrokeWidth float64    `yaml:"strokeWidth,omitempty"`
	Points      []float64  `yaml:"points,omitempty,flow"`
	Color       *Color     `yaml:"color,omitempty"`
	Clip        *geom.Rect `yaml:"clip,omitempty"`
	Rect        *geom.Rect `yaml:"rect,omitempty"`
	Image       *ImageRef  `yaml:"image,omitempty"`
}

// Decode reads a document.
func Decode(r io.Reader) (*State, error) {
	var doc documentFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("state: decode document: %w", err)
	}

	s := New()
	if !doc.Bbox.Rect.IsEmpty() {
		s.Bbox = doc.Bbox
		if s.Bbox.AspectRatio.Value == 0 {
			s.Bbox.AspectRatio.Value = s.Bbox.Rect.Width / s.Bbox.Rect.Height
		}
	}
	s.AutoAddBoardID = doc.AutoAddBoardID
	s.Staging = Staging{
		Images:        doc.Staging.Images,
		SelectedIndex: doc.Staging.SelectedIndex,
		IsStaging:     doc.Staging.IsStaging,
	}

	seen := make(map[string]bool)
	for kind, c := range map[Kind]collectionDoc{
		KindRasterLayer:      doc.RasterLayers,
		KindControlLayer:     doc.ControlLayers,
		KindRegionalGuidance: doc.RegionalGuidance,
		KindInpaintMask:      doc.InpaintMasks,
		KindReferenceImage:   doc.ReferenceImages,
	} {
		dst := s.Collection(kind)
		dst.IsHidden = c.IsHidden
		for _, ed := range c.Entities {
			if ed.ID == "" {
				ed.ID = NewID(string(kind))
			}
			if seen[ed.ID] {
				return nil, duplicateID(ed.ID)
			}
			seen[ed.ID] = true
			e, err := ed.entity(kind)
			if err != nil {
				return nil, err
			}
			dst.Entities = append(dst.Entities, e)
		}
	}
	return s, nil
}

func (ed entityDoc) entity(kind Kind) (Entity, error) {
	enabled := ed.IsEnabled == nil || *ed.IsEnabled
	if kind == KindReferenceImage {
		return &ReferenceImage{ID: ed.ID, Name: ed.Name, IsEnabled: enabled, IsLocked: ed.IsLocked, Image: ed.Image}, nil
	}

	layer := Layer{
		ID:        ed.ID,
		Name:      ed.Name,
		IsEnabled: enabled,
		IsLocked:  ed.IsLocked,
		Opacity:   1,
		Position:  ed.Position,
		Objects:   make([]Object, 0, len(ed.Objects)),
	}
	if ed.Opacity != nil {
		layer.Opacity = *ed.Opacity
	}
	for i, od := range ed.Objects {
		o, err := od.object()
		if err != nil {
			return nil, fmt.Errorf("state: entity %s object %d: %w", ed.ID, i, err)
		}
		layer.Objects = append(layer.Objects, o)
	}

	fill := func(def Fill) Fill {
		if ed.Fill == nil {
			return def
		}
		return Fill{Style: ed.Fill.Style, Color: ed.Fill.Color}
	}

	switch kind {
	case KindRasterLayer:
		return &RasterLayer{Layer: layer}, nil
	case KindControlLayer:
		effect := ed.WithTransparencyEffect == nil || *ed.WithTransparencyEffect
		return &ControlLayer{Layer: layer, WithTransparencyEffect: effect}, nil
	case KindInpaintMask:
		return &InpaintMask{Layer: layer, Fill: fill(Fill{Style: FillDiagonal, Color: RGB(255, 122, 0)})}, nil
	case KindRegionalGuidance:
		return &RegionalGuidance{
			Layer:          layer,
			Fill:           fill(Fill{Style: FillSolid, Color: RGB(121, 157, 219)}),
			PositivePrompt: ed.PositivePrompt,
			NegativePrompt: ed.NegativePrompt,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
}

func (od objectDoc) object() (Object, error) {
	if od.ID == "" {
		od.ID = NewID(string(od.Type))
	}
	color := RGB(0, 0, 0)
	if od.Color != nil {
		color = *od.Color
	}
	switch od.Type {
	case TypeBrushLine:
		return &BrushLine{ID: od.ID, StrokeWidth: od.StrokeWidth, Points: od.Points, Color: color, Clip: od.Clip}, nil
	case TypeEraserLine:
		return &EraserLine{ID: od.ID, StrokeWidth: od.StrokeWidth, Points: od.Points, Clip: od.Clip}, nil
	case TypeRect:
		if od.Rect == nil {
			return nil, fmt.Errorf("rect object %s has no rect", od.ID)
		}
		return &RectShape{ID: od.ID, Rect: *od.Rect, Color: color}, nil
	case TypeImage:
		if od.Image == nil {
			return nil, fmt.Errorf("image object %s has no image", od.ID)
		}
		return &ImageObject{ID: od.ID, Image: *od.Image}, nil
	default:
		return nil, fmt.Errorf("unknown object type %q", od.Type)
	}
}

// Encode writes s as a YAML document.
func Encode(w io.Writer, s *State) error {
	doc := documentFile{
		Bbox:             s.Bbox,
		AutoAddBoardID:   s.AutoAddBoardID,
		RasterLayers:     encodeCollection(&s.RasterLayers),
		ControlLayers:    encodeCollection(&s.ControlLayers),
		RegionalGuidance: encodeCollection(&s.RegionalGuidance),
		InpaintMasks:     encodeCollection(&s.InpaintMasks),
		ReferenceImages:  encodeCollection(&s.ReferenceImages),
		Staging: stagingDoc{
			Images:        s.Staging.Images,
			SelectedIndex: s.Staging.SelectedIndex,
			IsStaging:     s.Staging.IsStaging,
		},
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("state: encode document: %w", err)
	}
	return enc.Close()
}

func encodeCollection(c *Collection) collectionDoc {
	out := collectionDoc{IsHidden: c.IsHidden, Entities: make([]entityDoc, 0, len(c.Entities))}
	for _, e := range c.Entities {
		out.Entities = append(out.Entities, encodeEntity(e))
	}
	return out
}

func encodeEntity(e Entity) entityDoc {
	enabled := e.Enabled()
	if ref, ok := e.(*ReferenceImage); ok {
		return entityDoc{ID: ref.ID, Name: ref.Name, IsEnabled: &enabled, IsLocked: ref.IsLocked, Image: ref.Image}
	}

	l := e.(Drawable).Base()
	opacity := l.Opacity
	ed := entityDoc{
		ID:        l.ID,
		Name:      l.Name,
		IsEnabled: &enabled,
		IsLocked:  l.IsLocked,
		Opacity:   &opacity,
		Position:  l.Position,
	}
	for _, o := range l.Objects {
		ed.Objects = append(ed.Objects, encodeObject(o))
	}
	switch v := e.(type) {
	case *ControlLayer:
		effect := v.WithTransparencyEffect
		ed.WithTransparencyEffect = &effect
	case *InpaintMask:
		ed.Fill = &fillDoc{Style: v.Fill.Style, Color: v.Fill.Color}
	case *RegionalGuidance:
		ed.Fill = &fillDoc{Style: v.Fill.Style, Color: v.Fill.Color}
		ed.PositivePrompt = v.PositivePrompt
		ed.NegativePrompt = v.NegativePrompt
	}
	return ed
}

func encodeObject(o Object) objectDoc {
	od := objectDoc{Type: o.Type(), ID: o.ObjectID()}
	switch v := o.(type) {
	case *BrushLine:
		c := v.Color
		od.StrokeWidth, od.Points, od.Color, od.Clip = v.StrokeWidth, v.Points, &c, v.Clip
	case *EraserLine:
		od.StrokeWidth, od.Points, od.Clip = v.StrokeWidth, v.Points, v.Clip
	case *RectShape:
		c, r := v.Color, v.Rect
		od.Color, od.Rect = &c, &r
	case *ImageObject:
		img := v.Image
		od.Image = &img
	}
	return od
}
