package state

import (
	"fmt"
	"slices"

	"github.com/gogpu/canvas/geom"
	"github.com/jinzhu/copier"
)

// Action is a document change applied by Store.Dispatch.
//
// Reducers copy on write: entities that do not change keep their pointer,
// and a changed object list always gets a fresh backing array, so
// consumers can detect changes by identity.
type Action interface {
	apply(s *State) (*State, error)
}

// AddEntity appends a new entity to the collection of its kind.
// An empty ID is replaced with a generated one.
type AddEntity struct {
	Kind     Kind
	ID       string
	Name     string
	Position geom.Coord
	Objects  []Object
	// Opacity defaults to 1 when nil.
	Opacity *float64
	// Fill overrides the default fill of mask kinds.
	Fill *Fill
	// Image is the reference image of a reference image entity.
	Image *ImageRef
}

func (a AddEntity) apply(s *State) (*State, error) {
	id := a.ID
	if id == "" {
		id = NewID(string(a.Kind))
	}
	if _, ok := s.Entity(id); ok {
		return nil, duplicateID(id)
	}
	layer := Layer{
		ID:        id,
		Name:      a.Name,
		IsEnabled: true,
		Opacity:   1,
		Position:  a.Position,
		Objects:   slices.Clip(slices.Clone(a.Objects)),
	}
	if a.Opacity != nil {
		layer.Opacity = *a.Opacity
	}

	var e Entity
	switch a.Kind {
	case KindRasterLayer:
		e = &RasterLayer{Layer: layer}
	case KindControlLayer:
		e = &ControlLayer{Layer: layer, WithTransparencyEffect: true}
	case KindInpaintMask:
		fill := Fill{Style: FillDiagonal, Color: RGB(255, 122, 0)}
		if a.Fill != nil {
			fill = *a.Fill
		}
		e = &InpaintMask{Layer: layer, Fill: fill}
	case KindRegionalGuidance:
		fill := Fill{Style: FillSolid, Color: RGB(121, 157, 219)}
		if a.Fill != nil {
			fill = *a.Fill
		}
		e = &RegionalGuidance{Layer: layer, Fill: fill}
	case KindReferenceImage:
		e = &ReferenceImage{ID: id, Name: a.Name, IsEnabled: true, Image: a.Image}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, a.Kind)
	}

	next := s.clone()
	c := next.Collection(a.Kind)
	c.Entities = append(slices.Clip(c.Entities), e)
	return next, nil
}

// DeleteEntity removes an entity.
type DeleteEntity struct{ ID string }

func (a DeleteEntity) apply(s *State) (*State, error) {
	e, ok := s.Entity(a.ID)
	if !ok {
		return nil, notFound(a.ID)
	}
	next := s.clone()
	c := next.Collection(e.Kind())
	c.Entities = slices.DeleteFunc(slices.Clone(c.Entities), func(x Entity) bool {
		return x.EntityID() == a.ID
	})
	return next, nil
}

// DuplicateEntity appends a copy of an entity to its collection. The copy
// gets NewID (generated when empty) and its name suffixed with " (Copy)".
type DuplicateEntity struct {
	ID    string
	NewID string
}

func (a DuplicateEntity) apply(s *State) (*State, error) {
	e, ok := s.Entity(a.ID)
	if !ok {
		return nil, notFound(a.ID)
	}
	id := a.NewID
	if id == "" {
		id = NewID(string(e.Kind()))
	}
	if _, ok := s.Entity(id); ok {
		return nil, duplicateID(id)
	}

	dup, err := duplicate(e, id)
	if err != nil {
		return nil, err
	}
	next := s.clone()
	c := next.Collection(e.Kind())
	c.Entities = append(slices.Clip(c.Entities), dup)
	return next, nil
}

func duplicate(e Entity, id string) (Entity, error) {
	if ref, ok := e.(*ReferenceImage); ok {
		var dup ReferenceImage
		if err := copier.CopyWithOption(&dup, ref, copier.Option{DeepCopy: true}); err != nil {
			return nil, fmt.Errorf("state: duplicate %s: %w", ref.ID, err)
		}
		dup.ID = id
		dup.Name = copyName(ref.Name)
		return &dup, nil
	}

	src := e.(Drawable).Base()
	layer := *src
	layer.ID = id
	layer.Name = copyName(src.Name)
	// Objects are immutable, so the copy shares them in a fresh list.
	layer.Objects = slices.Clip(slices.Clone(src.Objects))

	out := copyEntity(e)
	*out.(Drawable).Base() = layer
	return out, nil
}

func copyName(name string) string {
	if name == "" {
		return ""
	}
	return name + " (Copy)"
}

// ResetEntity re-enables an entity and clears its objects and position.
type ResetEntity struct{ ID string }

func (a ResetEntity) apply(s *State) (*State, error) {
	return updateLayer(s, a.ID, func(l *Layer) {
		l.IsEnabled = true
		l.Objects = []Object{}
		l.Position = geom.Coord{}
	})
}

// ToggleEnabled flips an entity's enabled flag.
type ToggleEnabled struct{ ID string }

func (a ToggleEnabled) apply(s *State) (*State, error) {
	return updateEntity(s, a.ID, func(e Entity) error {
		switch v := e.(type) {
		case *ReferenceImage:
			v.IsEnabled = !v.IsEnabled
		case Drawable:
			v.Base().IsEnabled = !v.Base().IsEnabled
		}
		return nil
	})
}

// ToggleLocked flips an entity's locked flag.
type ToggleLocked struct{ ID string }

func (a ToggleLocked) apply(s *State) (*State, error) {
	return updateEntity(s, a.ID, func(e Entity) error {
		switch v := e.(type) {
		case *ReferenceImage:
			v.IsLocked = !v.IsLocked
		case Drawable:
			v.Base().IsLocked = !v.Base().IsLocked
		}
		return nil
	})
}

// MoveEntity sets an entity's position.
type MoveEntity struct {
	ID       string
	Position geom.Coord
}

func (a MoveEntity) apply(s *State) (*State, error) {
	return updateLayer(s, a.ID, func(l *Layer) { l.Position = a.Position })
}

// SetOpacity sets an entity's opacity, clamped to [0, 1].
type SetOpacity struct {
	ID      string
	Opacity float64
}

func (a SetOpacity) apply(s *State) (*State, error) {
	return updateLayer(s, a.ID, func(l *Layer) { l.Opacity = min(max(a.Opacity, 0), 1) })
}

// SetFillColor changes the fill color of a mask entity.
type SetFillColor struct {
	ID    string
	Color Color
}

func (a SetFillColor) apply(s *State) (*State, error) {
	return updateFill(s, a.ID, func(f *Fill) { f.Color = a.Color })
}

// SetFillStyle changes the fill style of a mask entity.
type SetFillStyle struct {
	ID    string
	Style string
}

func (a SetFillStyle) apply(s *State) (*State, error) {
	return updateFill(s, a.ID, func(f *Fill) { f.Style = a.Style })
}

// SetTransparencyEffect toggles the lightness-to-alpha effect of a control
// layer.
type SetTransparencyEffect struct {
	ID      string
	Enabled bool
}

func (a SetTransparencyEffect) apply(s *State) (*State, error) {
	return updateEntity(s, a.ID, func(e Entity) error {
		cl, ok := e.(*ControlLayer)
		if !ok {
			return fmt.Errorf("state: %s is not a control layer", a.ID)
		}
		cl.WithTransparencyEffect = a.Enabled
		return nil
	})
}

// AddObject appends an object to a drawable entity.
type AddObject struct {
	ID     string
	Object Object
}

func (a AddObject) apply(s *State) (*State, error) {
	return updateLayer(s, a.ID, func(l *Layer) {
		l.Objects = append(slices.Clip(l.Objects), a.Object)
	})
}

// RemoveObject drops an object from a drawable entity.
type RemoveObject struct {
	ID       string
	ObjectID string
}

func (a RemoveObject) apply(s *State) (*State, error) {
	return updateLayer(s, a.ID, func(l *Layer) {
		l.Objects = slices.DeleteFunc(slices.Clone(l.Objects), func(o Object) bool {
			return o.ObjectID() == a.ObjectID
		})
	})
}

// RasterizeEntity records the result of rasterizing an entity. With
// ReplaceObjects the entity's objects become the single image and its
// position moves to Position; otherwise the document is unchanged.
type RasterizeEntity struct {
	ID             string
	Image          *ImageObject
	Position       geom.Coord
	ReplaceObjects bool
}

func (a RasterizeEntity) apply(s *State) (*State, error) {
	if !a.ReplaceObjects {
		if _, ok := s.Entity(a.ID); !ok {
			return nil, notFound(a.ID)
		}
		return s, nil
	}
	return updateLayer(s, a.ID, func(l *Layer) {
		l.Objects = []Object{a.Image}
		l.Position = a.Position
	})
}

// ToggleHidden flips the hidden flag of a whole collection.
type ToggleHidden struct{ Kind Kind }

func (a ToggleHidden) apply(s *State) (*State, error) {
	if !a.Kind.IsDrawable() {
		return s, nil
	}
	next := s.clone()
	c := next.Collection(a.Kind)
	c.IsHidden = !c.IsHidden
	return next, nil
}

// Arrangement moves an entity within its collection.
type Arrangement int

// Arrangements.
const (
	ArrangeForward Arrangement = iota
	ArrangeBackward
	ArrangeToFront
	ArrangeToBack
)

// ArrangeEntity changes an entity's draw order within its collection.
type ArrangeEntity struct {
	ID string
	To Arrangement
}

func (a ArrangeEntity) apply(s *State) (*State, error) {
	e, ok := s.Entity(a.ID)
	if !ok {
		return nil, notFound(a.ID)
	}
	next := s.clone()
	c := next.Collection(e.Kind())
	list := slices.Clone(c.Entities)
	i := c.Index(a.ID)

	var j int
	switch a.To {
	case ArrangeForward:
		j = min(i+1, len(list)-1)
	case ArrangeBackward:
		j = max(i-1, 0)
	case ArrangeToFront:
		j = len(list) - 1
	case ArrangeToBack:
		j = 0
	}
	if i == j {
		return s, nil
	}
	list = slices.Delete(list, i, i+1)
	list = slices.Insert(list, j, e)
	c.Entities = list
	return next, nil
}

// ConvertRasterToControl turns a raster layer into a control layer with
// the transparency effect enabled. The converted layer is appended to the
// control layers under NewID (generated when empty).
type ConvertRasterToControl struct {
	ID    string
	NewID string
}

func (a ConvertRasterToControl) apply(s *State) (*State, error) {
	return convert(s, a.ID, a.NewID, KindRasterLayer, func(l Layer) Entity {
		return &ControlLayer{Layer: l, WithTransparencyEffect: true}
	})
}

// ConvertControlToRaster turns a control layer into a raster layer.
type ConvertControlToRaster struct {
	ID    string
	NewID string
}

func (a ConvertControlToRaster) apply(s *State) (*State, error) {
	return convert(s, a.ID, a.NewID, KindControlLayer, func(l Layer) Entity {
		return &RasterLayer{Layer: l}
	})
}

func convert(s *State, id, newID string, from Kind, build func(Layer) Entity) (*State, error) {
	e, ok := s.Entity(id)
	if !ok {
		return nil, notFound(id)
	}
	if e.Kind() != from {
		return nil, fmt.Errorf("state: %s is a %s, want %s", id, e.Kind(), from)
	}
	layer := *e.(Drawable).Base()
	converted := build(layer)
	if newID == "" {
		newID = NewID(string(converted.Kind()))
	}
	// The converted layer may keep its own id.
	if _, ok := s.Entity(newID); ok && newID != id {
		return nil, duplicateID(newID)
	}
	converted.(Drawable).Base().ID = newID

	next := s.clone()
	src := next.Collection(from)
	src.Entities = slices.DeleteFunc(slices.Clone(src.Entities), func(x Entity) bool {
		return x.EntityID() == id
	})
	dst := next.Collection(converted.Kind())
	dst.Entities = append(slices.Clip(dst.Entities), converted)
	return next, nil
}

// SetReferenceImage replaces the image of a reference image entity. A nil
// image clears it.
type SetReferenceImage struct {
	ID    string
	Image *ImageRef
}

func (a SetReferenceImage) apply(s *State) (*State, error) {
	return updateEntity(s, a.ID, func(e Entity) error {
		ref, ok := e.(*ReferenceImage)
		if !ok {
			return fmt.Errorf("state: %s is not a reference image", a.ID)
		}
		ref.Image = a.Image
		return nil
	})
}

// SetBbox moves or resizes the bbox. The aspect ratio follows the new
// rect and is unlocked.
type SetBbox struct{ Rect geom.Rect }

func (a SetBbox) apply(s *State) (*State, error) {
	if a.Rect.IsEmpty() {
		return nil, fmt.Errorf("state: empty bbox %+v", a.Rect)
	}
	next := s.clone()
	next.Bbox.Rect = a.Rect
	next.Bbox.AspectRatio = AspectRatio{Value: a.Rect.Width / a.Rect.Height}
	return next, nil
}

// SetAutoAddBoard sets the board that gallery saves go to.
type SetAutoAddBoard struct{ BoardID string }

func (a SetAutoAddBoard) apply(s *State) (*State, error) {
	next := s.clone()
	next.AutoAddBoardID = a.BoardID
	return next, nil
}

// DeleteAllEntities empties every collection.
type DeleteAllEntities struct{}

func (DeleteAllEntities) apply(s *State) (*State, error) {
	next := s.clone()
	next.RasterLayers = Collection{}
	next.ControlLayers = Collection{}
	next.RegionalGuidance = Collection{}
	next.InpaintMasks = Collection{}
	next.ReferenceImages = Collection{}
	return next, nil
}

// ResetCanvas restores the initial document, keeping the bbox size and
// the auto-add board.
type ResetCanvas struct{}

func (ResetCanvas) apply(s *State) (*State, error) {
	next := New()
	next.Bbox.Rect.Width = s.Bbox.Rect.Width
	next.Bbox.Rect.Height = s.Bbox.Rect.Height
	next.Bbox.AspectRatio = AspectRatio{Value: s.Bbox.Rect.Width / s.Bbox.Rect.Height}
	next.AutoAddBoardID = s.AutoAddBoardID
	return next, nil
}

func (s *State) clone() *State {
	next := *s
	return &next
}

func duplicateID(id string) error {
	return fmt.Errorf("%w %q", ErrDuplicateID, id)
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrEntityNotFound, id)
}

// copyEntity returns a shallow copy of e with its own struct.
func copyEntity(e Entity) Entity {
	switch v := e.(type) {
	case *RasterLayer:
		c := *v
		return &c
	case *ControlLayer:
		c := *v
		return &c
	case *InpaintMask:
		c := *v
		return &c
	case *RegionalGuidance:
		c := *v
		return &c
	case *ReferenceImage:
		c := *v
		return &c
	default:
		panic(fmt.Sprintf("state: unknown entity type %T", e))
	}
}

// updateEntity replaces the entity id with a copy modified by fn.
func updateEntity(s *State, id string, fn func(Entity) error) (*State, error) {
	e, ok := s.Entity(id)
	if !ok {
		return nil, notFound(id)
	}
	updated := copyEntity(e)
	if err := fn(updated); err != nil {
		return nil, err
	}
	next := s.clone()
	c := next.Collection(e.Kind())
	list := slices.Clone(c.Entities)
	list[c.Index(id)] = updated
	c.Entities = list
	return next, nil
}

func updateLayer(s *State, id string, fn func(*Layer)) (*State, error) {
	return updateEntity(s, id, func(e Entity) error {
		d, ok := e.(Drawable)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotDrawable, id)
		}
		fn(d.Base())
		return nil
	})
}

func updateFill(s *State, id string, fn func(*Fill)) (*State, error) {
	return updateEntity(s, id, func(e Entity) error {
		switch v := e.(type) {
		case *InpaintMask:
			fn(&v.Fill)
		case *RegionalGuidance:
			fn(&v.Fill)
		default:
			return fmt.Errorf("state: %s has no fill", id)
		}
		return nil
	})
}
