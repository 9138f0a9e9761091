package state

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gogpu/canvas/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func brush(id string, pts ...float64) *BrushLine {
	return &BrushLine{ID: id, StrokeWidth: 4, Points: pts, Color: RGB(255, 0, 0)}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(nil)
	require.NoError(t, s.Dispatch(AddEntity{Kind: KindRasterLayer, ID: "r1", Name: "Background"}))
	require.NoError(t, s.Dispatch(AddEntity{Kind: KindRasterLayer, ID: "r2"}))
	require.NoError(t, s.Dispatch(AddEntity{Kind: KindInpaintMask, ID: "m1"}))
	return s
}

func TestDispatchNotifiesWithPrevious(t *testing.T) {
	s := newTestStore(t)
	var calls int
	var gotPrev, gotNext *State
	unsub := s.Subscribe(func(next, prev *State) {
		calls++
		gotNext, gotPrev = next, prev
	})

	before := s.State()
	require.NoError(t, s.Dispatch(SetOpacity{ID: "r1", Opacity: 0.5}))
	assert.Equal(t, 1, calls)
	assert.Same(t, before, gotPrev)
	assert.Same(t, s.State(), gotNext)

	unsub()
	require.NoError(t, s.Dispatch(SetOpacity{ID: "r1", Opacity: 0.25}))
	assert.Equal(t, 1, calls, "unsubscribed listener must not run")
}

func TestFailedActionLeavesStateUntouched(t *testing.T) {
	s := newTestStore(t)
	before, version := s.State(), s.Version()

	err := s.Dispatch(MoveEntity{ID: "missing", Position: geom.Coord{X: 1}})
	require.ErrorIs(t, err, ErrEntityNotFound)
	assert.Same(t, before, s.State())
	assert.Equal(t, version, s.Version())

	err = s.Dispatch(AddObject{ID: "ref", Object: brush("b")})
	require.ErrorIs(t, err, ErrEntityNotFound)

	require.NoError(t, s.Dispatch(AddEntity{Kind: KindReferenceImage, ID: "ref"}))
	err = s.Dispatch(AddObject{ID: "ref", Object: brush("b")})
	require.ErrorIs(t, err, ErrNotDrawable)
}

func TestCopyOnWriteKeepsUnchangedEntities(t *testing.T) {
	s := newTestStore(t)
	prev := s.State()
	require.NoError(t, s.Dispatch(AddObject{ID: "r1", Object: brush("b1", 0, 0, 10, 10)}))
	next := s.State()

	r1Prev, _ := prev.Entity("r1")
	r1Next, _ := next.Entity("r1")
	r2Prev, _ := prev.Entity("r2")
	r2Next, _ := next.Entity("r2")

	assert.NotSame(t, r1Prev, r1Next)
	assert.Same(t, r2Prev, r2Next)
	assert.False(t, SameObjects(r1Prev.(Drawable).Base().Objects, r1Next.(Drawable).Base().Objects))
	assert.Empty(t, r1Prev.(Drawable).Base().Objects, "previous snapshot must not change")

	require.NoError(t, s.Dispatch(SetOpacity{ID: "r1", Opacity: 0.3}))
	r1Opacity, _ := s.State().Entity("r1")
	assert.True(t, SameObjects(r1Next.(Drawable).Base().Objects, r1Opacity.(Drawable).Base().Objects),
		"an opacity change must keep the object list")
}

func TestAppendNeverSharesBackingArray(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Dispatch(AddObject{ID: "r1", Object: brush("a")}))
	require.NoError(t, s.Dispatch(AddObject{ID: "r1", Object: brush("b")}))
	mid := s.State()
	require.NoError(t, s.Dispatch(AddObject{ID: "r1", Object: brush("c")}))

	e1, _ := mid.Entity("r1")
	e2, _ := s.State().Entity("r1")
	assert.Len(t, e1.(Drawable).Base().Objects, 2)
	assert.Len(t, e2.(Drawable).Base().Objects, 3)
	assert.False(t, SameObjects(e1.(Drawable).Base().Objects, e2.(Drawable).Base().Objects))
}

func TestSelectOnlyFiresOnChange(t *testing.T) {
	s := newTestStore(t)
	var seen []bool
	Select(s, func(st *State) bool { return st.RasterLayers.IsHidden }, func(next, _ bool) {
		seen = append(seen, next)
	})

	require.NoError(t, s.Dispatch(SetOpacity{ID: "r1", Opacity: 0.1}))
	require.NoError(t, s.Dispatch(ToggleHidden{Kind: KindRasterLayer}))
	require.NoError(t, s.Dispatch(ToggleHidden{Kind: KindRasterLayer}))
	assert.Equal(t, []bool{true, false}, seen)
}

func TestArrangeEntity(t *testing.T) {
	s := NewStore(nil)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Dispatch(AddEntity{Kind: KindRasterLayer, ID: id}))
	}
	order := func() string {
		var ids []string
		for _, e := range s.State().RasterLayers.Entities {
			ids = append(ids, e.EntityID())
		}
		return strings.Join(ids, "")
	}

	tests := []struct {
		id   string
		to   Arrangement
		want string
	}{
		{"a", ArrangeForward, "bac"},
		{"a", ArrangeToFront, "bca"},
		{"a", ArrangeToFront, "bca"},
		{"c", ArrangeBackward, "cba"},
		{"a", ArrangeToBack, "acb"},
	}
	for _, tt := range tests {
		require.NoError(t, s.Dispatch(ArrangeEntity{ID: tt.id, To: tt.to}))
		assert.Equal(t, tt.want, order())
	}
}

func TestDuplicateEntity(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Dispatch(AddObject{ID: "r1", Object: brush("b1", 1, 2, 3, 4)}))
	require.NoError(t, s.Dispatch(DuplicateEntity{ID: "r1", NewID: "r1-copy"}))

	e, ok := s.State().Entity("r1-copy")
	require.True(t, ok)
	l := e.(Drawable).Base()
	assert.Equal(t, "Background (Copy)", l.Name)
	assert.Equal(t, KindRasterLayer, e.Kind())
	require.Len(t, l.Objects, 1)
	assert.Equal(t, "b1", l.Objects[0].ObjectID())

	orig, _ := s.State().Entity("r1")
	assert.False(t, SameObjects(orig.(Drawable).Base().Objects, l.Objects))
	assert.Equal(t, "r1-copy", s.State().RasterLayers.Entities[2].EntityID())
}

func TestConvertRasterToControl(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Dispatch(AddObject{ID: "r2", Object: brush("b1")}))
	require.NoError(t, s.Dispatch(ConvertRasterToControl{ID: "r2", NewID: "c1"}))

	_, ok := s.State().Entity("r2")
	assert.False(t, ok)
	e, ok := s.State().Entity("c1")
	require.True(t, ok)
	cl := e.(*ControlLayer)
	assert.True(t, cl.WithTransparencyEffect)
	assert.Len(t, cl.Objects, 1)

	require.NoError(t, s.Dispatch(ConvertControlToRaster{ID: "c1", NewID: "r3"}))
	_, ok = s.State().Entity("r3")
	assert.True(t, ok)
	assert.Empty(t, s.State().ControlLayers.Entities)
}

func TestNewIDsMustBeUnique(t *testing.T) {
	tests := []struct {
		name   string
		action Action
	}{
		{"duplicate onto itself", DuplicateEntity{ID: "r1", NewID: "r1"}},
		{"duplicate onto another kind", DuplicateEntity{ID: "r1", NewID: "m1"}},
		{"convert onto a sibling", ConvertRasterToControl{ID: "r1", NewID: "r2"}},
		{"convert onto another kind", ConvertRasterToControl{ID: "r1", NewID: "m1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			before := s.State()
			err := s.Dispatch(tt.action)
			require.ErrorIs(t, err, ErrDuplicateID)
			assert.Same(t, before, s.State())
		})
	}
}

func TestConvertMayKeepID(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Dispatch(ConvertRasterToControl{ID: "r1", NewID: "r1"}))
	e, ok := s.State().Entity("r1")
	require.True(t, ok)
	assert.Equal(t, KindControlLayer, e.Kind())
	assert.Equal(t, -1, s.State().RasterLayers.Index("r1"))
}

func TestRasterizeEntityReplacesObjects(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Dispatch(AddObject{ID: "r1", Object: brush("b1")}))

	img := NewImageObject(ImageRef{Name: "x.png", Width: 10, Height: 10})
	prev := s.State()
	require.NoError(t, s.Dispatch(RasterizeEntity{ID: "r1", Image: img, Position: geom.Coord{X: 5, Y: 6}}))
	assert.Same(t, prev, s.State(), "rasterizing without replacing must not change the document")

	require.NoError(t, s.Dispatch(RasterizeEntity{ID: "r1", Image: img, Position: geom.Coord{X: 5, Y: 6}, ReplaceObjects: true}))
	e, _ := s.State().Entity("r1")
	l := e.(Drawable).Base()
	require.Len(t, l.Objects, 1)
	assert.Same(t, img, l.Objects[0])
	assert.Equal(t, geom.Coord{X: 5, Y: 6}, l.Position)
}

func TestStagingAcceptCommitsRasterLayer(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Dispatch(SetBbox{Rect: geom.NewRect(64, 32, 512, 512)}))
	require.NoError(t, s.Dispatch(StartStaging{}))
	require.NoError(t, s.Dispatch(AddStagedImage{Image: StagedImage{Image: ImageRef{Name: "a.png", Width: 512, Height: 512}}}))
	require.NoError(t, s.Dispatch(AddStagedImage{Image: StagedImage{
		Image:  ImageRef{Name: "b.png", Width: 512, Height: 512},
		Offset: geom.Coord{X: 8, Y: -8},
	}}))
	require.NoError(t, s.Dispatch(SelectNextStagedImage{}))
	assert.Equal(t, 1, s.State().Staging.SelectedIndex)

	require.NoError(t, s.Dispatch(AcceptStagedImage{ID: "accepted"}))
	st := s.State()
	assert.Empty(t, st.Staging.Images)
	assert.False(t, st.Staging.IsStaging)

	e, ok := st.Entity("accepted")
	require.True(t, ok)
	l := e.(Drawable).Base()
	assert.Equal(t, geom.Coord{X: 72, Y: 24}, l.Position)
	require.Len(t, l.Objects, 1)
	assert.Equal(t, "b.png", l.Objects[0].(*ImageObject).Image.Name)

	assert.ErrorIs(t, s.Dispatch(AcceptStagedImage{}), ErrNoStagedImage)
}

func TestDiscardSelectedStagedImage(t *testing.T) {
	s := NewStore(nil)
	for _, name := range []string{"a", "b"} {
		require.NoError(t, s.Dispatch(AddStagedImage{Image: StagedImage{Image: ImageRef{Name: name}}}))
	}
	require.NoError(t, s.Dispatch(SelectStagedImage{Index: 1}))
	require.NoError(t, s.Dispatch(DiscardSelectedStagedImage{}))
	assert.Equal(t, 0, s.State().Staging.SelectedIndex)
	require.Len(t, s.State().Staging.Images, 1)

	require.NoError(t, s.Dispatch(DiscardSelectedStagedImage{}))
	assert.False(t, s.State().Staging.IsStaging)
	assert.Error(t, s.Dispatch(SelectStagedImage{Index: 0}))
}

func TestResetCanvasKeepsBboxSize(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Dispatch(SetBbox{Rect: geom.NewRect(100, 100, 768, 512)}))
	require.NoError(t, s.Dispatch(ResetCanvas{}))
	st := s.State()
	assert.Empty(t, st.RasterLayers.Entities)
	assert.Equal(t, geom.NewRect(0, 0, 768, 512), st.Bbox.Rect)
	assert.InDelta(t, 1.5, st.Bbox.AspectRatio.Value, 1e-9)
}

const sampleDoc = `
bbox:
  rect: {x: 0, y: 0, width: 64, height: 64}
autoAddBoardId: board-1
rasterLayers:
  entities:
    - id: bg
      name: Background
      position: {x: 4, y: 4}
      objects:
        - type: rect
          id: r
          rect: {x: 0, y: 0, width: 32, height: 32}
          color: {r: 0, g: 128, b: 255, a: 1}
        - type: brush_line
          id: b
          strokeWidth: 6
          points: [0, 0, 20, 20]
          color: {r: 255, g: 0, b: 0, a: 1}
          clip: {x: 0, y: 0, width: 16, height: 16}
inpaintMasks:
  isHidden: true
  entities:
    - id: mask
      opacity: 0.5
      fill: {style: grid, color: {r: 1, g: 2, b: 3, a: 1}}
      objects:
        - {type: eraser_line, id: e, strokeWidth: 2, points: [1, 1, 2, 2]}
referenceImages:
  entities:
    - id: ref
      isEnabled: false
      image: {image_name: ref.png, width: 8, height: 8}
`

func TestDecodeDocument(t *testing.T) {
	st, err := Decode(strings.NewReader(sampleDoc))
	require.NoError(t, err)

	assert.Equal(t, geom.NewRect(0, 0, 64, 64), st.Bbox.Rect)
	assert.Equal(t, 1.0, st.Bbox.AspectRatio.Value)
	assert.Equal(t, "board-1", st.AutoAddBoardID)

	bg, ok := st.Entity("bg")
	require.True(t, ok)
	l := bg.(Drawable).Base()
	assert.True(t, l.IsEnabled)
	assert.Equal(t, 1.0, l.Opacity)
	require.Len(t, l.Objects, 2)
	assert.IsType(t, &RectShape{}, l.Objects[0])
	line := l.Objects[1].(*BrushLine)
	assert.Equal(t, []float64{0, 0, 20, 20}, line.Points)
	require.NotNil(t, line.Clip)

	mask, ok := st.Entity("mask")
	require.True(t, ok)
	assert.Equal(t, FillGrid, mask.(*InpaintMask).Fill.Style)
	assert.True(t, st.InpaintMasks.IsHidden)

	ref, ok := st.Entity("ref")
	require.True(t, ok)
	assert.False(t, ref.Enabled())
	assert.Equal(t, "ref.png", ref.(*ReferenceImage).Image.Name)
}

func TestEncodeDecodePreservesDocument(t *testing.T) {
	st, err := Decode(strings.NewReader(sampleDoc))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, st))
	again, err := Decode(&buf)
	require.NoError(t, err)

	assert.Equal(t, st.Bbox, again.Bbox)
	assert.Equal(t, len(st.Drawables()), len(again.Drawables()))
	mask, _ := again.Entity("mask")
	assert.Equal(t, 0.5, mask.(*InpaintMask).Opacity)
	assert.Equal(t, FillGrid, mask.(*InpaintMask).Fill.Style)
}

func TestDecodeRejectsUnknownObjectType(t *testing.T) {
	_, err := Decode(strings.NewReader(`
rasterLayers:
  entities:
    - id: a
      objects:
        - {type: circle, id: c}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circle")
}
