package state

import (
	"fmt"
	"slices"
)

// StartStaging marks the beginning of a generation batch.
type StartStaging struct{}

func (StartStaging) apply(s *State) (*State, error) {
	next := s.clone()
	next.Staging.IsStaging = true
	return next, nil
}

// AddStagedImage appends a candidate result. The first image added is
// selected.
type AddStagedImage struct{ Image StagedImage }

func (a AddStagedImage) apply(s *State) (*State, error) {
	next := s.clone()
	next.Staging.IsStaging = true
	next.Staging.Images = append(slices.Clip(s.Staging.Images), a.Image)
	if len(next.Staging.Images) == 1 {
		next.Staging.SelectedIndex = 0
	}
	return next, nil
}

// SelectStagedImage selects the staged image at Index.
type SelectStagedImage struct{ Index int }

func (a SelectStagedImage) apply(s *State) (*State, error) {
	if a.Index < 0 || a.Index >= len(s.Staging.Images) {
		return nil, fmt.Errorf("state: staged image index %d out of range [0, %d)", a.Index, len(s.Staging.Images))
	}
	next := s.clone()
	next.Staging.SelectedIndex = a.Index
	return next, nil
}

// SelectNextStagedImage advances the selection, wrapping around.
type SelectNextStagedImage struct{}

func (SelectNextStagedImage) apply(s *State) (*State, error) {
	n := len(s.Staging.Images)
	if n == 0 {
		return s, nil
	}
	next := s.clone()
	next.Staging.SelectedIndex = (s.Staging.SelectedIndex + 1) % n
	return next, nil
}

// SelectPrevStagedImage moves the selection back, wrapping around.
type SelectPrevStagedImage struct{}

func (SelectPrevStagedImage) apply(s *State) (*State, error) {
	n := len(s.Staging.Images)
	if n == 0 {
		return s, nil
	}
	next := s.clone()
	next.Staging.SelectedIndex = (s.Staging.SelectedIndex - 1 + n) % n
	return next, nil
}

// DiscardSelectedStagedImage drops the selected candidate. Discarding the
// last candidate ends staging.
type DiscardSelectedStagedImage struct{}

func (DiscardSelectedStagedImage) apply(s *State) (*State, error) {
	if _, ok := s.Staging.Selected(); !ok {
		return nil, ErrNoStagedImage
	}
	next := s.clone()
	i := s.Staging.SelectedIndex
	next.Staging.Images = slices.Delete(slices.Clone(s.Staging.Images), i, i+1)
	if len(next.Staging.Images) == 0 {
		next.Staging = Staging{}
		return next, nil
	}
	next.Staging.SelectedIndex = min(i, len(next.Staging.Images)-1)
	return next, nil
}

// AcceptStagedImage commits the selected candidate as a new raster layer
// positioned at the bbox origin plus the image offset, then clears
// staging. An empty ID is replaced with a generated one.
type AcceptStagedImage struct{ ID string }

func (a AcceptStagedImage) apply(s *State) (*State, error) {
	img, ok := s.Staging.Selected()
	if !ok {
		return nil, ErrNoStagedImage
	}
	add := AddEntity{
		Kind:     KindRasterLayer,
		ID:       a.ID,
		Position: s.Bbox.Rect.Origin().Add(img.Offset),
		Objects:  []Object{NewImageObject(img.Image)},
	}
	next, err := add.apply(s)
	if err != nil {
		return nil, err
	}
	next.Staging = Staging{}
	return next, nil
}

// ResetStaging discards all candidates.
type ResetStaging struct{}

func (ResetStaging) apply(s *State) (*State, error) {
	next := s.clone()
	next.Staging = Staging{}
	return next, nil
}
