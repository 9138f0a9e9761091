// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render draws the objects of one canvas entity on the CPU.
//
// An [ObjectRenderer] keeps one renderer per object of its host entity
// and caches the group as a single bitmap keyed by the objects it was
// drawn from. Brush lines, eraser lines, rectangles and images are
// supported; eraser lines punch holes in everything drawn before them.
//
// # Key Principle
//
// Cached bitmaps are immutable. A change to the objects builds a new
// bitmap and swaps it in, so the debounced preview refresh can read the
// last group from another goroutine without locking.
//
// # Images
//
// Image objects are drawn from an assets.Loader. With a task queue in the
// [Env] the loads run in the background and their results apply on the
// owner goroutine when the queue is drained. Until then the renderer
// reports Loading and a new image is drawn as nothing.
//
// # Rasterization
//
// [ObjectRenderer.Rasterize] renders a region, uploads it to the asset
// store once per distinct content and optionally replaces the entity's
// objects with the uploaded image. [Image] wraps a single image renderer
// for callers outside an entity, such as the staging area.
package render
