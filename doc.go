// Package canvas renders a layered image-generation canvas on the CPU.
//
// # Overview
//
// A canvas document (see package state) holds raster layers, control
// layers, regional guidance, inpaint masks and reference images, each
// made of vector and image objects. A [Manager] watches a state.Store and
// keeps one entity adapter per drawable entity in step with it. From the
// adapters it builds composites of the raster layers and of the inpaint
// masks, uploads them to an asset store, and derives the generation mode
// for the bbox.
//
// # Quick Start
//
//	store := state.NewStore(nil)
//	assetStore := assets.NewMemory()
//	m, err := canvas.New(store, canvas.WithAssetStore(assetStore))
//	if err != nil {
//	    return err
//	}
//	defer m.Destroy()
//
//	store.Dispatch(state.AddEntity{Kind: state.KindRasterLayer, Objects: objects})
//	mode, err := m.GenerationMode(ctx)
//
// # Caching
//
// Every composite, upload and generation mode is cached under the
// structural hash of its inputs. Renaming or locking an entity never
// invalidates anything; changing its objects, position or opacity does.
//
// # Threading
//
// A Manager belongs to the goroutine that dispatches to its store. Image
// loads run in the background and their results are applied by
// [Manager.Settle], which every composite query calls first.
//
// # Architecture
//
// The engine is organized into:
//   - Document: state (model, store, codec), geom, structhash
//   - Rendering: render (per-object renderers), entity (adapters), raster
//   - Composition: compositor, staging, stage (viewport), scene (tree)
//   - Storage: assets (store contract, memory and directory stores)
package canvas
