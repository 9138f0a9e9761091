// Package cache provides the bounded LRU used for composite caches.
//
// Composite bitmaps, uploaded asset names and generation modes are keyed by
// structural hashes of their inputs. An entry is never invalidated
// explicitly: once the inputs change, the new hash simply misses and the old
// entry ages out of the LRU.
//
//	c := cache.New[structhash.Key, *image.RGBA](256)
//	c.Set(key, img)
//	img, ok := c.Get(key)
//
// # Thread Safety
//
// LRU is safe for concurrent use. It must not be copied after creation
// (it contains a mutex).
package cache
