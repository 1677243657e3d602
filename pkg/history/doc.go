// Package history defines the navigation host the sync engine runs against.
//
// A Host exposes the two address-mutating entry points (push a new history
// entry, replace the current one) as swappable Primitive values, the current
// Location, and a popstate signal for browser-driven back/forward.
//
// Primitives are swappable so the navbridge package can wrap them and observe
// every commit, including commits made by code that knows nothing about
// querysync, the same way a page would patch window.history.
//
// Memory is a complete in-process Host with a back/forward stack:
//
//	h, _ := history.NewMemory("/items?page=2#top")
//	h.PushState(nil, "", "/items?page=3#top")
//	h.Back()                  // fires popstate
//	h.Location().RawQuery     // "page=2"
package history
