// Package registry provides a generic thread-safe registry for values
// indexed by an ordered key.
//
// Keys are cmp.Ordered so listings are deterministic: Keys, Values and All
// always walk entries in ascending key order. The tools package uses it to
// hold tools by name and the CLI uses it to look up workflows.
//
// # Basic Usage
//
//	r := registry.New[string, int]()
//	if err := r.Register("one", 1); err != nil {
//	    // errors.Is(err, registry.ErrDuplicate)
//	}
//
//	value, err := r.Lookup("one")
//
// Register refuses to overwrite; use Replace for upserts.
//
// # Lazy Initialization
//
// GetOrCreate is atomic: the factory runs at most once per key, even under
// concurrent access.
//
//	stores := registry.New[string, checkpoint.Store]()
//	store := stores.GetOrCreate("memory", func() checkpoint.Store {
//	    return checkpoint.NewMemoryStore()
//	})
//
// # Thread Safety
//
// All methods are safe for concurrent use. All iterates over a snapshot,
// so the registry may be modified inside the loop.
package registry
