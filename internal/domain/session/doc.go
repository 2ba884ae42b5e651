// Package session ties the window components of one page session together.
//
// A Manager is created once per document and owns:
//   - the scene registry page modules register into
//   - the placement engine and its per-layer packing cache
//   - focus and z-order shared by every layer
//   - one lifecycle controller per bound window layer
//   - the reveal choreographer
//
// Binding follows navigation:
//  1. The shell swaps a fragment in and publishes a navigation completion
//  2. Controllers of layers no longer in the document are torn down
//  3. The new layer's manifest is packed and its windows are built
//  4. The reveal choreographer staggers the windows into view
//
// Example Usage:
//
//	m := session.NewManager(session.Deps{Doc: doc, Bus: shell.Bus(), Catalogue: cat}, session.DefaultOptions())
//	m.Attach()
//	defer m.Close()
//	err := m.Start(payload.ID)
package session
