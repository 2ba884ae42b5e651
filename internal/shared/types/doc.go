// Package types provides shared data structures for the window shell.
//
// Core Types:
//   - WindowConfig: Author-supplied description of a floating window
//   - ContentType: Scene or embed discriminator
//   - PagePayload: Fragment payload for in-place navigation
//   - FragmentResponse: Wire shape of a fragment request
//   - HistoryState: State object stored with history entries
//
// Example Usage:
//
//	cfg := types.WindowConfig{
//	    ID:      "planetary",
//	    Title:   "planetary",
//	    SceneID: "pulseField",
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package types
