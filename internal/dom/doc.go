// Package dom is the headless page the shell drives: an x/net/html tree
// behind a mutex, the history stack, and element helpers built on goquery.
//
// Every read or write of the tree goes through Document.Do so that
// concurrent completions (fetches, mounts, timers) never interleave
// mutations.
package dom
