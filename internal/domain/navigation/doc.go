// Package navigation implements the client-side page shell: it intercepts
// same-origin link clicks, fetches page fragments as JSON, swaps them into
// the page root and keeps history, document metadata and the nav state in
// sync.
//
// Fragments are fetched once per path and cached for the lifetime of the
// page. Script modules named by a fragment are fetched and evaluated at
// most once. Any failure along the way degrades to a full document load.
package navigation
