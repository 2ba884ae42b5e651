/*
Package window builds the floating window shell and owns its gestures.

A Window holds its logical geometry, z-index, and active flag; the DOM is
rendered from that state and never read back. Open and close requests are
forwarded to an Activator (the lifecycle controller), which is the only
caller of SetActive.

Gestures arrive as pointer events:

	w.HeaderPointerDown(ev) // drag start, ignored while active
	w.HeaderPointerMove(ev)
	w.HeaderPointerUp(ev)   // suppresses the click that follows for one frame
	w.Click()               // requests activation unless suppressed
*/
package window
