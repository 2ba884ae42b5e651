/*
Package scene maps scene identifiers to factories of mountable content.

A scene must implement Mounter. Resizer and Unmounter are optional and
are resolved once, when the instance is created, into a Capability whose
hooks are nil when unsupported:

	reg := scene.NewRegistry()
	_ = reg.Register("pulseField", func() scene.Mounter { return newPulseField() })

	capability, err := reg.Create("pulseField")
	if err != nil {
		return err // ErrUnknownScene or ErrMissingMount
	}
	err = capability.Mount(ctx, scene.MountContext{Canvas: canvas, Container: viewport, Config: cfg})

Embed windows do not go through the registry; NewEmbed builds their
iframe capability directly.
*/
package scene
