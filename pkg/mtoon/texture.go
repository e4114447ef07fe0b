package mtoon

import "image"

// Texture is an identity-comparable reference to a source image.
// Two materials share a texture iff they hold the same *Texture
// pointer; pixel content is never compared.
type Texture struct {
	Name   string
	Image  image.Image // nil until decoded
	Width  int
	Height int
	Source int // image index in the source container, -1 if synthesized
}

// SizeKnown reports whether the texture carries valid pixel dimensions.
func (t *Texture) SizeKnown() bool {
	return t != nil && t.Width > 0 && t.Height > 0
}
