package pdf

import "github.com/bugzmanov/bookokrat/internal/pdf/docmodel"

// These are aliased from docmodel so that internal/pdf/toc can depend on
// the engine-facing shapes without importing this package (which itself
// imports toc for RenderService's DocumentInfo), avoiding an import cycle.
type (
	Outline     = docmodel.Outline
	Document    = docmodel.Document
	EnginePage  = docmodel.EnginePage
	Engine      = docmodel.Engine
	ImageData   = docmodel.ImageData
	PixelFormat = docmodel.PixelFormat
	CharPos     = docmodel.CharPos
	LineBounds  = docmodel.LineBounds
	LinkRect    = docmodel.LinkRect
	LinkTarget  = docmodel.LinkTarget
)

const (
	FormatRGB  = docmodel.FormatRGB
	FormatRGBA = docmodel.FormatRGBA
)
