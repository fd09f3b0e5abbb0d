package vision

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	white   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	red     = color.RGBA{R: 230, G: 40, B: 40, A: 255}
	green   = color.RGBA{R: 40, G: 200, B: 80, A: 255}
	amber   = color.RGBA{R: 255, G: 190, B: 0, A: 255}
	panelBg = color.RGBA{R: 0, G: 0, B: 0, A: 200}
	border  = color.RGBA{R: 40, G: 40, B: 40, A: 255}
)

// drawLabel draws text on a filled background with its baseline at (x, y)
// and returns the label height so callers can stack lines.
func drawLabel(mat *gocv.Mat, text string, x, y int, textColor color.RGBA, fontScale float64) int {
	const padding = 4
	thickness := 1
	if fontScale >= 1 {
		thickness = 2
	}
	size := gocv.GetTextSize(text, gocv.FontHersheySimplex, fontScale, thickness)

	bg := image.Rect(x-padding, y-size.Y-padding, x+size.X+padding, y+padding)
	gocv.Rectangle(mat, bg, panelBg, -1)
	gocv.Rectangle(mat, bg, border, 1)

	gocv.PutText(mat, text, image.Pt(x, y), gocv.FontHersheySimplex, fontScale, textColor, thickness)
	return size.Y + 2*padding
}
