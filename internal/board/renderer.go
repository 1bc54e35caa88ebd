// Package board renders position snapshots as PNG images for the chat relay.
// Colors come from an embedded theme catalog; piece glyphs are rasterized
// from embedded SVGs.
package board

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/chess-study-bot/internal/movetree"
)

// MoveHighlight marks the origin and destination of the move that led to the
// rendered position.
type MoveHighlight struct {
	From nchess.Square
	To   nchess.Square
}

// RenderOptions controls a single snapshot.
type RenderOptions struct {
	Highlight   *MoveHighlight
	Marker      *nchess.Square // cursor square, drawn as a disc overlay
	Orientation movetree.Color // side shown at the bottom edge
	Header      string
	Footer      string
}

// Renderer produces a PNG snapshot of a position.
type Renderer interface {
	RenderPNG(ctx context.Context, board *nchess.Board, opts RenderOptions) ([]byte, error)
}

type svgRenderer struct {
	theme Theme
}

// NewRenderer builds a renderer using the named theme from the embedded
// catalog.
func NewRenderer(themeName string) (Renderer, error) {
	theme, err := LoadTheme(themeName)
	if err != nil {
		return nil, err
	}
	return &svgRenderer{theme: theme}, nil
}

const (
	squareSize   = 72
	boardSquares = 8
	boardSize    = squareSize * boardSquares
	sideMargin   = 30
	topMargin    = 54
	bottomMargin = 48
	panelHeight  = 26
	panelGap     = 14
	panelPadding = 12
	panelRadius  = 8
)

var (
	backgroundColor = color.NRGBA{R: 24, G: 26, B: 34, A: 255}
	panelColor      = color.NRGBA{R: 34, G: 37, B: 50, A: 250}
	panelTextColor  = color.NRGBA{R: 234, G: 238, B: 250, A: 255}
)

func (r *svgRenderer) RenderPNG(ctx context.Context, board *nchess.Board, opts RenderOptions) ([]byte, error) {
	if board == nil {
		return nil, fmt.Errorf("board is nil")
	}

	totalWidth := boardSize + sideMargin*2
	totalHeight := boardSize + topMargin + bottomMargin
	origin := image.Point{X: sideMargin, Y: topMargin}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	img := image.NewRGBA(image.Rect(0, 0, totalWidth, totalHeight))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	r.drawSquares(img, origin, opts.Orientation)
	r.drawHighlight(img, opts.Highlight, origin, opts.Orientation)
	if err := drawPieces(img, board, origin, opts.Orientation); err != nil {
		return nil, err
	}
	r.drawMarker(img, opts.Marker, origin, opts.Orientation)
	r.drawCoordinates(img, origin, opts.Orientation)
	r.drawPanels(img, origin, opts.Header, opts.Footer)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// squareRect maps a square to pixel coordinates honoring the orientation:
// with White at the bottom, rank 8 is the top row; flipped for Black.
func squareRect(sq nchess.Square, origin image.Point, orientation movetree.Color) image.Rectangle {
	col := int(sq.File())
	row := 7 - int(sq.Rank())
	if orientation == movetree.Black {
		col = 7 - col
		row = 7 - row
	}
	x := origin.X + col*squareSize
	y := origin.Y + row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

var (
	allRanks = []nchess.Rank{nchess.Rank1, nchess.Rank2, nchess.Rank3, nchess.Rank4, nchess.Rank5, nchess.Rank6, nchess.Rank7, nchess.Rank8}
	allFiles = []nchess.File{nchess.FileA, nchess.FileB, nchess.FileC, nchess.FileD, nchess.FileE, nchess.FileF, nchess.FileG, nchess.FileH}
)

func (r *svgRenderer) drawSquares(img *image.RGBA, origin image.Point, orientation movetree.Color) {
	for _, rank := range allRanks {
		for _, file := range allFiles {
			sq := nchess.NewSquare(file, rank)
			clr := r.theme.Light
			if (int(file)+int(rank))%2 == 0 {
				clr = r.theme.Dark
			}
			rect := squareRect(sq, origin, orientation)
			imagedraw.Draw(img, rect, image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
}

func drawPieces(img *image.RGBA, board *nchess.Board, origin image.Point, orientation movetree.Color) error {
	for sq, piece := range board.SquareMap() {
		if piece == nchess.NoPiece {
			continue
		}
		glyph, err := rasterizePiece(piece, squareSize)
		if err != nil {
			return err
		}
		rect := squareRect(sq, origin, orientation)
		imagedraw.Draw(img, rect, glyph, image.Point{}, imagedraw.Over)
	}
	return nil
}

func (r *svgRenderer) drawHighlight(img *image.RGBA, highlight *MoveHighlight, origin image.Point, orientation movetree.Color) {
	if highlight == nil {
		return
	}
	overlay := r.theme.Highlight
	overlay.A = 140
	drawSquareOverlay(img, squareRect(highlight.From, origin, orientation), overlay)
	drawSquareOverlay(img, squareRect(highlight.To, origin, orientation), overlay)
}

func (r *svgRenderer) drawMarker(img *image.RGBA, marker *nchess.Square, origin image.Point, orientation movetree.Color) {
	if marker == nil {
		return
	}
	rect := squareRect(*marker, origin, orientation)
	clr := r.theme.Marker
	clr.A = 170
	center := image.Point{
		X: rect.Min.X + squareSize/2,
		Y: rect.Min.Y + squareSize/2,
	}
	drawDisc(img, center, squareSize/5, clr)
}

func drawSquareOverlay(img *image.RGBA, rect image.Rectangle, clr color.Color) {
	imagedraw.Draw(img, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func (r *svgRenderer) drawCoordinates(img *image.RGBA, origin image.Point, orientation movetree.Color) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{
		Dst:  img,
		Face: face,
		Src:  image.NewUniform(r.theme.Coordinates),
	}
	ascent := face.Metrics().Ascent.Ceil()

	files := "abcdefgh"
	for col := 0; col < boardSquares; col++ {
		label := string(files[col])
		if orientation == movetree.Black {
			label = string(files[7-col])
		}
		centerX := origin.X + col*squareSize + squareSize/2
		baseline := origin.Y + boardSize + ascent + 6
		drawCenteredText(drawer, label, centerX, baseline)
	}
	for row := 0; row < boardSquares; row++ {
		rank := 8 - row
		if orientation == movetree.Black {
			rank = row + 1
		}
		centerY := origin.Y + row*squareSize + squareSize/2
		drawCenteredText(drawer, fmt.Sprintf("%d", rank), origin.X-sideMargin/2, centerY+ascent/2)
	}
}

func (r *svgRenderer) drawPanels(img *image.RGBA, origin image.Point, header, footer string) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Face: face}

	if text := strings.TrimSpace(header); text != "" {
		top := origin.Y - panelGap - panelHeight
		r.drawPanel(img, drawer, text, origin.X, top)
	}
	if text := strings.TrimSpace(footer); text != "" {
		top := origin.Y + boardSize + panelGap + 8
		r.drawPanel(img, drawer, text, origin.X, top)
	}
}

func (r *svgRenderer) drawPanel(img *image.RGBA, drawer *font.Drawer, text string, left, top int) {
	width := drawer.MeasureString(text).Round() + panelPadding*2
	if max := boardSize; width > max {
		width = max
	}
	rect := image.Rect(left, top, left+width, top+panelHeight)
	drawRoundedPanel(img, rect, panelRadius, panelColor)

	metrics := drawer.Face.Metrics()
	baseline := rect.Min.Y + (rect.Dy()+metrics.Ascent.Ceil()-metrics.Descent.Ceil())/2
	drawer.Src = image.NewUniform(panelTextColor)
	drawer.Dot = fixed.P(rect.Min.X+panelPadding, baseline)
	drawer.DrawString(text)
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func drawRoundedPanel(img *image.RGBA, rect image.Rectangle, radius int, clr color.Color) {
	if rect.Empty() {
		return
	}
	if radius < 0 {
		radius = 0
	}
	if m := rect.Dx() / 2; radius > m {
		radius = m
	}
	if m := rect.Dy() / 2; radius > m {
		radius = m
	}
	fill := image.NewUniform(clr)
	if radius == 0 {
		imagedraw.Draw(img, rect, fill, image.Point{}, imagedraw.Over)
		return
	}

	core := image.Rect(rect.Min.X+radius, rect.Min.Y, rect.Max.X-radius, rect.Max.Y)
	imagedraw.Draw(img, core, fill, image.Point{}, imagedraw.Over)
	left := image.Rect(rect.Min.X, rect.Min.Y+radius, rect.Min.X+radius, rect.Max.Y-radius)
	imagedraw.Draw(img, left, fill, image.Point{}, imagedraw.Over)
	right := image.Rect(rect.Max.X-radius, rect.Min.Y+radius, rect.Max.X, rect.Max.Y-radius)
	imagedraw.Draw(img, right, fill, image.Point{}, imagedraw.Over)

	corners := []image.Point{
		{rect.Min.X + radius, rect.Min.Y + radius},
		{rect.Max.X - radius - 1, rect.Min.Y + radius},
		{rect.Min.X + radius, rect.Max.Y - radius - 1},
		{rect.Max.X - radius - 1, rect.Max.Y - radius - 1},
	}
	for _, center := range corners {
		drawDisc(img, center, radius, clr)
	}
}

func drawDisc(img *image.RGBA, center image.Point, radius int, clr color.Color) {
	if radius <= 0 {
		blendPixel(img, center.X, center.Y, clr)
		return
	}
	rSquared := radius * radius
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y > rSquared {
				continue
			}
			blendPixel(img, center.X+x, center.Y+y, clr)
		}
	}
}

func blendPixel(img *image.RGBA, x, y int, clr color.Color) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}

	sr, sg, sb, sa := clr.RGBA()
	srcA := float64(sa) / 65535.0
	if srcA <= 0 {
		return
	}
	srcR := float64(sr) / 65535.0
	srcG := float64(sg) / 65535.0
	srcB := float64(sb) / 65535.0

	dst := img.RGBAAt(x, y)
	dstA := float64(dst.A) / 255.0

	var dstR, dstG, dstB float64
	if dstA > 0 {
		inv := 1.0 / dstA
		dstR = float64(dst.R) / 255.0 * inv
		dstG = float64(dst.G) / 255.0 * inv
		dstB = float64(dst.B) / 255.0 * inv
	}

	outA := srcA + dstA*(1-srcA)
	if outA <= 0 {
		img.SetRGBA(x, y, color.RGBA{})
		return
	}

	outR := (srcR*srcA + dstR*dstA*(1-srcA)) / outA
	outG := (srcG*srcA + dstG*dstA*(1-srcA)) / outA
	outB := (srcB*srcA + dstB*dstA*(1-srcA)) / outA

	img.SetRGBA(x, y, color.RGBA{
		R: floatToUint8(outR * outA * 255.0),
		G: floatToUint8(outG * outA * 255.0),
		B: floatToUint8(outB * outA * 255.0),
		A: floatToUint8(outA * 255.0),
	})
}

func floatToUint8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
