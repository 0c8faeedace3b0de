// Package bigscore renders short strings, such as a pronunciation score, as
// large block art using half-block characters.
package bigscore

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/math/fixed"
)

var (
	faceOnce sync.Once
	face     font.Face

	mu    sync.Mutex
	cache = make(map[string]string)
)

func loadFace() font.Face {
	faceOnce.Do(func() {
		f, err := truetype.Parse(gobold.TTF)
		if err != nil {
			return
		}
		face = truetype.NewFace(f, &truetype.Options{
			Size:    64,
			DPI:     72,
			Hinting: font.HintingFull,
		})
	})
	return face
}

// Render draws text rows terminal lines tall. The width follows the glyphs'
// aspect ratio. It returns "" when there is nothing to draw.
func Render(text string, rows int) string {
	if text == "" || rows <= 0 {
		return ""
	}

	key := fmt.Sprintf("%s/%d", text, rows)
	mu.Lock()
	defer mu.Unlock()
	if cached, ok := cache[key]; ok {
		return cached
	}

	rendered := render(text, rows)
	cache[key] = rendered
	return rendered
}

func render(text string, rows int) string {
	fc := loadFace()
	if fc == nil {
		return ""
	}

	metrics := fc.Metrics()
	padding := 4
	width := font.MeasureString(fc, text).Ceil() + padding*2
	height := (metrics.Ascent + metrics.Descent).Ceil() + padding*2

	src := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(src, src.Bounds(), &image.Uniform{color.Black}, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  src,
		Src:  image.White,
		Face: fc,
		Dot:  fixed.P(padding, padding+metrics.Ascent.Ceil()),
	}
	d.DrawString(text)

	ink := inkBounds(src)
	if ink.Empty() {
		return ""
	}
	cropped := src.SubImage(ink).(*image.Gray)

	// Two pixel rows per terminal line.
	targetHeight := rows * 2
	targetWidth := ink.Dx() * targetHeight / ink.Dy()
	if targetWidth < 1 {
		targetWidth = 1
	}

	return toHalfBlocks(scaleDown(cropped, targetWidth, targetHeight), targetWidth, rows)
}

// inkBounds returns the smallest rectangle containing every lit pixel.
func inkBounds(img *image.Gray) image.Rectangle {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X, b.Min.Y
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.GrayAt(x, y).Y == 0 {
				continue
			}
			minX, minY = min(minX, x), min(minY, y)
			maxX, maxY = max(maxX, x+1), max(maxY, y+1)
		}
	}
	if minX >= maxX || minY >= maxY {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX, maxY)
}

// scaleDown scales a grayscale image using area averaging.
func scaleDown(src *image.Gray, dstWidth, dstHeight int) *image.Gray {
	sb := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, dstWidth, dstHeight))

	xRatio := float64(sb.Dx()) / float64(dstWidth)
	yRatio := float64(sb.Dy()) / float64(dstHeight)

	for dy := 0; dy < dstHeight; dy++ {
		for dx := 0; dx < dstWidth; dx++ {
			sx1 := sb.Min.X + int(float64(dx)*xRatio)
			sy1 := sb.Min.Y + int(float64(dy)*yRatio)
			sx2 := min(sb.Min.X+int(float64(dx+1)*xRatio), sb.Max.X)
			sy2 := min(sb.Min.Y+int(float64(dy+1)*yRatio), sb.Max.Y)
			// Upscaling: sample at least one pixel.
			sx2 = max(sx2, sx1+1)
			sy2 = max(sy2, sy1+1)

			var sum, count int
			for sy := sy1; sy < sy2 && sy < sb.Max.Y; sy++ {
				for sx := sx1; sx < sx2 && sx < sb.Max.X; sx++ {
					sum += int(src.GrayAt(sx, sy).Y)
					count++
				}
			}
			if count > 0 {
				dst.SetGray(dx, dy, color.Gray{Y: uint8(sum / count)})
			}
		}
	}

	return dst
}

// toHalfBlocks converts a grayscale image to half-block art.
func toHalfBlocks(img *image.Gray, cols, rows int) string {
	const threshold = 60

	var b strings.Builder
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			top := brightness(img, col, row*2) > threshold
			bottom := brightness(img, col, row*2+1) > threshold

			switch {
			case top && bottom:
				b.WriteRune('█')
			case top:
				b.WriteRune('▀')
			case bottom:
				b.WriteRune('▄')
			default:
				b.WriteRune(' ')
			}
		}
		if row < rows-1 {
			b.WriteRune('\n')
		}
	}
	return b.String()
}

func brightness(img *image.Gray, x, y int) uint8 {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return 0
	}
	return img.GrayAt(x, y).Y
}
