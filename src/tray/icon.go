package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"runtime"
	"sync"
)

const iconSize = 32

var (
	iconOnce  sync.Once
	iconBytes []byte
)

// Icon returns the tray icon in the format systray expects on this platform:
// a PNG-in-ICO container on Windows and a plain PNG elsewhere.
func Icon() []byte {
	iconOnce.Do(func() {
		data := iconPNG()
		if runtime.GOOS == "windows" {
			data = wrapICO(data, iconSize)
		}
		iconBytes = data
	})
	return iconBytes
}

// iconPNG draws a dashed selection frame around a filled dot.
func iconPNG() []byte {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	frame := color.NRGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0xff}
	dot := color.NRGBA{R: 0xe8, G: 0x6a, B: 0x9a, A: 0xff}

	const lo, hi = 3, iconSize - 4
	for i := lo; i <= hi; i++ {
		if (i/3)%2 == 1 {
			continue
		}
		for _, w := range []int{0, 1} {
			img.SetNRGBA(i, lo+w, frame)
			img.SetNRGBA(i, hi-w, frame)
			img.SetNRGBA(lo+w, i, frame)
			img.SetNRGBA(hi-w, i, frame)
		}
	}
	c, r := iconSize/2, iconSize/5
	for y := c - r; y <= c+r; y++ {
		for x := c - r; x <= c+r; x++ {
			if (x-c)*(x-c)+(y-c)*(y-c) <= r*r {
				img.SetNRGBA(x, y, dot)
			}
		}
	}

	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// wrapICO embeds one PNG image in an ICO container.
func wrapICO(pngData []byte, size int) []byte {
	var buf bytes.Buffer
	// ICONDIR
	_ = binary.Write(&buf, binary.LittleEndian, [3]uint16{0, 1, 1})
	// ICONDIRENTRY
	buf.WriteByte(byte(size % 256))
	buf.WriteByte(byte(size % 256))
	buf.WriteByte(0) // palette
	buf.WriteByte(0) // reserved
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))  // planes
	_ = binary.Write(&buf, binary.LittleEndian, uint16(32)) // bpp
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pngData)))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(6+16))
	buf.Write(pngData)
	return buf.Bytes()
}
