package services

import (
	"encoding/binary"
	"errors"
	"io"
)

// ImageFormat identifies the container a header was read from.
type ImageFormat int

const (
	FormatUnknown ImageFormat = iota
	FormatPNG
	FormatJPEG
)

func (f ImageFormat) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatJPEG:
		return "jpeg"
	}
	return "unknown"
}

func (f ImageFormat) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *ImageFormat) UnmarshalText(b []byte) error {
	switch string(b) {
	case "png":
		*f = FormatPNG
	case "jpeg":
		*f = FormatJPEG
	default:
		*f = FormatUnknown
	}
	return nil
}

// ImageHeader is the pixel size read straight from an image header.
type ImageHeader struct {
	Width  uint32      `json:"width"`
	Height uint32      `json:"height"`
	Format ImageFormat `json:"format"`
}

// sniffState is the internal outcome of a header scan. needMore means the
// buffer ended before a decision could be made; a streaming caller may retry
// with a longer prefix. Both needMore and invalid are NotRecognized publicly.
type sniffState int

const (
	sniffOK sniffState = iota
	sniffNeedMore
	sniffInvalid
)

var pngSignature = [8]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

const (
	pngHeaderLen = 24
	maxPNGSide   = 1<<31 - 1
)

// JPEG marker codes used while walking segments.
const (
	markerTEM  = 0x01
	markerSOF0 = 0xC0
	markerSOF3 = 0xC3
	markerDHT  = 0xC4
	markerJPG  = 0xC8
	markerDAC  = 0xCC
	markerSOF5 = 0xC5
	markerSOFF = 0xCF
	markerRST0 = 0xD0
	markerRST7 = 0xD7
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
)

// SniffDimensions reads width and height from a PNG or JPEG header without
// decoding pixel data. It returns false for unsupported formats, malformed
// headers and buffers too short to decide. It never reads past len(b).
func SniffDimensions(b []byte) (ImageHeader, bool) {
	h, state := sniff(b)
	return h, state == sniffOK
}

func sniff(b []byte) (ImageHeader, sniffState) {
	if len(b) == 0 {
		return ImageHeader{}, sniffNeedMore
	}
	switch b[0] {
	case pngSignature[0]:
		return sniffPNG(b)
	case 0xFF:
		if len(b) < 2 {
			return ImageHeader{}, sniffNeedMore
		}
		if b[1] != markerSOI {
			return ImageHeader{}, sniffInvalid
		}
		return sniffJPEG(b)
	}
	return ImageHeader{}, sniffInvalid
}

func sniffPNG(b []byte) (ImageHeader, sniffState) {
	n := len(b)
	if n > len(pngSignature) {
		n = len(pngSignature)
	}
	for i := 0; i < n; i++ {
		if b[i] != pngSignature[i] {
			return ImageHeader{}, sniffInvalid
		}
	}
	if len(b) < pngHeaderLen {
		return ImageHeader{}, sniffNeedMore
	}
	if string(b[12:16]) != "IHDR" {
		return ImageHeader{}, sniffInvalid
	}
	w := binary.BigEndian.Uint32(b[16:20])
	h := binary.BigEndian.Uint32(b[20:24])
	if w == 0 || h == 0 || w > maxPNGSide || h > maxPNGSide {
		return ImageHeader{}, sniffInvalid
	}
	return ImageHeader{Width: w, Height: h, Format: FormatPNG}, sniffOK
}

func sniffJPEG(b []byte) (ImageHeader, sniffState) {
	i := 2 // past SOI
	for {
		if i >= len(b) {
			return ImageHeader{}, sniffNeedMore
		}
		if b[i] != 0xFF {
			return ImageHeader{}, sniffInvalid
		}
		// Any number of 0xFF fill bytes may precede the marker code.
		for i < len(b) && b[i] == 0xFF {
			i++
		}
		if i >= len(b) {
			return ImageHeader{}, sniffNeedMore
		}
		code := b[i]
		i++

		switch {
		case code == 0x00:
			// Stuffed byte outside entropy data.
			return ImageHeader{}, sniffInvalid
		case code == markerTEM, code == markerSOI, code >= markerRST0 && code <= markerRST7:
			continue
		case code == markerEOI, code == markerSOS:
			// No frame header before the image data.
			return ImageHeader{}, sniffInvalid
		}

		if i+2 > len(b) {
			return ImageHeader{}, sniffNeedMore
		}
		length := int(binary.BigEndian.Uint16(b[i : i+2]))
		if length < 2 {
			return ImageHeader{}, sniffInvalid
		}

		if isSOF(code) {
			// length(2) precision(1) height(2) width(2)
			if length < 7 {
				return ImageHeader{}, sniffInvalid
			}
			if i+7 > len(b) {
				return ImageHeader{}, sniffNeedMore
			}
			h := binary.BigEndian.Uint16(b[i+3 : i+5])
			w := binary.BigEndian.Uint16(b[i+5 : i+7])
			if w == 0 || h == 0 {
				return ImageHeader{}, sniffInvalid
			}
			return ImageHeader{Width: uint32(w), Height: uint32(h), Format: FormatJPEG}, sniffOK
		}
		i += length
	}
}

func isSOF(code byte) bool {
	if code >= markerSOF0 && code <= markerSOF3 {
		return true
	}
	if code < markerSOF5 || code > markerSOFF {
		return false
	}
	return code != markerJPG && code != markerDAC
}

const sniffChunk = 4096

// ErrNotRecognized is returned by SniffReader when the stream does not start
// with a PNG or JPEG header it can read.
var ErrNotRecognized = errors.New("image header not recognized")

// SniffReader reads from r in chunks until the header is recognized, proven
// invalid, the stream ends, or limit bytes have been consumed. The bytes read
// are returned so callers can reuse them.
func SniffReader(r io.Reader, limit int) (ImageHeader, []byte, error) {
	if limit <= 0 {
		limit = sniffChunk
	}
	buf := make([]byte, 0, min(limit, sniffChunk))
	for len(buf) < limit {
		want := min(sniffChunk, limit-len(buf))
		if cap(buf)-len(buf) < want {
			grown := make([]byte, len(buf), len(buf)+max(want, cap(buf)))
			copy(grown, buf)
			buf = grown
		}
		n, err := io.ReadFull(r, buf[len(buf):len(buf)+want])
		buf = buf[:len(buf)+n]

		h, state := sniff(buf)
		switch state {
		case sniffOK:
			return h, buf, nil
		case sniffInvalid:
			return ImageHeader{}, buf, ErrNotRecognized
		}

		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return ImageHeader{}, buf, ErrNotRecognized
			}
			return ImageHeader{}, buf, err
		}
	}
	return ImageHeader{}, buf, ErrNotRecognized
}
