package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExifSummary(t *testing.T) {
	data := append([]byte{0xFF, 0xD8, 0xFF, 0xE1, 0x00, 0x00}, []byte("Exif\x00\x00")...)
	data = append(data, buildExif(t, "Camera Firmware 1.2")...)

	assert.Equal(t, map[string]string{"Software": "Camera Firmware 1.2"}, ExifSummary(data))
	assert.Nil(t, ExifSummary(pngHeaderBytes(10, 10)))
	assert.Nil(t, ExifSummary(nil))
}
