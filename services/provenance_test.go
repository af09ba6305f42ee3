package services

import (
	"testing"

	"github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildExif(t *testing.T, software string) []byte {
	t.Helper()
	im, err := exifcommon.NewIfdMappingWithStandard()
	require.NoError(t, err)
	ti := exif.NewTagIndex()
	ib := exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder)
	require.NoError(t, ib.SetStandardWithName("Software", software))
	raw, err := exif.NewIfdByteEncoder().EncodeToExif(ib)
	require.NoError(t, err)
	return raw
}

func TestDetectProvenanceEXIFSoftware(t *testing.T) {
	data := append([]byte{0xFF, 0xD8, 0xFF, 0xE1, 0x00, 0x00}, []byte("Exif\x00\x00")...)
	data = append(data, buildExif(t, "Midjourney v6")...)

	p, ok := DetectProvenance(data)
	require.True(t, ok)
	assert.Equal(t, "Midjourney", p.Provider)
	assert.Equal(t, "exif", p.Method)
}

func TestDetectProvenanceXMP(t *testing.T) {
	xmp := `<x:xmpmeta xmlns:x="adobe:ns:meta/"><rdf:RDF>` +
		`<Iptc4xmpExt:DigitalSourceType>http://cv.iptc.org/newscodes/digitalsourcetype/trainedAlgorithmicMedia</Iptc4xmpExt:DigitalSourceType>` +
		`<photoshop:Credit>Made with Google AI</photoshop:Credit></rdf:RDF></x:xmpmeta>`
	data := append(pngHeaderBytes(1024, 1024), []byte("iTXtXML:com.adobe.xmp\x00\x00\x00\x00\x00"+xmp)...)

	assert.Equal(t, []byte(xmp), ExtractXMP(data))

	p, ok := DetectProvenance(data)
	require.True(t, ok)
	assert.Equal(t, Provenance{Provider: "Google Imagen", Method: "xmp", Details: "IPTC + Credit"}, p)
}

func TestDetectProvenanceMidjourneyGUID(t *testing.T) {
	xmp := `<x:xmpmeta><rdf:Description DigitalSourceType="http://cv.iptc.org/newscodes/digitalsourcetype/trainedAlgorithmicMedia" ` +
		`DigitalImageGUID="3f2504e0-4f89-11d3-9a0c-0305e82c3301"/></x:xmpmeta>`
	p, ok := DetectProvenance([]byte(xmp))
	require.True(t, ok)
	assert.Equal(t, "Midjourney", p.Provider)
}

func TestDetectProvenanceC2PA(t *testing.T) {
	data := append(jpegHeaderBytes(0xC0, 1024, 1024), []byte("....jumb....c2pa.claim....")...)
	p, ok := DetectProvenance(data)
	require.True(t, ok)
	assert.Equal(t, "Unknown C2PA", p.Provider)
	assert.Equal(t, "c2pa", p.Method)

	data = append(data, []byte(`<x:xmpmeta>OpenAI DALL-E</x:xmpmeta>`)...)
	p, ok = DetectProvenance(data)
	require.True(t, ok)
	assert.Equal(t, "OpenAI", p.Provider)
}

func TestDetectProvenanceBinaryText(t *testing.T) {
	data := append(pngHeaderBytes(512, 768), []byte("\x00\x00\x01\x00tEXtparameters\x00a cat, Steps: 20")...)
	p, ok := DetectProvenance(data)
	require.True(t, ok)
	assert.Equal(t, "Stable Diffusion", p.Provider)
	assert.Equal(t, "binary", p.Method)
}

func TestDetectProvenanceNone(t *testing.T) {
	_, ok := DetectProvenance(nil)
	assert.False(t, ok)

	_, ok = DetectProvenance(pngHeaderBytes(10, 10))
	assert.False(t, ok)
}
