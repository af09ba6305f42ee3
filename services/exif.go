package services

import (
	"strings"

	"github.com/dsoprea/go-exif/v3"
)

// exifSummaryTags are the tags worth showing an analyst. Camera make and
// capture time are the usual tells of a real photograph.
var exifSummaryTags = map[string]bool{
	"Make":             true,
	"Model":            true,
	"LensModel":        true,
	"Software":         true,
	"DateTimeOriginal": true,
	"DateTime":         true,
	"Artist":           true,
	"Copyright":        true,
	"ImageDescription": true,
	"GPSLatitude":      true,
	"GPSLongitude":     true,
}

// ExifSummary returns the analyst-relevant EXIF tags found in data, or nil
// when there is no readable EXIF block. The first occurrence of a tag wins.
func ExifSummary(data []byte) map[string]string {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		return nil
	}
	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil
	}
	m := map[string]string{}
	for _, e := range entries {
		if !exifSummaryTags[e.TagName] {
			continue
		}
		if _, seen := m[e.TagName]; seen {
			continue
		}
		if v := strings.TrimSpace(e.Formatted); v != "" {
			m[e.TagName] = v
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
