package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/abema/go-mp4"
	"github.com/evanoberholster/imagemeta"
	"github.com/evanoberholster/imagemeta/exif2"
)

// Seconds between the QuickTime epoch (1904-01-01) and the Unix epoch.
const appleEpochOffset = 2082844800

// exifDateTimeLayout is the EXIF "YYYY:MM:DD HH:MM:SS" layout.
const exifDateTimeLayout = "2006:01:02 15:04:05"

func extractCreationDateTimeFromMetadata(fileInfo FileInfo) (time.Time, error) {
	switch fileInfo.MediaCategory {
	case Picture:
		return extractImageCaptureTime(fileInfo.Path)
	case Video:
		return extractVideoCreationTime(fileInfo.Path, fileInfo.FileType)
	}

	return time.Time{}, fmt.Errorf("unsupported media category: %v", fileInfo.MediaCategory)
}

// extractImageCaptureTime returns the EXIF DateTimeOriginal of an image.
func extractImageCaptureTime(path string) (time.Time, error) {
	ex, err := decodeImageExif(path)
	if err != nil {
		return time.Time{}, err
	}

	ts := ex.DateTimeOriginal()
	if ts.IsZero() {
		return time.Time{}, fmt.Errorf("DateTimeOriginal not set")
	}
	return ts, nil
}

// imageDatesCurrent reports whether DateTimeOriginal, DateTimeDigitized and
// DateTime all hold the wall clock of ts.
func imageDatesCurrent(path string, ts time.Time) (bool, error) {
	ex, err := decodeImageExif(path)
	if err != nil {
		return false, err
	}

	for _, v := range []time.Time{ex.DateTimeOriginal(), ex.CreateDate(), ex.ModifyDate()} {
		if v.IsZero() || !sameExifWallClock(v, ts) {
			return false, nil
		}
	}
	return true, nil
}

func decodeImageExif(path string) (ex exif2.Exif, err error) {
	file, err := os.Open(path)
	if err != nil {
		return ex, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	ex, err = decodeExifSafe(file, path)
	if err != nil {
		return ex, fmt.Errorf("decode metadata: %w", err)
	}
	return ex, nil
}

// decodeExifSafe protects against panics from the decoder on malformed files.
func decodeExifSafe(r io.ReadSeeker, path string) (ex exif2.Exif, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic while decoding %s: %v", path, rec)
		}
	}()

	ex, err = imagemeta.Decode(r)
	return ex, err
}

// extractVideoCreationTime reads the mvhd creation time of an ISO-BMFF file.
func extractVideoCreationTime(path string, fileType FileType) (time.Time, error) {
	if !isISOBMFF(fileType) {
		return time.Time{}, fmt.Errorf("creation time reading not supported for %v", fileType)
	}

	file, err := os.Open(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	boxes, err := mp4.ExtractBoxWithPayload(file, nil, mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeMvhd()})
	if err != nil {
		return time.Time{}, fmt.Errorf("reading mvhd: %w", err)
	}
	if len(boxes) != 1 {
		return time.Time{}, fmt.Errorf("expected one mvhd box, found %d", len(boxes))
	}
	mvhd, ok := boxes[0].Payload.(*mp4.Mvhd)
	if !ok {
		return time.Time{}, fmt.Errorf("unexpected mvhd payload %T", boxes[0].Payload)
	}

	var appleSeconds uint64
	if mvhd.GetVersion() == 0 {
		appleSeconds = uint64(mvhd.CreationTimeV0)
	} else {
		appleSeconds = mvhd.CreationTimeV1
	}
	if appleSeconds == 0 {
		return time.Time{}, fmt.Errorf("creation time not set")
	}

	return time.Unix(int64(appleSeconds)-appleEpochOffset, 0).UTC(), nil
}

// sameSecond compares two instants at the precision both metadata formats keep.
func sameSecond(a, b time.Time) bool {
	return a.Unix() == b.Unix()
}

// sameExifWallClock compares an EXIF value, which has no zone, against the
// wall clock the writer would store.
func sameExifWallClock(exifValue, want time.Time) bool {
	return exifValue.Format(exifDateTimeLayout) == want.UTC().Format(exifDateTimeLayout)
}
