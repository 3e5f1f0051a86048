package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/barasher/go-exiftool"
	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jis "github.com/dsoprea/go-jpeg-image-structure/v2"
)

// ImageWriter stores a capture time in an image's embedded EXIF block.
type ImageWriter interface {
	WriteImageTimestamp(path string, ts time.Time) error
}

// jpegExifWriter edits the EXIF APP1 segment of a JPEG directly.
type jpegExifWriter struct {
	allDates bool
}

func (w jpegExifWriter) WriteImageTimestamp(path string, ts time.Time) error {
	original, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", ErrWrite, path, err)
	}

	updated, err := w.rewrite(original, ts)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}

	if bytes.Equal(updated, original) {
		return nil
	}

	if err := writeFileAtomic(path, updated); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}
	return nil
}

// rewrite returns the JPEG bytes with the capture time set.
func (w jpegExifWriter) rewrite(data []byte, ts time.Time) ([]byte, error) {
	mc, err := jis.NewJpegMediaParser().ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parsing JPEG: %w", err)
	}
	sl, ok := mc.(*jis.SegmentList)
	if !ok {
		return nil, fmt.Errorf("unexpected JPEG media context %T", mc)
	}

	rootIb, err := w.rootBuilder(sl)
	if err != nil {
		return nil, err
	}

	value := ts.UTC().Format(exifDateTimeLayout)

	exifIb, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD/Exif")
	if err != nil {
		return nil, fmt.Errorf("getting Exif IFD: %w", err)
	}
	if err := exifIb.SetStandardWithName("DateTimeOriginal", value); err != nil {
		return nil, fmt.Errorf("setting DateTimeOriginal: %w", err)
	}
	if w.allDates {
		if err := exifIb.SetStandardWithName("DateTimeDigitized", value); err != nil {
			return nil, fmt.Errorf("setting DateTimeDigitized: %w", err)
		}
		if err := rootIb.SetStandardWithName("DateTime", value); err != nil {
			return nil, fmt.Errorf("setting DateTime: %w", err)
		}
	}

	if err := sl.SetExif(rootIb); err != nil {
		return nil, fmt.Errorf("encoding EXIF: %w", err)
	}

	var buf bytes.Buffer
	if err := sl.Write(&buf); err != nil {
		return nil, fmt.Errorf("writing JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// rootBuilder loads the existing EXIF block, or starts an empty one when the
// image has none. A present but unreadable block is an error.
func (w jpegExifWriter) rootBuilder(sl *jis.SegmentList) (*exif.IfdBuilder, error) {
	_, _, err := sl.FindExif()
	if err == nil {
		rootIb, err := sl.ConstructExifBuilder()
		if err != nil {
			return nil, fmt.Errorf("reading existing EXIF: %w", err)
		}
		return rootIb, nil
	}
	if !errors.Is(err, exif.ErrNoExif) {
		return nil, fmt.Errorf("locating EXIF: %w", err)
	}

	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, fmt.Errorf("getting EXIF mapping: %w", err)
	}
	ti := exif.NewTagIndex()
	return exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder), nil
}

// exiftoolWriter delegates to a stay-open exiftool process for containers the
// native writer does not handle. The process is started on first use.
type exiftoolWriter struct {
	binaryPath string
	allDates   bool

	et      *exiftool.Exiftool
	initErr error
}

func newExiftoolWriter(binaryPath string, allDates bool) *exiftoolWriter {
	return &exiftoolWriter{binaryPath: binaryPath, allDates: allDates}
}

func (w *exiftoolWriter) ensureExifTool() (*exiftool.Exiftool, error) {
	if w.et != nil || w.initErr != nil {
		return w.et, w.initErr
	}

	var opts []func(*exiftool.Exiftool) error
	if w.binaryPath != "" {
		opts = append(opts, exiftool.SetExiftoolBinaryPath(w.binaryPath))
	}
	w.et, w.initErr = exiftool.NewExiftool(opts...)
	return w.et, w.initErr
}

func (w *exiftoolWriter) WriteImageTimestamp(path string, ts time.Time) error {
	et, err := w.ensureExifTool()
	if err != nil {
		return fmt.Errorf("%w: unsupported format without exiftool: %v", ErrWrite, err)
	}

	if !isRegularFile(path) {
		return fmt.Errorf("%w: %s: not a regular file", ErrWrite, path)
	}

	// Only the date tags are sent; other tags stay as stored in the file.
	md := exiftool.EmptyFileMetadata()
	md.File = path
	value := ts.UTC().Format(exifDateTimeLayout)
	md.SetString("DateTimeOriginal", value)
	if w.allDates {
		md.SetString("CreateDate", value)
		md.SetString("ModifyDate", value)
	}

	fileInfos := []exiftool.FileMetadata{md}
	et.WriteMetadata(fileInfos)
	if fileInfos[0].Err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, fileInfos[0].Err)
	}
	return nil
}

func (w *exiftoolWriter) Close() error {
	if w.et == nil {
		return nil
	}
	err := w.et.Close()
	w.et = nil
	return err
}

// unsupportedImageWriter rejects every write; used for formats with no backend.
type unsupportedImageWriter struct {
	fileType FileType
}

func (w unsupportedImageWriter) WriteImageTimestamp(path string, _ time.Time) error {
	return fmt.Errorf("%w: %s: unsupported image format %v", ErrWrite, path, w.fileType)
}
