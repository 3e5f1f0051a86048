package main

import (
	"path/filepath"
	"strings"
)

type FileType string

const (
	// Picture Types
	JPEG FileType = "jpeg"
	TIFF FileType = "tiff"
	WEBP FileType = "webp"
	HEIF FileType = "heif"
	PNG  FileType = "png"

	// Video Types
	MP4     FileType = "mp4"
	MOV     FileType = "mov"
	M4V     FileType = "m4v"
	THREEGP FileType = "3gp"
	THREEG2 FileType = "3g2"
	MKV     FileType = "mkv"
	WEBM    FileType = "webm"
	AVI     FileType = "avi"
)

type MediaCategory string

const (
	Picture MediaCategory = "picture"
	Video   MediaCategory = "video"
)

var fileExtensionToFileType = map[string]FileType{
	// Picture Types
	"jpg": JPEG, "jpeg": JPEG, "jpe": JPEG, "jif": JPEG, "jfif": JPEG, "jfi": JPEG,
	"tiff": TIFF, "tif": TIFF,
	"webp": WEBP,
	"heif": HEIF, "heic": HEIF, "hif": HEIF,
	"png": PNG,

	// Video Types
	"mp4":  MP4,
	"mov":  MOV,
	"m4v":  M4V,
	"3gp":  THREEGP,
	"3g2":  THREEG2,
	"mkv":  MKV,
	"webm": WEBM,
	"avi":  AVI,
}

var fileTypeToMediaCategory = map[FileType]MediaCategory{
	JPEG: Picture,
	TIFF: Picture,
	WEBP: Picture,
	HEIF: Picture,
	PNG:  Picture,

	MP4:     Video,
	MOV:     Video,
	M4V:     Video,
	THREEGP: Video,
	THREEG2: Video,
	MKV:     Video,
	WEBM:    Video,
	AVI:     Video,
}

// getMediaTypeInfo classifies a file by its extension. Files that are neither
// a supported picture nor a supported video return empty values.
func getMediaTypeInfo(name string) (MediaCategory, FileType) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return "", ""
	}

	fileType, ok := fileExtensionToFileType[ext[1:]] // Remove the leading dot
	if !ok {
		return "", ""
	}

	category, ok := fileTypeToMediaCategory[fileType]
	if !ok {
		return "", ""
	}

	return category, fileType
}

// isISOBMFF reports whether the file type uses the ISO base media file format,
// i.e. carries a moov/mvhd box we can read back.
func isISOBMFF(fileType FileType) bool {
	switch fileType {
	case MP4, MOV, M4V, THREEGP, THREEG2:
		return true
	}
	return false
}
