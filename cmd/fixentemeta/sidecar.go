package main

import (
	"path/filepath"
	"strings"
)

// sidecarConventions lists, in lookup order, how an exported sidecar may be
// named relative to its media file.
var sidecarConventions = []func(mediaPath string) string{
	// IMG_001.jpg -> IMG_001.jpg.json
	func(mediaPath string) string {
		return mediaPath + ".json"
	},
	// IMG_001.jpg -> IMG_001.json
	func(mediaPath string) string {
		return strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath)) + ".json"
	},
}

// resolveSidecar returns the first existing sidecar for mediaPath.
func resolveSidecar(mediaPath string) (string, bool) {
	for _, convention := range sidecarConventions {
		candidate := convention(mediaPath)
		if candidate == mediaPath {
			continue
		}
		if isRegularFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}
