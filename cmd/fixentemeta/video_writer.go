package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// videoCreationTimeLayout is what ffmpeg expects for the creation_time tag.
const videoCreationTimeLayout = "2006-01-02T15:04:05.000000Z"

// Remuxer produces a copy of inputPath with its container creation time set
// to ts. The returned file lives next to inputPath; the caller owns it.
type Remuxer interface {
	Remux(ctx context.Context, inputPath string, ts time.Time) (outputPath string, err error)
}

// ffmpegRemuxer stream-copies through ffmpeg, rewriting only metadata.
type ffmpegRemuxer struct {
	binaryPath string
}

func (r ffmpegRemuxer) binary() string {
	if r.binaryPath == "" {
		return "ffmpeg"
	}
	return r.binaryPath
}

// remuxArgs builds the ffmpeg command line for one file.
func (r ffmpegRemuxer) remuxArgs(inputPath, outputPath string, ts time.Time) []string {
	return []string{
		"-nostdin",
		"-loglevel", "error",
		"-y",
		"-i", inputPath,
		"-map", "0",
		"-c", "copy",
		"-map_metadata", "0",
		"-metadata", "creation_time=" + ts.UTC().Format(videoCreationTimeLayout),
		outputPath,
	}
}

func (r ffmpegRemuxer) Remux(ctx context.Context, inputPath string, ts time.Time) (string, error) {
	outputPath, err := createSiblingTemp(inputPath)
	if err != nil {
		return "", err
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.binary(), r.remuxArgs(inputPath, outputPath, ts)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("ffmpeg failed: %w: %s", err, msg)
		}
		return "", fmt.Errorf("ffmpeg failed: %w", err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("ffmpeg produced no output: %w", err)
	}
	if info.Size() == 0 {
		os.Remove(outputPath)
		return "", fmt.Errorf("ffmpeg produced an empty file")
	}

	return outputPath, nil
}

// videoWriter replaces a video with a remuxed copy carrying the new creation
// time. The original is untouched unless every step succeeds.
type videoWriter struct {
	remuxer Remuxer
}

func (w videoWriter) WriteVideoTimestamp(ctx context.Context, path string, fileType FileType, ts time.Time) error {
	outputPath, err := w.remuxer.Remux(ctx, path, ts)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}

	if err := verifyRemuxOutput(outputPath, fileType, ts); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}

	if err := replaceFile(outputPath, path); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}
	return nil
}

// verifyRemuxOutput checks the remuxed file is non-empty and, where the
// container can be read back, carries the requested creation time.
func verifyRemuxOutput(outputPath string, fileType FileType, ts time.Time) error {
	info, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("remux output missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("remux output is empty")
	}

	if !isISOBMFF(fileType) {
		return nil
	}
	got, err := extractVideoCreationTime(outputPath, fileType)
	if err != nil {
		return fmt.Errorf("verifying remux output: %w", err)
	}
	if !sameSecond(got, ts) {
		return fmt.Errorf("remux output has creation time %s, want %s", got.Format(time.RFC3339), ts.UTC().Format(time.RFC3339))
	}
	return nil
}
