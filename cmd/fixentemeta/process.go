package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// FileInfo represents a media file picked up by the scan
type FileInfo struct {
	Path          string
	MediaCategory MediaCategory
	FileType      FileType
	Sidecar       string
	Timestamp     time.Time
}

// Outcome is the per-file result recorded in the report.
type Outcome string

const (
	OutcomeUpdated      Outcome = "updated"
	OutcomeUnchanged    Outcome = "unchanged"
	OutcomePlanned      Outcome = "planned"
	OutcomeNoSidecar    Outcome = "no_sidecar"
	OutcomeMissingField Outcome = "missing_field"
	OutcomeWriteError   Outcome = "write_error"
)

// FileResult is one report line.
type FileResult struct {
	Path         string        `json:"path"`
	Category     MediaCategory `json:"category"`
	Sidecar      string        `json:"sidecar,omitempty"`
	Timestamp    string        `json:"timestamp,omitempty"`
	Outcome      Outcome       `json:"outcome"`
	Reason       string        `json:"reason,omitempty"`
	DigestBefore string        `json:"digest_before,omitempty"`
	DigestAfter  string        `json:"digest_after,omitempty"`
}

// Report is the outcome of one run over a directory tree.
type Report struct {
	Root           string          `json:"root"`
	DryRun         bool            `json:"dry_run"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
	Ignored        int             `json:"ignored"`
	BytesRewritten int64           `json:"bytes_rewritten"`
	Counts         map[Outcome]int `json:"counts"`
	Files          []FileResult    `json:"files"`
}

func newReport(root string, dryRun bool) *Report {
	return &Report{
		Root:      root,
		DryRun:    dryRun,
		StartedAt: time.Now().UTC(),
		Counts:    make(map[Outcome]int),
	}
}

func (r *Report) add(res FileResult) {
	r.Files = append(r.Files, res)
	r.Counts[res.Outcome]++
}

// Finalize stamps the finish time.
func (r *Report) Finalize() {
	r.FinishedAt = time.Now().UTC()
}

// Candidates is the number of image and video files considered.
func (r *Report) Candidates() int {
	return len(r.Files)
}

// Failures lists the files whose metadata could not be written.
func (r *Report) Failures() []FileResult {
	var failed []FileResult
	for _, f := range r.Files {
		if f.Outcome == OutcomeWriteError {
			failed = append(failed, f)
		}
	}
	sort.SliceStable(failed, func(i, j int) bool { return failed[i].Path < failed[j].Path })
	return failed
}

// processor walks a tree and fixes the timestamps of every media file in it.
type processor struct {
	cfg    config
	log    zerolog.Logger
	images map[FileType]ImageWriter
	video  videoWriter

	closers []func() error
}

func newProcessor(cfg config, log zerolog.Logger) *processor {
	p := &processor{
		cfg:    cfg,
		log:    log,
		images: make(map[FileType]ImageWriter),
		video:  videoWriter{remuxer: ffmpegRemuxer{binaryPath: cfg.FFmpegPath}},
	}

	p.images[JPEG] = jpegExifWriter{allDates: cfg.AllDates}

	var fallback ImageWriter
	if !cfg.DisableExiftool {
		et := newExiftoolWriter(cfg.ExiftoolPath, cfg.AllDates)
		p.closers = append(p.closers, et.Close)
		fallback = et
	}
	for _, ft := range []FileType{TIFF, WEBP, HEIF, PNG} {
		if fallback != nil {
			p.images[ft] = fallback
		} else {
			p.images[ft] = unsupportedImageWriter{fileType: ft}
		}
	}

	return p
}

// Close releases external helper processes.
func (p *processor) Close() error {
	var firstErr error
	for _, c := range p.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// run processes every file under rootDir. The error is non-nil only when the
// root itself is unusable or the run was interrupted; per-file failures are
// recorded in the report.
func (p *processor) run(ctx context.Context, rootDir string) (*Report, error) {
	if err := checkRootDir(rootDir); err != nil {
		return nil, err
	}

	report := newReport(rootDir, p.cfg.DryRun)
	p.log.Info().Str("root", rootDir).Bool("dry_run", p.cfg.DryRun).Msg("Scanning directory")

	err := walkFiles(rootDir, p.log, func(path string) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		category, fileType := getMediaTypeInfo(path)
		if category == "" {
			report.Ignored++
			return nil
		}

		fi := FileInfo{Path: path, MediaCategory: category, FileType: fileType}
		res := p.processFile(ctx, &fi, report)
		report.add(res)
		p.logResult(res)
		return nil
	})

	report.Finalize()
	if err != nil {
		return report, fmt.Errorf("walking %s: %w", rootDir, err)
	}
	return report, nil
}

func (p *processor) processFile(ctx context.Context, fi *FileInfo, report *Report) FileResult {
	res := FileResult{Path: fi.Path, Category: fi.MediaCategory}

	sidecar, ok := resolveSidecar(fi.Path)
	if !ok {
		res.Outcome = OutcomeNoSidecar
		res.Reason = ErrNoSidecar.Error()
		return res
	}
	fi.Sidecar = sidecar
	res.Sidecar = sidecar

	ts, err := extractTimestamp(sidecar)
	if err != nil {
		res.Outcome = outcomeForError(err)
		res.Reason = err.Error()
		return res
	}
	fi.Timestamp = ts
	res.Timestamp = ts.Format(time.RFC3339)

	if p.alreadyCurrent(*fi) {
		res.Outcome = OutcomeUnchanged
		return res
	}

	if p.cfg.DryRun {
		res.Outcome = OutcomePlanned
		return res
	}

	if p.cfg.ReportFile != "" {
		res.DigestBefore = digestString(fi.Path)
	}

	if err := p.write(ctx, *fi); err != nil {
		res.Outcome = outcomeForError(err)
		res.Reason = err.Error()
		return res
	}

	res.Outcome = OutcomeUpdated
	if p.cfg.ReportFile != "" {
		res.DigestAfter = digestString(fi.Path)
	}
	if info, err := os.Stat(fi.Path); err == nil {
		report.BytesRewritten += info.Size()
	}
	return res
}

// alreadyCurrent reports whether the file already carries the sidecar time in
// every tag a write would set.
func (p *processor) alreadyCurrent(fi FileInfo) bool {
	if fi.MediaCategory == Picture && p.cfg.AllDates {
		current, err := imageDatesCurrent(fi.Path, fi.Timestamp)
		if err != nil {
			p.log.Debug().Err(err).Str("path", fi.Path).Msg("No readable embedded timestamp")
			return false
		}
		return current
	}

	current, err := extractCreationDateTimeFromMetadata(fi)
	if err != nil {
		p.log.Debug().Err(err).Str("path", fi.Path).Msg("No readable embedded timestamp")
		return false
	}
	if fi.MediaCategory == Picture {
		return sameExifWallClock(current, fi.Timestamp)
	}
	return sameSecond(current, fi.Timestamp)
}

func (p *processor) write(ctx context.Context, fi FileInfo) error {
	switch fi.MediaCategory {
	case Picture:
		w, ok := p.images[fi.FileType]
		if !ok {
			w = unsupportedImageWriter{fileType: fi.FileType}
		}
		return w.WriteImageTimestamp(fi.Path, fi.Timestamp)
	case Video:
		return p.video.WriteVideoTimestamp(ctx, fi.Path, fi.FileType, fi.Timestamp)
	}
	return fmt.Errorf("%w: unsupported media category %v", ErrWrite, fi.MediaCategory)
}

func (p *processor) logResult(res FileResult) {
	var event *zerolog.Event
	switch res.Outcome {
	case OutcomeUpdated, OutcomePlanned:
		event = p.log.Info()
	case OutcomeUnchanged:
		event = p.log.Debug()
	case OutcomeWriteError:
		event = p.log.Error()
	default:
		event = p.log.Warn()
	}

	event = event.Str("path", res.Path).Str("outcome", string(res.Outcome))
	if res.Sidecar != "" {
		event = event.Str("sidecar", res.Sidecar)
	}
	if res.Timestamp != "" {
		event = event.Str("timestamp", res.Timestamp)
	}
	if res.Reason != "" {
		event = event.Str("reason", res.Reason)
	}
	event.Msg("Processed file")
}

func digestString(path string) string {
	sum, err := calculateDigest(path)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", sum)
}

// printSummary writes the end-of-run summary in the same shape every time.
func printSummary(r *Report) {
	fmt.Printf("\nFile status summary:\n")
	fmt.Printf("Media files scanned: %d\n", r.Candidates())
	fmt.Printf("Ignored files: %d\n", r.Ignored)
	if r.DryRun {
		fmt.Printf("Would update: %d\n", r.Counts[OutcomePlanned])
	} else {
		fmt.Printf("Updated: %d (%s rewritten)\n", r.Counts[OutcomeUpdated], humanReadableSize(r.BytesRewritten))
	}
	fmt.Printf("Already correct: %d\n", r.Counts[OutcomeUnchanged])
	fmt.Printf("Skipped (no sidecar): %d\n", r.Counts[OutcomeNoSidecar])
	fmt.Printf("Skipped (no timestamp in sidecar): %d\n", r.Counts[OutcomeMissingField])
	fmt.Printf("Failed: %d\n", r.Counts[OutcomeWriteError])

	if failed := r.Failures(); len(failed) > 0 {
		fmt.Printf("\nFailed files:\n")
		for _, f := range failed {
			fmt.Printf("  %s\n    %s\n", f.Path, f.Reason)
		}
	}
}
