// Package obs ties the listing resolver, metadata parser and condition
// evaluator together into one image session against an OBS download
// repository.
package obs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/obsimg/obsimg/internal/conditions"
	"github.com/obsimg/obsimg/internal/logger"
	"github.com/obsimg/obsimg/internal/metadata"
	"github.com/obsimg/obsimg/internal/resolver"
	"github.com/obsimg/obsimg/internal/service"
	"github.com/obsimg/obsimg/internal/utils"
	"github.com/obsimg/obsimg/internal/watch"
	"github.com/obsimg/obsimg/internal/webindex"
)

const (
	// kiwi-style semantic version, first capture group of the artifact
	// pattern. The second group is the OBS build number.
	kiwiVersionMatch = `(\d+\.\d+\.\d+)`
	versionMatch     = `(.*)`
)

// metadata shapes, in parse priority order: structured report first, flat
// packages file as fallback.
var metadataExtensions = []string{".report", ".packages"}

// Options configures a Session.
type Options struct {
	DownloadURL        string
	ImageName          string
	Arch               string
	Profile            string
	TargetDir          string
	Extensions         []string
	ChecksumExtensions []string
	Conditions         []*conditions.Condition
	DeniedLicenses     []string
	DeniedPackages     []string
	ConditionsWaitTime time.Duration
	Client             service.HTTPClient
	Reporter           service.Progress
}

// ImageVersionError reports an artifact name the version pattern could not
// be read back from.
type ImageVersionError struct {
	Name string
}

func (e *ImageVersionError) Error() string {
	return fmt.Sprintf("no image version found in artifact name %q", e.Name)
}

func (e *ImageVersionError) Kind() string { return "ImageVersionError" }

// resolution is the memoized per-poll state. It is rebuilt wholesale from a
// fresh directory listing after every Refresh, never patched in place, so
// version and packages always belong to the same build.
type resolution struct {
	listing  []string
	artifact *resolver.Candidate
	packages metadata.Packages
}

// Session resolves, validates and downloads one named image. It is owned by
// a single polling loop; there is no internal locking.
type Session struct {
	opts    Options
	pattern *regexp.Regexp
	index   *webindex.Index
	eval    *conditions.Evaluator

	state        resolution
	lastChecksum string
	report       *conditions.Report
}

func New(opts Options) (*Session, error) {
	if opts.ImageName == "" {
		return nil, fmt.Errorf("image name is required")
	}
	if opts.Arch == "" {
		opts.Arch = "x86_64"
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{"vhdfixed.xz", "raw.xz", "tar.gz", "qcow2"}
	}
	if len(opts.ChecksumExtensions) == 0 {
		opts.ChecksumExtensions = []string{"sha256"}
	}
	if opts.Client == nil {
		opts.Client = service.NewHTTPClient(30 * time.Second)
	}

	pattern, err := buildPattern(opts.ImageName, opts.Arch, opts.Profile)
	if err != nil {
		return nil, err
	}

	return &Session{
		opts:    opts,
		pattern: pattern,
		index:   webindex.New(opts.DownloadURL, opts.Client),
		eval:    conditions.New(opts.Conditions, opts.DeniedLicenses, opts.DeniedPackages),
	}, nil
}

// buildPattern anchors the artifact pattern at the start of the filename:
// image.arch-version-Buildrelease, with the multibuild profile inserted
// when set.
func buildPattern(name, arch, profile string) (*regexp.Regexp, error) {
	versionFormat := kiwiVersionMatch + "-Build" + versionMatch
	if profile != "" {
		versionFormat = kiwiVersionMatch + "-" + profile + "-Build" + versionMatch
	}

	expr := "^" + regexp.QuoteMeta(name) + `\.` + regexp.QuoteMeta(arch) + "-" + versionFormat
	pattern, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to compile artifact pattern: %w", err)
	}
	return pattern, nil
}

// Refresh discards all derived resolution state atomically. The next access
// re-resolves from a fresh directory listing, which is how a newly published
// build gets picked up between polling cycles.
func (s *Session) Refresh() {
	s.state = resolution{}
}

func (s *Session) listing(ctx context.Context) ([]string, error) {
	if s.state.listing != nil {
		return s.state.listing, nil
	}

	names, err := s.index.List(ctx, s.opts.ImageName)
	if err != nil {
		return nil, err
	}
	s.state.listing = names
	return names, nil
}

// Artifact resolves the newest matching metadata artifact, memoized until
// the next Refresh.
func (s *Session) Artifact(ctx context.Context) (resolver.Candidate, error) {
	if s.state.artifact != nil {
		return *s.state.artifact, nil
	}

	names, err := s.listing(ctx)
	if err != nil {
		return resolver.Candidate{}, err
	}

	candidate, err := resolver.Resolve(names, s.opts.ImageName, s.pattern, metadataExtensions)
	if err != nil {
		return resolver.Candidate{}, err
	}

	logger.Debug("resolved artifact %s (version %s, build %s)",
		candidate.FileName(), candidate.Version, candidate.Release)
	s.state.artifact = &candidate
	return candidate, nil
}

// Version returns the resolved image version and build number.
func (s *Session) Version(ctx context.Context) (version, release string, err error) {
	candidate, err := s.Artifact(ctx)
	if err != nil {
		return "", "", err
	}
	if candidate.Version == "" {
		return "", "", &ImageVersionError{Name: candidate.FileName()}
	}
	return candidate.Version, candidate.Release, nil
}

// Packages fetches and parses the image package metadata, memoized until the
// next Refresh. The structured report is tried first, the flat packages file
// second; with conditions declared, both failing is fatal.
func (s *Session) Packages(ctx context.Context) (metadata.Packages, error) {
	if s.state.packages != nil {
		return s.state.packages, nil
	}

	candidate, err := s.Artifact(ctx)
	if err != nil {
		var notFound *resolver.NotFoundError
		if errors.As(err, &notFound) && !s.eval.HasChecks() {
			logger.Debug("no metadata artifact published: %v", err)
			s.state.packages = metadata.Packages{}
			return s.state.packages, nil
		}
		return nil, err
	}

	packages, reportErr := s.fetchMetadata(ctx, candidate.BaseName+".report", metadata.ParseReport)
	if reportErr == nil {
		s.state.packages = packages
		return packages, nil
	}

	packages, flatErr := s.fetchMetadata(ctx, candidate.BaseName+".packages", metadata.ParseFlat)
	if flatErr == nil {
		s.state.packages = packages
		return packages, nil
	}

	if s.eval.HasChecks() {
		return nil, &metadata.MetadataUnavailableError{ReportErr: reportErr, FlatErr: flatErr}
	}

	logger.Debug("no package metadata for %s (report: %v, packages: %v)",
		candidate.FileName(), reportErr, flatErr)
	s.state.packages = metadata.Packages{}
	return s.state.packages, nil
}

func (s *Session) fetchMetadata(
	ctx context.Context,
	name string,
	parse func(r io.Reader) (metadata.Packages, error),
) (metadata.Packages, error) {
	var packages metadata.Packages
	err := service.WithRetry(ctx, func() error {
		body, err := service.FetchBytes(ctx, s.opts.Client, s.index.FileURL(name))
		if err != nil {
			return err
		}
		parsed, err := parse(bytes.NewReader(body))
		if err != nil {
			// Malformed content will not heal on retry.
			return backoff.Permanent(err)
		}
		packages = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return packages, nil
}

// Check runs one condition evaluation pass against the current resolution.
// A repository without any metadata artifact only passes when no checks are
// declared.
func (s *Session) Check(ctx context.Context) error {
	packages, err := s.Packages(ctx)
	if err != nil {
		return err
	}

	img := conditions.Image{Name: s.opts.ImageName}
	version, release, err := s.Version(ctx)
	switch {
	case err == nil:
		img.Version = version
		img.Release = release
	case s.eval.HasChecks():
		return err
	default:
		var notFound *resolver.NotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}

	report, err := s.eval.Evaluate(img, packages)
	if report != nil {
		s.report = report
	}
	return err
}

// Report returns the condition report of the last evaluation pass, if any.
func (s *Session) Report() *conditions.Report { return s.report }

func (s *Session) ImageName() string { return s.opts.ImageName }

// WaitForConditions polls Check until it passes or the configured wait
// budget elapses.
func (s *Session) WaitForConditions(ctx context.Context) error {
	return watch.New(watch.DefaultInterval, s.opts.ConditionsWaitTime).Wait(ctx, s)
}

// Download waits for conditions, then fetches the resolved image and its
// checksum sidecar and verifies the image against it. Transient transport
// failures and checksum mismatches are retried with backoff on the same
// resolved artifact.
func (s *Session) Download(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.opts.TargetDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create target directory: %w", err)
	}

	if err := s.WaitForConditions(ctx); err != nil {
		return "", err
	}

	names, err := s.listing(ctx)
	if err != nil {
		return "", err
	}

	image, err := resolver.Resolve(names, s.opts.ImageName, s.pattern, s.opts.Extensions)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(s.opts.TargetDir, image.FileName())
	logger.Debug("fetching image %s from %s", image.FileName(), s.opts.DownloadURL)

	err = service.WithRetry(ctx, func() error {
		expected, err := s.RemoteChecksum(ctx)
		if err != nil {
			var notFound *resolver.NotFoundError
			if errors.As(err, &notFound) {
				// No sidecar for this build; retrying cannot conjure one.
				return backoff.Permanent(err)
			}
			return err
		}

		// A file left behind by an earlier run that still verifies is the
		// same build; fetching it again would be wasted bandwidth.
		if utils.VerifyFileChecksum(dst, expected) == nil {
			logger.Info("Image %s already downloaded, skipping", image.FileName())
			s.lastChecksum = expected
			return nil
		}

		if err := service.DownloadToFile(ctx, s.opts.Client, s.index.FileURL(image.FileName()), dst, s.opts.Reporter); err != nil {
			return err
		}
		if err := utils.VerifyFileChecksum(dst, expected); err != nil {
			return err
		}

		s.lastChecksum = expected
		return nil
	})
	if err != nil {
		return "", err
	}

	logger.Success("Image downloaded: %s", dst)
	return dst, nil
}

// RemoteChecksum fetches the checksum sidecar of the currently resolved
// image and extracts its checksum token.
func (s *Session) RemoteChecksum(ctx context.Context) (string, error) {
	names, err := s.listing(ctx)
	if err != nil {
		return "", err
	}

	sidecar, err := resolver.Resolve(names, s.opts.ImageName, s.pattern, s.checksumExtensions())
	if err != nil {
		return "", err
	}

	body, err := service.FetchBytes(ctx, s.opts.Client, s.index.FileURL(sidecar.FileName()))
	if err != nil {
		return "", err
	}
	return utils.ChecksumFromSidecar(string(body))
}

// Checksum returns the checksum recorded by the last successful download.
func (s *Session) Checksum() string { return s.lastChecksum }

// SetChecksum seeds the recorded checksum, typically from persisted state of
// an earlier run. Refresh does not clear it until a download overwrites it.
func (s *Session) SetChecksum(sum string) { s.lastChecksum = sum }

// WaitForNewImage blocks until a build with a checksum different from the
// last recorded one is published. There is no timeout; cancel via ctx.
func (s *Session) WaitForNewImage(ctx context.Context) error {
	last := s.lastChecksum

	probe := func(ctx context.Context) (string, error) {
		s.Refresh()
		var sum string
		err := service.WithRetry(ctx, func() error {
			var perr error
			sum, perr = s.RemoteChecksum(ctx)
			return perr
		})
		return sum, err
	}

	return watch.New(time.Minute, 0).WaitForNew(ctx, probe, last)
}

func (s *Session) checksumExtensions() []string {
	exts := make([]string, 0, len(s.opts.Extensions)*len(s.opts.ChecksumExtensions))
	for _, img := range s.opts.Extensions {
		for _, sum := range s.opts.ChecksumExtensions {
			exts = append(exts, img+"."+sum)
		}
	}
	return exts
}
