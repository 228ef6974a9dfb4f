// Package download implements the download command: wait for conditions,
// fetch the image, verify it, optionally block for the next build.
package download

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/obsimg/obsimg/internal/conditions"
	"github.com/obsimg/obsimg/internal/config"
	"github.com/obsimg/obsimg/internal/logger"
	"github.com/obsimg/obsimg/internal/obs"
	"github.com/obsimg/obsimg/internal/service"
	"github.com/obsimg/obsimg/internal/store"
	"github.com/obsimg/obsimg/internal/utils"
)

// Options carries the download command's flags. Pointer fields distinguish
// "flag not set" from a zero value.
type Options struct {
	ConditionsJSON     string
	ConditionsFile     string
	ConditionsWaitTime *int
	Extension          string
	ChecksumExtension  string
	DeniedLicenses     []string
	DeniedPackages     []string
	WaitForNewImage    bool
	PrintReport        bool
}

type Downloader struct {
	Session *obs.Session
	Store   *store.FS
	Opts    Options
}

func New(cfg *config.Config, opts Options, client service.HTTPClient) (*Downloader, error) {
	conds, err := loadConditions(opts)
	if err != nil {
		return nil, err
	}

	waitSeconds := cfg.ConditionsWaitTime
	if opts.ConditionsWaitTime != nil {
		waitSeconds = *opts.ConditionsWaitTime
	}

	extensions := cfg.Extensions()
	if opts.Extension != "" {
		extensions = []string{opts.Extension}
	}
	checksumExtensions := cfg.ChecksumExtensions()
	if opts.ChecksumExtension != "" {
		checksumExtensions = []string{opts.ChecksumExtension}
	}

	session, err := obs.New(obs.Options{
		DownloadURL:        cfg.DownloadURL,
		ImageName:          cfg.ImageName,
		Arch:               cfg.Arch,
		Profile:            cfg.Profile,
		TargetDir:          utils.ExpandHome(cfg.TargetDir),
		Extensions:         extensions,
		ChecksumExtensions: checksumExtensions,
		Conditions:         conds,
		DeniedLicenses:     opts.DeniedLicenses,
		DeniedPackages:     opts.DeniedPackages,
		ConditionsWaitTime: time.Duration(waitSeconds) * time.Second,
		Client:             client,
		Reporter:           service.NewConsoleProgress(logger.Out(), cfg.ImageName),
	})
	if err != nil {
		return nil, err
	}

	st, err := store.NewFS(filepath.Join(utils.ExpandHome(cfg.TargetDir), ".obsimg"))
	if err != nil {
		return nil, err
	}
	if last, err := st.Read(cfg.ImageName); err == nil && last.Checksum != "" {
		session.SetChecksum(last.Checksum)
	}

	return &Downloader{Session: session, Store: st, Opts: opts}, nil
}

func loadConditions(opts Options) ([]*conditions.Condition, error) {
	switch {
	case opts.ConditionsJSON != "" && opts.ConditionsFile != "":
		return nil, fmt.Errorf("--conditions and --conditions-file are mutually exclusive")
	case opts.ConditionsJSON != "":
		return conditions.Load(opts.ConditionsJSON)
	case opts.ConditionsFile != "":
		return conditions.LoadFile(opts.ConditionsFile)
	default:
		return nil, nil
	}
}

func (d *Downloader) Execute(ctx context.Context) error {
	if d.Opts.WaitForNewImage && d.Session.Checksum() != "" {
		logger.Info("Waiting for a build newer than the last downloaded one...")
		if err := d.Session.WaitForNewImage(ctx); err != nil {
			return d.finish(err)
		}
	}

	path, err := d.Session.Download(ctx)
	if err != nil {
		return d.finish(err)
	}
	logger.Info("Image written to %s", path)

	if err := d.record(ctx, path); err != nil {
		logger.Debug("failed to persist download state: %v", err)
	}

	return d.finish(nil)
}

// record persists what was downloaded so the next wait-for-new-image run
// compares against it.
func (d *Downloader) record(ctx context.Context, path string) error {
	version, release, err := d.Session.Version(ctx)
	if err != nil {
		return err
	}

	return d.Store.Write(store.State{
		ImageName:    d.Session.ImageName(),
		Version:      version,
		Release:      release,
		Checksum:     d.Session.Checksum(),
		Path:         path,
		DownloadedAt: time.Now().UTC(),
	})
}

// finish prints the condition report of the last evaluation pass when asked
// to, on success and failure alike.
func (d *Downloader) finish(err error) error {
	if !d.Opts.PrintReport {
		return err
	}

	report := d.Session.Report()
	if report == nil {
		return err
	}

	body, merr := json.MarshalIndent(report, "", "  ")
	if merr != nil {
		logger.Debug("failed to render condition report: %v", merr)
		return err
	}
	fmt.Fprintln(logger.Out(), string(body))

	return err
}
