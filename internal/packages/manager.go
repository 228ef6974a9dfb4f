// Package packages implements the read-only query commands against the
// resolved image: package listing, single package details, image version.
package packages

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/obsimg/obsimg/internal/conditions"
	"github.com/obsimg/obsimg/internal/config"
	"github.com/obsimg/obsimg/internal/logger"
	"github.com/obsimg/obsimg/internal/obs"
	"github.com/obsimg/obsimg/internal/service"
	"github.com/obsimg/obsimg/internal/utils"
)

// PackageNotFoundError reports a package name absent from the image
// metadata.
type PackageNotFoundError struct {
	Name string
}

func (e *PackageNotFoundError) Error() string {
	return fmt.Sprintf("package %s not in image", e.Name)
}

func (e *PackageNotFoundError) Kind() string { return "PackageNotFoundError" }

type Manager struct {
	Session *obs.Session
}

func New(cfg *config.Config, client service.HTTPClient) (*Manager, error) {
	session, err := obs.New(obs.Options{
		DownloadURL:        cfg.DownloadURL,
		ImageName:          cfg.ImageName,
		Arch:               cfg.Arch,
		Profile:            cfg.Profile,
		TargetDir:          utils.ExpandHome(cfg.TargetDir),
		Extensions:         cfg.Extensions(),
		ChecksumExtensions: cfg.ChecksumExtensions(),
		Client:             client,
	})
	if err != nil {
		return nil, err
	}
	return &Manager{Session: session}, nil
}

// ListOptions narrows and formats the package listing.
type ListOptions struct {
	JSON           bool
	FilterLicenses []string
	FilterPackage  string
}

// List renders the package inventory of the newest build, as a table or as
// JSON, optionally narrowed by license or name glob.
func (m *Manager) List(ctx context.Context, opts ListOptions) error {
	packages, err := m.Session.Packages(ctx)
	if err != nil {
		return err
	}

	if len(opts.FilterLicenses) > 0 {
		packages = conditions.FilterByLicenses(packages, opts.FilterLicenses)
	}
	if opts.FilterPackage != "" {
		packages = conditions.FilterByName(packages, opts.FilterPackage)
	}

	if opts.JSON {
		return renderJSON(packages)
	}

	names := make([]string, 0, len(packages))
	for name := range packages {
		names = append(names, name)
	}
	sort.Strings(names)

	table := logger.CreateTable([]string{"Package", "Version", "Release", "Arch", "License"})
	for _, name := range names {
		pkg := packages[name]
		if err := table.Append([]string{pkg.Name, pkg.Version, pkg.Release, pkg.Arch, pkg.License}); err != nil {
			return err
		}
	}
	return table.Render()
}

// Show prints the full record of one package.
func (m *Manager) Show(ctx context.Context, name string) error {
	packages, err := m.Session.Packages(ctx)
	if err != nil {
		return err
	}

	pkg, ok := packages[name]
	if !ok {
		return &PackageNotFoundError{Name: name}
	}
	return renderJSON(pkg)
}

// Version prints the resolved version and build number of the newest image.
func (m *Manager) Version(ctx context.Context) error {
	version, release, err := m.Session.Version(ctx)
	if err != nil {
		return err
	}

	return renderJSON(struct {
		Version string `json:"version"`
		Release string `json:"release"`
	}{version, release})
}

func renderJSON(v interface{}) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render output: %w", err)
	}
	fmt.Fprintln(logger.Out(), string(body))
	return nil
}
