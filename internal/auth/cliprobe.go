package auth

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	goversion "github.com/hashicorp/go-version"
)

var versionPattern = regexp.MustCompile(`\d+\.\d+(\.\d+)?`)

// CLIProbe checks that a vendor CLI binary is installed and recent enough to
// drive. The probe result is cached; a CLI does not appear or disappear
// mid-process often enough to justify re-execing it per request.
type CLIProbe struct {
	binary     string
	minVersion *goversion.Version

	once   sync.Once
	result error

	// lookPath and runVersion are swapped in tests.
	lookPath   func(string) (string, error)
	runVersion func(ctx context.Context, path string) (string, error)
}

func NewCLIProbe(binary, minVersion string) (*CLIProbe, error) {
	min, err := goversion.NewVersion(minVersion)
	if err != nil {
		return nil, fmt.Errorf("auth: parse minimum version %q: %w", minVersion, err)
	}
	return &CLIProbe{
		binary:     binary,
		minVersion: min,
		lookPath:   exec.LookPath,
		runVersion: execVersion,
	}, nil
}

func execVersion(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, "--version").Output()
	return string(out), err
}

// Check reports whether the CLI is present and at least the minimum version.
func (p *CLIProbe) Check(ctx context.Context) error {
	p.once.Do(func() { p.result = p.probe(ctx) })
	return p.result
}

func (p *CLIProbe) probe(ctx context.Context) error {
	path, err := p.lookPath(p.binary)
	if err != nil {
		return fmt.Errorf("auth: %s not found on PATH: %w", p.binary, err)
	}
	out, err := p.runVersion(ctx, path)
	if err != nil {
		return fmt.Errorf("auth: %s --version: %w", p.binary, err)
	}
	raw := versionPattern.FindString(out)
	if raw == "" {
		return fmt.Errorf("auth: could not parse %s version from %q", p.binary, strings.TrimSpace(out))
	}
	found, err := goversion.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("auth: parse %s version %q: %w", p.binary, raw, err)
	}
	if found.LessThan(p.minVersion) {
		return fmt.Errorf("auth: %s %s is older than required %s", p.binary, found, p.minVersion)
	}
	return nil
}
