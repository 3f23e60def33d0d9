package config

import (
	"context"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/scbrown/pixelsrc/internal/ctxlog"
)

// DefaultFilename is the project file looked up in the working directory
// when no --config flag is given.
const DefaultFilename = "pixel.hcl"

// Load parses and validates a project file. Every failure is reported as a
// *Error so the CLI can map it to the configuration-error exit code.
func Load(ctx context.Context, path string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)

	if _, err := os.Stat(path); err != nil {
		return nil, Errorf("project file %s: %v", path, err)
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, Errorf("failed to parse %s: %s", path, diags.Error())
	}

	var cfg Config
	if diags := gohcl.DecodeBody(file.Body, nil, &cfg); diags.HasErrors() {
		return nil, Errorf("failed to decode %s: %s", path, diags.Error())
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger.Debug("Project configuration loaded.",
		"path", path,
		"project", cfg.Project.Name,
		"atlases", len(cfg.Atlases),
		"exports", len(cfg.Exports),
	)
	return &cfg, nil
}
