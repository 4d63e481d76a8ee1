// SPDX-License-Identifier: MPL-2.0

package publish

import (
	"context"

	"github.com/charmbracelet/log"

	"upmwrap/internal/upm"
)

// OpenUPM pulls packages from their public git repositories; there is no
// upload API. The manual publisher performs no network operation and only
// points at the submission form.
type manualPublisher struct {
	logger *log.Logger
}

func (p *manualPublisher) Publish(ctx context.Context, dir string) error {
	manifest, err := upm.ReadManifest(dir)
	if err != nil {
		return err
	}

	p.logger.Warn("OpenUPM packages must be submitted manually",
		"name", manifest.Name,
		"url", "https://openupm.com/packages/add/")
	return nil
}

func (p *manualPublisher) CheckExists(ctx context.Context, name, version string) (bool, error) {
	p.logger.Info("OpenUPM package existence check not implemented", "name", name)
	return false, nil
}
