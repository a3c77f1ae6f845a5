//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the viewer with config.toml from the repository root.
func (Run) Viewer() error {
	mg.Deps(Build.Viewer)
	fmt.Println("Run viewer...")
	if _, err := executeCmd("bin/dubu", withArgs("-config", "config.toml"), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the viewer on a single model, e.g. mage run:model assets/models/box.glb
func (Run) Model(path string) error {
	mg.Deps(Build.Viewer)
	if _, err := executeCmd("bin/dubu", withArgs("-config", "config.toml", "-model", path), withStream()); err != nil {
		return err
	}
	return nil
}
