//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs the unit tests. None of them needs a GPU.
func (Test) Unit() error {
	if _, err := executeCmd("go", withArgs("test", "./..."), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the unit tests with the race detector, the asset watcher is the
// concurrent part.
func (Test) Race() error {
	if _, err := executeCmd("go", withArgs("test", "-race", "./engine/..."), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the vet checks.
func (Test) Vet() error {
	_, err := executeCmd("go", withArgs("vet", "./..."), withDir("."), withStream())
	return err
}
