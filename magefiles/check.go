//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Check mg.Namespace

// Runs the test suite with the race detector.
func (Check) Test() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream())
	return err
}

// Runs go vet.
func (Check) Vet() error {
	_, err := executeCmd("go", withArgs("vet", "./..."), withStream())
	return err
}

// Runs golangci-lint after vet.
func (Check) Lint() error {
	mg.Deps(Check.Vet)
	_, err := executeCmd("golangci-lint", withArgs("run", "./..."), withStream())
	return err
}

// Runs vet, lint and tests.
func (Check) All() {
	mg.SerialDeps(Check.Lint, Check.Test)
}
