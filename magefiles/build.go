//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
)

var Default = Build.Binary

type Build mg.Namespace

// Builds the meshseq binary into bin/.
func (Build) Binary() error {
	if err := os.MkdirAll("bin", 0755); err != nil {
		return err
	}
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	ldflags := fmt.Sprintf("-X main.version=%s", version)
	_, err := executeCmd("go", withArgs("build", "-ldflags", ldflags, "-o", "bin/meshseq", "./cmd/meshseq"), withStream())
	return err
}

// Runs go mod tidy.
func (Build) Tidy() error {
	_, err := executeCmd("go", withArgs("mod", "tidy"), withStream())
	return err
}
