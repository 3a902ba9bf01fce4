//go:build mage

// Package main provides build targets for scribe using Mage.
//
// Usage:
//
//	mage build          Compile api and scribectl to bin/
//	mage lambda         Cross-compile the Lambda bootstrap to bin/lambda/
//	mage test           Run all tests
//	mage cover          Run tests with a coverage profile
//	mage generate       Regenerate wire_gen.go
//	mage lint           Run go vet and golangci-lint
//	mage clean          Remove build artifacts
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo     = "go"
	binaryDir = "bin"
)

// binaries maps output names to their main packages.
var binaries = map[string]string{
	"scribe-api": "./cmd/api",
	"scribectl":  "./cmd/scribectl",
}

// Default target when mage runs without arguments.
var Default = Build

// Build compiles the server and the CLI to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	for name, pkg := range binaries {
		if err := sh.RunV(binGo, "build", "-o", filepath.Join(binaryDir, name), pkg); err != nil {
			return err
		}
	}
	return nil
}

// Lambda builds the provided.al2023 bootstrap for arm64.
func Lambda() error {
	out := filepath.Join(binaryDir, "lambda")
	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}
	env := map[string]string{
		"GOOS":        "linux",
		"GOARCH":      "arm64",
		"CGO_ENABLED": "0",
	}
	return sh.RunWithV(env, binGo, "build", "-tags", "lambda.norpc", "-o", filepath.Join(out, "bootstrap"), "./cmd/lambda")
}

// Test runs all tests.
func Test() error {
	return sh.RunV(binGo, "test", "./...")
}

// Cover runs all tests and writes coverage.out.
func Cover() error {
	if err := sh.RunV(binGo, "test", "-coverprofile=coverage.out", "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func=coverage.out")
}

// Generate runs wire for the dependency graph.
func Generate() error {
	return sh.RunV(binGo, "run", "github.com/google/wire/cmd/wire", "./infrastructure/di")
}

// Lint runs go vet, then golangci-lint.
func Lint() error {
	if err := sh.RunV(binGo, "vet", "./..."); err != nil {
		return err
	}
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return os.RemoveAll("coverage.out")
}

// All builds, lints and tests.
func All() {
	mg.SerialDeps(Generate, Lint, Test, Build)
}
