//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	serverBin = "bin/popgraph-server"
	tokenBin  = "bin/popgraph-token"
	coverOut  = "coverage.out"

	// wireDir is the only package carrying a wire injector.
	wireDir = "./internal/app"
)

// Default target when running mage without arguments.
var Default = Build

// Build compiles the server and the dev token tool.
func Build() error {
	mg.Deps(Generate)
	fmt.Println("Building binaries...")
	if err := sh.Run("go", "build", "-o", serverBin, "./cmd/server"); err != nil {
		return err
	}
	return sh.Run("go", "build", "-o", tokenBin, "./cmd/token")
}

// Generate regenerates wire_gen.go and the swagger docs.
func Generate() error {
	mg.Deps(Wire, Swagger)
	return nil
}

// Wire regenerates the dependency graph in internal/app.
func Wire() error {
	fmt.Println("Running wire...")
	return sh.Run("wire", wireDir)
}

// Swagger regenerates the OpenAPI docs served at /swagger.
func Swagger() error {
	fmt.Println("Generating swagger docs...")
	return sh.Run("swag", "init",
		"--generalInfo", "docs.go",
		"--dir", "./cmd/server,./internal/adapter/inbound/http/generation,./internal/model",
		"--output", "./cmd/server/docs",
		"--outputTypes", "go",
	)
}

// Test runs the test suite with the race detector.
func Test() error {
	fmt.Println("Running tests...")
	return sh.RunV("go", "test", "-race", "./...")
}

// Cover runs the tests and prints per-function coverage.
func Cover() error {
	if err := sh.RunV("go", "test", "-covermode=atomic", "-coverprofile="+coverOut, "./..."); err != nil {
		return err
	}
	return sh.RunV("go", "tool", "cover", "-func="+coverOut)
}

// Lint runs go vet and golangci-lint.
func Lint() error {
	fmt.Println("Linting...")
	if err := sh.RunV("go", "vet", "./..."); err != nil {
		return err
	}
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build and coverage output.
func Clean() error {
	if err := sh.Rm("bin"); err != nil {
		return err
	}
	return sh.Rm(coverOut)
}

// CI runs generation, lint and coverage in order.
func CI() error {
	mg.SerialDeps(Generate, Lint, Cover)
	return nil
}

// Dev runs the server against the in-memory quota store.
func Dev() error {
	mg.Deps(Build)
	env := map[string]string{
		"POPGRAPH_QUOTA_BACKEND": "memory",
		"POPGRAPH_LOG_FORMAT":  "text",
	}
	if os.Getenv("POPGRAPH_JWT_SECRET") == "" {
		env["POPGRAPH_JWT_SECRET"] = "dev-secret"
	}
	fmt.Println("Starting server on the memory quota store...")
	return sh.RunWithV(env, serverBin)
}

// Token prints a bearer token for a local user, e.g. `mage token user-1 professional`.
func Token(userID, tier string) error {
	mg.Deps(Build)
	return sh.RunV(tokenBin, "-user", userID, "-tier", tier)
}

// Install installs the code generators and linter.
func Install() error {
	for _, tool := range []string{
		"github.com/google/wire/cmd/wire@latest",
		"github.com/swaggo/swag/cmd/swag@latest",
		"github.com/golangci/golangci-lint/cmd/golangci-lint@latest",
	} {
		fmt.Printf("Installing %s\n", tool)
		if err := sh.Run("go", "install", tool); err != nil {
			return fmt.Errorf("install %s: %w", tool, err)
		}
	}
	return nil
}
