//go:build mage

// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/magefile/mage/mg" // mg contains helpful utility functions, like Deps
	"github.com/magefile/mage/sh"
)

const (
	binaryName  = "pvtracker"
	packageName = "."
	versionPkg  = "github.com/penny-vault/pv-tracker/common"
)

// allow user to override go executable by running as GOEXE=xxx make ... on unix-like systems
var goexe = "go"

func init() {
	if exe := os.Getenv("GOEXE"); exe != "" {
		goexe = exe
	}
}

// ldflags stamps the commit and build date into common.CurrentVersion; the
// commit is left blank outside a git checkout
func ldflags() string {
	hash, _ := sh.Output("git", "rev-parse", "--short", "HEAD")
	return fmt.Sprintf("-X %s.commitHash=%s -X %s.buildDate=%s",
		versionPkg, hash, versionPkg, time.Now().Format("2006-01-02T15:04:05Z0700"))
}

func Build() error {
	fmt.Println("Building...")
	return sh.RunV(goexe, "build", "-o", binaryName, "-ldflags", ldflags(), packageName)
}

func Install() error {
	return sh.RunV(goexe, "install", "-ldflags", ldflags(), packageName)
}

// Clean up
func Clean() {
	fmt.Println("Cleaning...")
	os.RemoveAll(binaryName)
}

// Run tests and linters
func Check() {
	mg.Deps(Fmt, Vet)
	mg.Deps(TestRace)
}

// Run tests
func Test() error {
	fmt.Println("Go Test")
	return sh.RunV(goexe, "test", "./...")
}

// Run tests with race detector
func TestRace() error {
	fmt.Println("Go Test Race")
	return sh.RunV(goexe, "test", "-race", "./...")
}

// Run the store suite against a local SurrealDB, e.g.
// SURREALDB_URL=ws://localhost:8000/rpc mage testSurrealDB
func TestSurrealDB() error {
	if os.Getenv("SURREALDB_URL") == "" {
		return errors.New("SURREALDB_URL is not set")
	}
	return sh.RunV(goexe, "test", "-count=1", "./store/...")
}

// Run gofmt linter
func Fmt() error {
	fmt.Println("Go Format")
	// gofmt doesn't exit with non-zero when it finds unformatted code
	s, err := sh.Output("gofmt", "-l", ".")
	if err != nil {
		return err
	}
	var unformatted []string
	for _, f := range strings.Split(s, "\n") {
		if f != "" && !strings.HasPrefix(f, "_") {
			unformatted = append(unformatted, f)
		}
	}
	if len(unformatted) > 0 {
		fmt.Println("The following files are not gofmt'ed:")
		fmt.Println(strings.Join(unformatted, "\n"))
		return errors.New("improperly formatted go files")
	}
	return nil
}

// Run go vet linter
func Vet() error {
	fmt.Println("Go Vet")
	if err := sh.Run(goexe, "vet", "./..."); err != nil {
		return fmt.Errorf("error running go vet: %v", err)
	}
	return nil
}
