package main

import (
	"regexp"

	"github.com/sealedreview/reviewpipeline/pkg/precheck"
)

// generatedOrVendoredRe matches paths a pre-check classifier should
// never see: vendored dependencies, lockfiles, and generated code.
// Filtering is pluggable and out of scope for the pipeline's hard core
// (spec.md §1); this is the minimal concrete rule this binary wires in.
var generatedOrVendoredRe = regexp.MustCompile(`(?i)(^|/)(vendor/|node_modules/|dist/|\.generated\.|_pb2?\.py$|\.pb\.go$|package-lock\.json$|go\.sum$)`)

// defaultFilter drops vendored, generated, and lockfile paths.
type defaultFilter struct{}

func newDefaultFilter() defaultFilter { return defaultFilter{} }

func (defaultFilter) FilterFiles(files []precheck.DiffFile) []precheck.DiffFile {
	out := make([]precheck.DiffFile, 0, len(files))
	for _, f := range files {
		if generatedOrVendoredRe.MatchString(f.Path) {
			continue
		}
		out = append(out, f)
	}
	return out
}
