package main

import (
	"regexp"

	"github.com/sealedreview/reviewpipeline/pkg/precheck"
)

// categoryPattern pairs a risk category with the file-path and
// hunk-content patterns that signal it; this is the pluggable
// classifier spec.md §1 calls out as an external collaborator — a
// regex rule set, not the pre-check gate logic itself.
type categoryPattern struct {
	category   precheck.Category
	confidence precheck.Confidence
	pathRe     *regexp.Regexp
	contentRe  *regexp.Regexp
}

var categoryPatterns = []categoryPattern{
	{precheck.CategoryPublicAPI, precheck.ConfidenceHigh, regexp.MustCompile(`(?i)(api|openapi|swagger|proto)`), regexp.MustCompile(`(?i)^\+\s*(func \w+\(.*\) .*{|type \w+ interface)`)},
	{precheck.CategoryStateMutation, precheck.ConfidenceMedium, nil, regexp.MustCompile(`(?i)^\+.*\b(UPDATE|DELETE|INSERT|mutate|SetState)\b`)},
	{precheck.CategoryAuthentication, precheck.ConfidenceHigh, regexp.MustCompile(`(?i)(auth|session|token|jwt|oauth)`), regexp.MustCompile(`(?i)^\+.*\b(password|secret|token|bearer)\b`)},
	{precheck.CategoryPersistence, precheck.ConfidenceMedium, regexp.MustCompile(`(?i)(migration|schema|\.sql$)`), regexp.MustCompile(`(?i)^\+.*\b(ALTER TABLE|DROP TABLE|CREATE TABLE)\b`)},
	{precheck.CategoryConcurrency, precheck.ConfidenceHigh, nil, regexp.MustCompile(`(?i)^\+.*\b(go func|sync\.(Mutex|WaitGroup)|atomic\.)\b`)},
	{precheck.CategoryErrorHandling, precheck.ConfidenceLow, nil, regexp.MustCompile(`(?i)^\-.*\b(if err != nil|recover\(\))\b`)},
	{precheck.CategoryNetworking, precheck.ConfidenceMedium, nil, regexp.MustCompile(`(?i)^\+.*\b(http\.|net\.Dial|grpc\.)\b`)},
	{precheck.CategoryDependencies, precheck.ConfidenceMedium, regexp.MustCompile(`(?i)(go\.mod|go\.sum|package\.json|Cargo\.toml)`), nil},
	{precheck.CategoryCriticalPath, precheck.ConfidenceHigh, regexp.MustCompile(`(?i)(payment|billing|checkout)`), nil},
	{precheck.CategorySecurityBoundaries, precheck.ConfidenceHigh, regexp.MustCompile(`(?i)(security|crypto|tls)`), regexp.MustCompile(`(?i)^\+.*\b(exec\.Command|os/exec)\b`)},
}

// regexClassifier is the minimal concrete pattern classifier this
// binary wires into the orchestrator; the rule set itself is
// explicitly out of scope for the pipeline's hard core (spec.md §1),
// so this stays a small, legible set of path/content heuristics rather
// than a tuned production rule engine.
type regexClassifier struct{}

func newRegexClassifier() *regexClassifier { return &regexClassifier{} }

func (regexClassifier) Classify(files []precheck.DiffFile) precheck.Bundle {
	bundle := precheck.Bundle{Signals: make(map[precheck.Category]precheck.Signal, len(categoryPatterns))}

	for _, cp := range categoryPatterns {
		sig := precheck.Signal{}
		for _, f := range files {
			pathHit := cp.pathRe != nil && cp.pathRe.MatchString(f.Path)
			contentHit := false
			if cp.contentRe != nil {
				for _, h := range f.Hunks {
					if cp.contentRe.MatchString(h) {
						contentHit = true
						break
					}
				}
			}
			if pathHit || contentHit {
				sig.Detected = true
				sig.Confidence = cp.confidence
				sig.Locations = append(sig.Locations, f.Path)
			}
		}
		bundle.Signals[cp.category] = sig
	}

	bundle.Summarize()
	return bundle
}
