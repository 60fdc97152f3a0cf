//go:build !integration

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/halcyon-research/tracklist-cli/internal/model"
)

func TestFormatStatus(t *testing.T) {
	counts := map[model.Stage]model.StatusCounts{
		model.StageMatch: {
			model.StatusMatched:  3,
			model.StatusNotFound: 1,
		},
		model.StageFeatures: {
			model.StatusPending: 4,
		},
	}
	failures := map[model.Stage]int{
		model.StageMatch: 2,
	}

	var buf bytes.Buffer
	formatStatus(&buf, counts, failures)
	out := buf.String()

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	// Header, separator, one row per stage.
	assert.Len(t, lines, 2+len(model.Stages))
	assert.Contains(t, lines[0], "STAGE")
	assert.Contains(t, lines[0], "FAILURE_LOG")

	var matchLine string
	for _, l := range lines {
		if strings.HasPrefix(l, "match ") {
			matchLine = l
		}
	}
	fields := strings.Fields(matchLine)
	// stage, pending, matched, done, not_found, ambiguous, failed, failure_log
	assert.Equal(t, []string{"match", "0", "3", "0", "1", "0", "0", "2"}, fields)
}

func TestFormatStatus_EmptyCatalog(t *testing.T) {
	var buf bytes.Buffer
	formatStatus(&buf, map[model.Stage]model.StatusCounts{}, map[model.Stage]int{})

	for _, stage := range model.Stages {
		assert.Contains(t, buf.String(), string(stage))
	}
}
