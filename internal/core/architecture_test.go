package core

import (
	"testing"

	"hemocount/testutil"
)

func TestSessionDoesNotDependOnOutputLayers(t *testing.T) {
	testutil.AssertNoTransitiveDependency(t, ".", testutil.ImportsUnder(
		"hemocount/internal/export",
		"hemocount/internal/analytics",
		"hemocount/internal/blob",
		"hemocount/internal/infra/blob",
		"github.com/go-pdf/fpdf",
		"github.com/wcharczuk/go-chart/v2",
	), "the session feeds exports and analytics, never the reverse")
}
