package e2e

import (
	"os"
	"testing"

	"github.com/cucumber/godog"
)

// TestFeatures runs against the broker at CITEBROKER_E2E_URL, started with
// the default content service enabled and the stub wired as a service target.
func TestFeatures(t *testing.T) {
	baseURL := os.Getenv("CITEBROKER_E2E_URL")
	if baseURL == "" {
		t.Skip("CITEBROKER_E2E_URL not set")
	}

	suite := godog.TestSuite{
		Name: "citebroker",
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			RegisterSteps(ctx, NewTestContext(baseURL))
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("feature tests failed")
	}
}
