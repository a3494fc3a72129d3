package resolve

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is the part of the scenario state resolution steps use.
type TestContext interface {
	GET(path string, headers map[string]string) error
	JSON() (map[string]any, error)
	Lines() ([]map[string]any, error)
}

// RegisterSteps registers citation and resolution steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &resolveSteps{tc: tc}

	ctx.Step(`^I request the citation for "([^"]*)"$`, steps.requestCitation)
	ctx.Step(`^I resolve "([^"]*)"$`, steps.resolve)

	ctx.Step(`^the citation "([^"]*)" should be "([^"]*)"$`, steps.citationFieldShouldBe)
	ctx.Step(`^the stream should contain a "([^"]*)" item$`, steps.streamShouldContainItem)
	ctx.Step(`^the stream should end with a completion message$`, steps.streamShouldEndWithCompletion)
	ctx.Step(`^the stream should contain an error at level "([^"]*)"$`, steps.streamShouldContainError)
}

type resolveSteps struct {
	tc TestContext
}

func (s *resolveSteps) requestCitation(ctx context.Context, query string) error {
	return s.tc.GET("/citation?"+query, nil)
}

func (s *resolveSteps) resolve(ctx context.Context, query string) error {
	return s.tc.GET("/resolve?"+query, map[string]string{"User-Agent": "citebroker-e2e"})
}

func (s *resolveSteps) citationFieldShouldBe(ctx context.Context, field, want string) error {
	doc, err := s.tc.JSON()
	if err != nil {
		return err
	}
	if got := fmt.Sprint(doc[field]); got != want {
		return fmt.Errorf("expected %s to be %q, got %q", field, want, got)
	}
	return nil
}

func (s *resolveSteps) streamShouldContainItem(ctx context.Context, itemType string) error {
	lines, err := s.tc.Lines()
	if err != nil {
		return err
	}
	for _, doc := range lines {
		if _, ok := doc[itemType]; ok {
			return nil
		}
	}
	return fmt.Errorf("no %s item among %d messages", itemType, len(lines))
}

func (s *resolveSteps) streamShouldEndWithCompletion(ctx context.Context) error {
	lines, err := s.tc.Lines()
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return fmt.Errorf("empty stream")
	}
	if _, ok := lines[len(lines)-1]["complete"]; !ok {
		return fmt.Errorf("last message is not a completion: %v", lines[len(lines)-1])
	}
	return nil
}

func (s *resolveSteps) streamShouldContainError(ctx context.Context, level string) error {
	lines, err := s.tc.Lines()
	if err != nil {
		return err
	}
	for _, doc := range lines {
		if e, ok := doc["error"].(map[string]any); ok && e["level"] == level {
			return nil
		}
	}
	return fmt.Errorf("no %s error among %d messages", level, len(lines))
}
