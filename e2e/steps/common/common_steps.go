package common

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	CallAs(caller string)
	LastStatus() int
	GetResponseField(field string) (any, error)
}

// RegisterSteps registers background and generic assertion steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the vault service is reachable$`, steps.serviceReachable)
	ctx.Step(`^I call as "([^"]*)"$`, steps.callAs)
	ctx.Step(`^I send unauthenticated requests$`, steps.callAnonymously)
	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.responseFieldShouldBe)
	ctx.Step(`^the response error should be "([^"]*)"$`, steps.responseErrorShouldBe)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) serviceReachable(ctx context.Context) error {
	s.tc.CallAs("")
	if err := s.tc.GET("/healthz"); err != nil {
		return err
	}
	if s.tc.LastStatus() != 200 {
		return fmt.Errorf("healthz returned status %d", s.tc.LastStatus())
	}
	return nil
}

func (s *commonSteps) callAs(ctx context.Context, caller string) error {
	s.tc.CallAs(caller)
	return nil
}

func (s *commonSteps) callAnonymously(ctx context.Context) error {
	s.tc.CallAs("")
	return nil
}

func (s *commonSteps) responseStatusShouldBe(ctx context.Context, expected int) error {
	if s.tc.LastStatus() != expected {
		return fmt.Errorf("expected status %d, got %d", expected, s.tc.LastStatus())
	}
	return nil
}

func (s *commonSteps) responseFieldShouldBe(ctx context.Context, field, expected string) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if fmt.Sprintf("%v", value) != expected {
		return fmt.Errorf("expected field %q to be %q, got %v", field, expected, value)
	}
	return nil
}

func (s *commonSteps) responseErrorShouldBe(ctx context.Context, expected string) error {
	return s.responseFieldShouldBe(ctx, "error", expected)
}
