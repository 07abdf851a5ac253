package vault

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	PUT(path string, body any) error
	GET(path string) error
	GetResponseField(field string) (any, error)
	SetAssetID(id uint64)
	AssetID() uint64
}

// RegisterSteps registers vault-specific step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &vaultSteps{tc: tc}

	// Registry steps
	ctx.Step(`^I register asset "([^"]*)" named "([^"]*)" with symbol "([^"]*)"$`, steps.registerAsset)
	ctx.Step(`^I save the registered asset id$`, steps.saveAssetID)
	ctx.Step(`^I resolve the underlying "([^"]*)"$`, steps.resolveUnderlying)
	ctx.Step(`^I list the registered assets$`, steps.listAssets)

	// Ledger steps
	ctx.Step(`^I request the totals for the saved asset$`, steps.requestTotals)
	ctx.Step(`^I deposit "([^"]*)" assets$`, steps.deposit)
	ctx.Step(`^I preview converting "([^"]*)" assets to shares$`, steps.previewConvert)

	// Role steps
	ctx.Step(`^I request the vault roles$`, steps.requestRoles)
	ctx.Step(`^I assign the strategy role to "([^"]*)"$`, steps.assignStrategy)
}

type vaultSteps struct {
	tc TestContext
}

func (s *vaultSteps) registerAsset(ctx context.Context, underlying, name, symbol string) error {
	return s.tc.POST("/assets", map[string]any{
		"underlying": underlying,
		"name":       name,
		"symbol":     symbol,
	})
}

func (s *vaultSteps) saveAssetID(ctx context.Context) error {
	value, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	id, ok := value.(float64)
	if !ok || id < 1 {
		return fmt.Errorf("response field id is not a positive number: %v", value)
	}
	s.tc.SetAssetID(uint64(id))
	return nil
}

func (s *vaultSteps) resolveUnderlying(ctx context.Context, underlying string) error {
	return s.tc.GET("/assets/resolve?underlying=" + underlying)
}

func (s *vaultSteps) listAssets(ctx context.Context) error {
	return s.tc.GET("/assets")
}

func (s *vaultSteps) requestTotals(ctx context.Context) error {
	return s.tc.GET(fmt.Sprintf("/assets/%d/totals", s.tc.AssetID()))
}

func (s *vaultSteps) deposit(ctx context.Context, assets string) error {
	return s.tc.POST(fmt.Sprintf("/assets/%d/deposit", s.tc.AssetID()), map[string]any{
		"assets": assets,
	})
}

func (s *vaultSteps) previewConvert(ctx context.Context, assets string) error {
	return s.tc.GET(fmt.Sprintf("/assets/%d/convert/shares?assets=%s", s.tc.AssetID(), assets))
}

func (s *vaultSteps) requestRoles(ctx context.Context) error {
	return s.tc.GET("/roles")
}

func (s *vaultSteps) assignStrategy(ctx context.Context, identity string) error {
	return s.tc.PUT("/roles/strategy", map[string]any{
		"identity": identity,
	})
}
