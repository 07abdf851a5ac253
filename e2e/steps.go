package e2e

import (
	"github.com/cucumber/godog"

	"vaultd/e2e/steps/common"
	"vaultd/e2e/steps/vault"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	vault.RegisterSteps(ctx, tc)
}
