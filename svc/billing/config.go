package billing

// Config selects the provider wiring: "edge" delegates everything to the
// remote billing function; "paddle" talks to Paddle directly and reads the
// plan catalog from a static YAML file.
type Config struct {
	Provider    string `env:"BILLING_PROVIDER" envDefault:"edge"`
	FreePlanID  string `env:"BILLING_FREE_PLAN_ID"`
	CatalogPath string `env:"BILLING_CATALOG_PATH" envDefault:"plans.yaml"`

	Edge   EdgeConfig
	Paddle PaddleConfig
}
