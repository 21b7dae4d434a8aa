package costing

// Cloud provider names as they appear in config and reports.
const (
	CloudAWS     = "aws"
	CloudGCP     = "gcp"
	CloudAzure   = "azure"
	CloudGeneric = "generic"
)

// staticProvider prices from a fixed table. Base rates are averaged from the
// general-purpose instance families (t3/e2/D2s_v3); regional rows carry the
// usual EU/APAC premium.
type staticProvider struct {
	name    string
	base    Rates
	regions map[string]Rates
}

func (p *staticProvider) Name() string { return p.name }

func (p *staticProvider) UnitRates(region string) Rates {
	if rates, ok := p.regions[region]; ok {
		return rates
	}
	return p.base
}

var (
	awsProvider = &staticProvider{
		name: CloudAWS,
		base: Rates{CPUCoreMonthly: 33.0, MemGiBMonthly: 4.5},
		regions: map[string]Rates{
			"us-east-1":      {CPUCoreMonthly: 33.0, MemGiBMonthly: 4.5},
			"us-west-2":      {CPUCoreMonthly: 33.0, MemGiBMonthly: 4.5},
			"eu-west-1":      {CPUCoreMonthly: 36.5, MemGiBMonthly: 4.9},
			"ap-southeast-1": {CPUCoreMonthly: 39.0, MemGiBMonthly: 5.3},
		},
	}

	gcpProvider = &staticProvider{
		name: CloudGCP,
		base: Rates{CPUCoreMonthly: 31.0, MemGiBMonthly: 4.2},
		regions: map[string]Rates{
			"us-central1":  {CPUCoreMonthly: 31.0, MemGiBMonthly: 4.2},
			"europe-west1": {CPUCoreMonthly: 34.0, MemGiBMonthly: 4.6},
			"asia-east1":   {CPUCoreMonthly: 36.0, MemGiBMonthly: 4.9},
		},
	}

	azureProvider = &staticProvider{
		name: CloudAzure,
		base: Rates{CPUCoreMonthly: 35.0, MemGiBMonthly: 4.3},
		regions: map[string]Rates{
			"eastus":        {CPUCoreMonthly: 35.0, MemGiBMonthly: 4.3},
			"westeurope":    {CPUCoreMonthly: 38.5, MemGiBMonthly: 4.7},
			"southeastasia": {CPUCoreMonthly: 41.0, MemGiBMonthly: 5.1},
		},
	}

	// Conservative on-prem numbers so savings never look inflated when the
	// cloud is unknown.
	genericProvider = &staticProvider{
		name: CloudGeneric,
		base: Rates{CPUCoreMonthly: 23.0, MemGiBMonthly: 3.0},
	}
)

func AWS() Provider     { return awsProvider }
func GCP() Provider     { return gcpProvider }
func Azure() Provider   { return azureProvider }
func Generic() Provider { return genericProvider }

// ForCloud maps a configured or detected cloud name to its provider.
// Unrecognized names get the generic table.
func ForCloud(name string) Provider {
	switch name {
	case CloudAWS:
		return AWS()
	case CloudGCP:
		return GCP()
	case CloudAzure:
		return Azure()
	default:
		return Generic()
	}
}
