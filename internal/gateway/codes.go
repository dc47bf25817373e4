package gateway

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed codes.yaml
var codesYAML []byte

type responseCodeEntry struct {
	Code        string `yaml:"code"`
	Outcome     string `yaml:"outcome"`
	Description string `yaml:"description"`
}

type bankEntry struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

type codeCatalog struct {
	ResponseCodes []responseCodeEntry `yaml:"response_codes"`
	Banks         []bankEntry         `yaml:"banks"`
}

// CodeTable maps gateway response codes to standard outcomes and bank codes
// to display names. Lookups fail closed: unknown response codes are FAILED.
type CodeTable struct {
	outcomes     map[string]Outcome
	descriptions map[string]string
	banks        map[string]string
}

func LoadCodeTable() (*CodeTable, error) {
	var catalog codeCatalog
	if err := yaml.Unmarshal(codesYAML, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse code catalog: %w", err)
	}
	if len(catalog.ResponseCodes) == 0 {
		return nil, fmt.Errorf("code catalog has no response codes")
	}

	table := &CodeTable{
		outcomes:     make(map[string]Outcome, len(catalog.ResponseCodes)),
		descriptions: make(map[string]string, len(catalog.ResponseCodes)),
		banks:        make(map[string]string, len(catalog.Banks)),
	}
	for _, entry := range catalog.ResponseCodes {
		outcome := Outcome(entry.Outcome)
		switch outcome {
		case OutcomeSuccess, OutcomePending, OutcomeFailed, OutcomeCancelled:
		default:
			return nil, fmt.Errorf("response code %q has unknown outcome %q", entry.Code, entry.Outcome)
		}
		if _, dup := table.outcomes[entry.Code]; dup {
			return nil, fmt.Errorf("duplicate response code %q", entry.Code)
		}
		table.outcomes[entry.Code] = outcome
		table.descriptions[entry.Code] = entry.Description
	}
	for _, bank := range catalog.Banks {
		table.banks[bank.Code] = bank.Name
	}
	return table, nil
}

func (t *CodeTable) Map(code string) Outcome {
	if outcome, ok := t.outcomes[code]; ok {
		return outcome
	}
	return OutcomeFailed
}

func (t *CodeTable) Describe(code string) string {
	if description, ok := t.descriptions[code]; ok {
		return description
	}
	return "Unknown response code"
}

func (t *CodeTable) BankName(code string) string {
	if name, ok := t.banks[code]; ok {
		return name
	}
	return code
}
