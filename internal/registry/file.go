package registry

import (
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/prospecting-cli/internal/model"
)

// icpFile is the YAML shape of a local ICP definition.
type icpFile struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Industry      string   `yaml:"industry"`
	BusinessType  string   `yaml:"business_type"`
	Location      string   `yaml:"location"`
	EmployeeRange string   `yaml:"employee_range"`
	RevenueRange  string   `yaml:"revenue_range"`
	PainPoints    []string `yaml:"pain_points"`
	BuyingSignals []string `yaml:"buying_signals"`
	OwnerID       string   `yaml:"owner_id"`
}

// LoadICPFile reads one ICP from a YAML file. A missing ID gets a generated
// one.
func LoadICPFile(path string) (*model.ICP, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read icp file %s", path)
	}

	var f icpFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "registry: parse icp file %s", path)
	}

	if f.Name == "" {
		return nil, eris.Errorf("registry: icp file %s missing name", path)
	}
	if f.Industry == "" && f.BusinessType == "" {
		return nil, eris.Errorf("registry: icp file %s needs industry or business_type", path)
	}

	if f.ID == "" {
		f.ID = uuid.New().String()
	}

	return &model.ICP{
		ID:            f.ID,
		Name:          f.Name,
		Industry:      f.Industry,
		BusinessType:  f.BusinessType,
		Location:      f.Location,
		EmployeeRange: f.EmployeeRange,
		RevenueRange:  f.RevenueRange,
		PainPoints:    f.PainPoints,
		BuyingSignals: f.BuyingSignals,
		OwnerID:       f.OwnerID,
	}, nil
}
