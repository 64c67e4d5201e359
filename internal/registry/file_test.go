package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeICPFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "icp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadICPFile(t *testing.T) {
	path := writeICPFile(t, `
id: icp-1
name: Austin Dentists
industry: Dental
business_type: Clinic
location: Austin, TX
employee_range: 5-20
pain_points:
  - outdated website
  - no online booking
owner_id: owner-1
`)

	icp, err := LoadICPFile(path)
	require.NoError(t, err)

	assert.Equal(t, "icp-1", icp.ID)
	assert.Equal(t, "Austin Dentists", icp.Name)
	assert.Equal(t, "Dental", icp.Industry)
	assert.Equal(t, "Clinic", icp.BusinessType)
	assert.Equal(t, "Austin, TX", icp.Location)
	assert.Equal(t, "5-20", icp.EmployeeRange)
	assert.Equal(t, []string{"outdated website", "no online booking"}, icp.PainPoints)
	assert.Equal(t, "owner-1", icp.OwnerID)
}

func TestLoadICPFile_GeneratesID(t *testing.T) {
	path := writeICPFile(t, `
name: Austin Dentists
industry: Dental
location: Austin, TX
`)

	icp, err := LoadICPFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, icp.ID)
}

func TestLoadICPFile_Validation(t *testing.T) {
	_, err := LoadICPFile(writeICPFile(t, `industry: Dental`))
	assert.Error(t, err, "missing name")

	_, err = LoadICPFile(writeICPFile(t, `name: No Targeting`))
	assert.Error(t, err, "missing industry and business_type")
}

func TestLoadICPFile_Missing(t *testing.T) {
	_, err := LoadICPFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadICPFile_BadYAML(t *testing.T) {
	_, err := LoadICPFile(writeICPFile(t, "{not: [valid"))
	assert.Error(t, err)
}
