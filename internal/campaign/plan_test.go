package campaign

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuildPlanDistrictName(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "export.csv",
		"First Name,Last Name,Email,District\n"+
			"Jane,Doe,jane@example.com,Springfield USD\n"+
			"John,Roe,john@example.com,Springfield USD\n")

	plan, err := BuildPlan(path)
	require.NoError(t, err)
	assert.Equal(t, "Springfield USD", plan.CampaignName)
	assert.Equal(t, 2, plan.LeadCount)
	assert.Equal(t, map[string]string{
		"first_name": "First Name",
		"last_name":  "Last Name",
		"email":      "Email",
	}, plan.ColumnsToMap)
}

func TestBuildPlanFilenameFallback(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "north_valley-schools.csv",
		"first,last,emailwork\n"+
			"A,B,a@example.com\n")

	plan, err := BuildPlan(path)
	require.NoError(t, err)
	assert.Equal(t, "north valley schools", plan.CampaignName)
	assert.Equal(t, "emailwork", plan.ColumnsToMap["email"])
}

func TestBuildPlanStripsBOM(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "bom.csv",
		"\xEF\xBB\xBFfirst_name,last_name,email\n"+
			"A,B,a@example.com\n")

	plan, err := BuildPlan(path)
	require.NoError(t, err)
	assert.Equal(t, "first_name", plan.ColumnsToMap["first_name"])
}

func TestBuildPlanMissingColumns(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "bad.csv",
		"name,phone\nJane Doe,555-0100\n")

	_, err := BuildPlan(path)
	require.Error(t, err)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, err.Error(), "bad.csv")
}

func TestBuildPlanHeaderOnly(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "empty.csv", "first_name,last_name,email\n")

	_, err := BuildPlan(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no lead rows")
}

func TestBuildPlanSkipsBlankRows(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "blanks.csv",
		"first_name,last_name,email,company\n"+
			",,,\n"+
			"A,B,a@example.com,Acme District\n"+
			"  ,  ,  ,  \n")

	plan, err := BuildPlan(path)
	require.NoError(t, err)
	assert.Equal(t, 1, plan.LeadCount)
	assert.Equal(t, "Acme District", plan.CampaignName)
}

func TestBuildPlansOrderingAndFiltering(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "b.csv", "first_name,last_name,email\nA,B,a@example.com\n")
	writeCSV(t, dir, "a.CSV", "first_name,last_name,email\nC,D,c@example.com\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755))

	plans, err := BuildPlans(dir)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "a", plans[0].CampaignName)
	assert.Equal(t, "b", plans[1].CampaignName)
}
