package campaign

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// BatchFilePlan is one resolved unit of batch work: a CSV file, the
// campaign name derived from it, its lead row count, and the mapping
// from logical lead fields to the actual column names found.
type BatchFilePlan struct {
	Path         string            `json:"csv"`
	CampaignName string            `json:"campaign_name"`
	LeadCount    int               `json:"lead_count"`
	ColumnsToMap map[string]string `json:"columns_to_map"`
}

var (
	firstNameAliases = []string{"first_name", "first name", "firstname", "first"}
	lastNameAliases  = []string{"last_name", "last name", "lastname", "last"}
	emailAliases     = []string{"email", "email_address", "email address", "emailwork"}

	districtAliases = map[string]struct{}{
		"district":      {},
		"district_name": {},
		"districtname":  {},
		"district name": {},
		"company":       {},
		"organization":  {},
	}
)

// BuildPlans enumerates the CSV files in dir (lexicographic by filename)
// and builds one plan per file. Pure file-to-plan transformation; no
// network.
func BuildPlans(dir string) ([]BatchFilePlan, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), ".csv") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	plans := make([]BatchFilePlan, 0, len(names))
	for _, name := range names {
		plan, err := BuildPlan(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}
	return plans, nil
}

// BuildPlan reads one CSV file and produces its batch plan. The file must
// have a header row resolving all of first name, last name, and email
// (case/whitespace-insensitive aliases) and at least one non-empty data
// row. The campaign name comes from the first non-empty district/company/
// organization cell, falling back to the filename stem.
func BuildPlan(path string) (*BatchFilePlan, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV %s: %w", path, err)
	}
	defer fh.Close()

	reader := csv.NewReader(newBOMReader(fh))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, validationErrorf("CSV has no header row: %s", path)
		}
		return nil, fmt.Errorf("failed to read CSV %s: %w", path, err)
	}

	firstNameCol := pickColumn(header, firstNameAliases)
	lastNameCol := pickColumn(header, lastNameAliases)
	emailCol := pickColumn(header, emailAliases)
	if firstNameCol == "" || lastNameCol == "" || emailCol == "" {
		return nil, validationErrorf(
			"CSV missing required columns (first_name,last_name,email): %s", path)
	}

	districtCols := pickDistrictColumns(header)

	leadCount := 0
	districtName := ""
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV %s: %w", path, err)
		}
		if rowHasContent(row) {
			leadCount++
		}
		if districtName == "" {
			districtName = districtNameFromRow(row, districtCols)
		}
	}

	if leadCount == 0 {
		return nil, validationErrorf("CSV contains no lead rows: %s", path)
	}

	campaignName := districtName
	if campaignName == "" {
		campaignName = campaignNameFromPath(path)
	}

	return &BatchFilePlan{
		Path:         path,
		CampaignName: campaignName,
		LeadCount:    leadCount,
		ColumnsToMap: map[string]string{
			"first_name": firstNameCol,
			"last_name":  lastNameCol,
			"email":      emailCol,
		},
	}, nil
}

// pickColumn resolves a header column by case/whitespace-insensitive
// alias, returning the original column name so the API sees the CSV's
// actual header.
func pickColumn(header []string, aliases []string) string {
	normalized := make(map[string]string, len(header))
	for _, name := range header {
		normalized[strings.ToLower(strings.TrimSpace(name))] = name
	}
	for _, alias := range aliases {
		if chosen, ok := normalized[strings.ToLower(strings.TrimSpace(alias))]; ok && chosen != "" {
			return chosen
		}
	}
	return ""
}

// pickDistrictColumns returns the header indexes whose name matches the
// district/company/organization alias set.
func pickDistrictColumns(header []string) []int {
	var cols []int
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, ok := districtAliases[key]; ok {
			cols = append(cols, i)
		}
	}
	return cols
}

func districtNameFromRow(row []string, districtCols []int) string {
	for _, i := range districtCols {
		if i >= len(row) {
			continue
		}
		if cleaned := strings.TrimSpace(row[i]); cleaned != "" {
			return cleaned
		}
	}
	return ""
}

// rowHasContent reports whether at least one cell has non-whitespace
// content.
func rowHasContent(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return true
		}
	}
	return false
}

// campaignNameFromPath derives a readable campaign name from the file
// stem: "district_a-west.csv" → "district a west".
func campaignNameFromPath(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	stem = strings.ReplaceAll(stem, "_", " ")
	stem = strings.ReplaceAll(stem, "-", " ")
	stem = strings.TrimSpace(stem)
	if stem == "" {
		return filepath.Base(path)
	}
	return stem
}

// newBOMReader strips a leading UTF-8 byte order mark, which spreadsheet
// exports routinely prepend.
func newBOMReader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if peeked, err := br.Peek(3); err == nil && peeked[0] == 0xEF && peeked[1] == 0xBB && peeked[2] == 0xBF {
		br.Discard(3)
	}
	return br
}
