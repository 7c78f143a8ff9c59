package taxonomy

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caostack/pngx-cao/internal/refdata"
)

// ValidationResult describes the state of one taxonomy's reference data.
type ValidationResult struct {
	Taxonomy string
	CSVFile  string
	Valid    bool
	Detail   string
}

// ValidateLocal checks every taxonomy's CSV file without touching the server:
// the file must exist and parse, and the result records how many values (or
// groups and members, for grouped taxonomies) it contains. Returns false when
// any taxonomy has a problem.
func (s *Service) ValidateLocal(dataDir string) ([]ValidationResult, bool) {
	results := make([]ValidationResult, 0, len(s.defs))
	allValid := true

	for _, def := range s.defs {
		csvPath := filepath.Join(dataDir, def.CSVFile)
		result := ValidationResult{Taxonomy: def.Name, CSVFile: def.CSVFile}

		if _, err := os.Stat(csvPath); err != nil {
			result.Detail = fmt.Sprintf("file not found: %s", csvPath)
			allValid = false
			results = append(results, result)
			continue
		}

		if def.Grouped {
			byGroup, err := refdata.ReadActorsByGroup(csvPath)
			if err != nil {
				result.Detail = fmt.Sprintf("error reading file: %v", err)
				allValid = false
				results = append(results, result)
				continue
			}
			total := 0
			for _, members := range byGroup {
				total += len(members)
			}
			result.Valid = true
			result.Detail = fmt.Sprintf("%d actors in %d animal groups", total, len(byGroup))
		} else {
			values, err := refdata.ReadValues(csvPath)
			if err != nil {
				result.Detail = fmt.Sprintf("error reading file: %v", err)
				allValid = false
				results = append(results, result)
				continue
			}
			result.Valid = true
			result.Detail = fmt.Sprintf("%d values", len(values))
		}

		results = append(results, result)
	}

	return results, allValid
}
