package prompt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadFromDirectory registers every prompt file under baseDir/prompts,
// replacing built-ins with the same ID. Expected structure:
//
//	baseDir/
//	  prompts/
//	    extraction/
//	      noi_statement.json
func (r *Registry) LoadFromDirectory(baseDir string) (int, error) {
	dir := filepath.Join(baseDir, "prompts")
	if _, err := os.Stat(dir); err != nil {
		return 0, fmt.Errorf("prompts directory not found: %s", dir)
	}

	loaded := 0
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		var pt PromptTemplate
		if err := json.Unmarshal(data, &pt); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}

		// "prompts/extraction/noi_statement.json" -> "extraction.noi_statement"
		rel, _ := filepath.Rel(dir, path)
		parts := strings.Split(strings.TrimSuffix(rel, ".json"), string(filepath.Separator))
		if pt.ID == "" {
			pt.ID = strings.Join(parts, ".")
		}
		if pt.Category == "" && len(parts) > 1 {
			pt.Category = parts[0]
		}

		if err := r.Register(&pt); err != nil {
			return err
		}
		loaded++
		return nil
	})
	return loaded, err
}
