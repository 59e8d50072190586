// Command validate checks the user records of a file directory before the
// server is pointed at it. For every <username>.json it checks:
//   - JSON structure
//   - username format, and that it matches the file name
//   - score is not negative
//   - password, when set, is a bcrypt hash
//   - no two files claim the same username
//
// Usage: validate [dir] (default ../users)
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/gobang-online/directory"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File     string
	Username string
	Valid    bool
	Errors   []string
}

// validateUser loads and validates a single user record file.
func validateUser(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	var rec directory.Record
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid JSON: %v", err))
		return result
	}

	stem := strings.TrimSuffix(result.File, filepath.Ext(result.File))
	if err := directory.ValidateUsername(stem); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("File name is not a valid username: %q", stem))
	}

	// The directory fills a missing username from the file name
	if rec.Username == "" {
		rec.Username = stem
	} else if rec.Username != stem {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("username %q does not match file name %q", rec.Username, stem))
	}
	result.Username = rec.Username

	if err := directory.ValidateUsername(rec.Username); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
	}

	if rec.Score < 0 {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("score must not be negative, got %d", rec.Score))
	}

	if rec.Password != "" && !directory.IsPasswordHash(rec.Password) {
		result.Valid = false
		result.Errors = append(result.Errors, "password must be a bcrypt hash, not plaintext")
	}

	// Add informational data
	if result.Valid {
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Username: %s", rec.Username))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Score: %d", rec.Score))
		if rec.Password == "" {
			result.Errors = append(result.Errors, "✓ Password: none (any password accepted)")
		} else {
			result.Errors = append(result.Errors, "✓ Password: set")
		}
	}

	return result
}

// validateDirectory validates every *.json file in dir and flags usernames
// claimed by more than one file. Matching is case-insensitive since the
// files may live on a case-insensitive filesystem.
func validateDirectory(dir string) ([]ValidationResult, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}

	results := make([]ValidationResult, 0, len(files))
	seen := make(map[string]string)
	for _, file := range files {
		result := validateUser(file)
		if result.Username != "" {
			key := strings.ToLower(result.Username)
			if first, ok := seen[key]; ok {
				result.Valid = false
				result.Errors = append(result.Errors, fmt.Sprintf("Duplicate username %q, already defined in %s", result.Username, first))
			} else {
				seen[key] = result.File
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// main validates the directory given as the first argument (default
// ../users), printing a concise report and exiting with non-zero status if
// any record is invalid.
func main() {
	dir := "../users"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	results, err := validateDirectory(dir)
	if err != nil {
		fmt.Printf("Error finding user files: %v\n", err)
		os.Exit(1)
	}

	allValid := true
	for _, result := range results {
		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Printf("✅ All %d user records are valid!\n", len(results))
	} else {
		fmt.Println("❌ Some user records have errors")
		os.Exit(1)
	}
}
