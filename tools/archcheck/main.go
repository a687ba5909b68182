package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const modulePath = "github.com/yairfalse/ilmari/"

type Level int

const (
	LevelCmd Level = iota + 1
	LevelWiring
	LevelOperations
	LevelInfrastructure
	LevelFoundation
	LevelPkg
)

var packageLevels = map[string]Level{
	"cmd":                  LevelCmd,
	"internal/app":         LevelWiring,
	"internal/workflow":    LevelOperations,
	"internal/rotation":    LevelOperations,
	"internal/ipam":        LevelOperations,
	"internal/health":      LevelOperations,
	"internal/archive":     LevelOperations,
	"internal/output":      LevelOperations,
	"internal/channel":     LevelInfrastructure,
	"internal/credentials": LevelInfrastructure,
	"internal/storage":     LevelInfrastructure,
	"internal/differ":      LevelInfrastructure,
	"internal/journal":     LevelInfrastructure,
	"internal/snmp":        LevelInfrastructure,
	"internal/ai":          LevelInfrastructure,
	"internal/clients":     LevelInfrastructure,
	"internal/errors":      LevelFoundation,
	"internal/logger":      LevelFoundation,
	"pkg":                  LevelPkg,
}

type Violation struct {
	FromFile    string
	FromPackage string
	FromLevel   Level
	ToPackage   string
	ToLevel     Level
}

// getPackageLevel matches whole path segments, so internal/app does not claim internal/apple
func getPackageLevel(pkgPath string) Level {
	pkgPath = filepath.ToSlash(pkgPath)
	best, bestLen := Level(0), 0
	for prefix, level := range packageLevels {
		if pkgPath != prefix && !strings.HasPrefix(pkgPath, prefix+"/") {
			continue
		}
		if len(prefix) > bestLen {
			best, bestLen = level, len(prefix)
		}
	}
	return best
}

func getPackageFromPath(filePath string) string {
	dir := filepath.ToSlash(filepath.Dir(filePath))
	dir = strings.TrimPrefix(dir, "./")
	if dir == "." {
		return ""
	}
	return dir
}

func checkFile(filePath string) ([]Violation, error) {
	var violations []Violation

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	fset := token.NewFileSet()
	node, err := parser.ParseFile(fset, filePath, content, parser.ImportsOnly)
	if err != nil {
		return nil, err
	}

	fromPackage := getPackageFromPath(filePath)
	fromLevel := getPackageLevel(fromPackage)

	if fromLevel == 0 {
		return violations, nil
	}

	for _, imp := range node.Imports {
		importPath := strings.Trim(imp.Path.Value, `"`)

		// Only packages of this module are layered
		if !strings.HasPrefix(importPath, modulePath) {
			continue
		}
		importPath = strings.TrimPrefix(importPath, modulePath)

		toLevel := getPackageLevel(importPath)
		if toLevel == 0 {
			continue
		}

		// Check for violations: importing from a higher level
		if toLevel < fromLevel {
			violations = append(violations, Violation{
				FromFile:    filePath,
				FromPackage: fromPackage,
				FromLevel:   fromLevel,
				ToPackage:   importPath,
				ToLevel:     toLevel,
			})
		}
	}

	return violations, nil
}

func walkGoFiles(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && path != root {
			name := info.Name()
			if name == "vendor" || name == "testdata" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
				return filepath.SkipDir
			}
		}
		if !info.IsDir() && strings.HasSuffix(path, ".go") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func levelName(l Level) string {
	switch l {
	case LevelCmd:
		return "CMD (Level 1)"
	case LevelWiring:
		return "WIRING (Level 2)"
	case LevelOperations:
		return "OPERATIONS (Level 3)"
	case LevelInfrastructure:
		return "INFRASTRUCTURE (Level 4)"
	case LevelFoundation:
		return "FOUNDATION (Level 5)"
	case LevelPkg:
		return "PKG (Level 6)"
	default:
		return "UNKNOWN"
	}
}

func main() {
	fmt.Println("ILMARI Architecture Level Checker")
	fmt.Println("=================================")
	fmt.Println()
	fmt.Println("Architectural Levels:")
	fmt.Println("  Level 1 (CMD):            cmd/")
	fmt.Println("  Level 2 (WIRING):         internal/app")
	fmt.Println("  Level 3 (OPERATIONS):     internal/workflow, rotation, ipam, health, archive, output")
	fmt.Println("  Level 4 (INFRASTRUCTURE): internal/channel, credentials, storage, differ, journal, snmp, ai, clients")
	fmt.Println("  Level 5 (FOUNDATION):     internal/errors, logger")
	fmt.Println("  Level 6 (PKG):            pkg/")
	fmt.Println()
	fmt.Println("Rule: Each level can only import from same level or lower (higher number)")
	fmt.Println()

	files, err := walkGoFiles(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error walking files: %v\n", err)
		os.Exit(1)
	}

	var allViolations []Violation
	checkedFiles := 0

	for _, file := range files {
		violations, err := checkFile(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error checking %s: %v\n", file, err)
			continue
		}
		allViolations = append(allViolations, violations...)
		checkedFiles++
	}

	fmt.Printf("Checked %d Go files\n", checkedFiles)
	fmt.Println()

	if len(allViolations) == 0 {
		fmt.Println("No architectural level violations found!")
		os.Exit(0)
	}

	fmt.Printf("Found %d architectural level violations:\n", len(allViolations))
	fmt.Println()

	// Group violations by type
	violationMap := make(map[string][]Violation)
	for _, v := range allViolations {
		key := fmt.Sprintf("%s -> %s", levelName(v.FromLevel), levelName(v.ToLevel))
		violationMap[key] = append(violationMap[key], v)
	}

	keys := make([]string, 0, len(violationMap))
	for k := range violationMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, violationType := range keys {
		violations := violationMap[violationType]
		fmt.Printf("\n%s (%d violations):\n", violationType, len(violations))
		for i, v := range violations {
			if i >= 5 {
				fmt.Printf("   ... and %d more\n", len(violations)-5)
				break
			}
			fmt.Printf("   %s imports %s\n", v.FromFile, v.ToPackage)
		}
	}

	fmt.Println()
	fmt.Println("To fix these violations:")
	fmt.Println("   1. Move shared code to lower levels (higher numbers)")
	fmt.Println("   2. Accept an interface in the lower package instead of importing upwards")
	fmt.Println("   3. Consider if the code is in the right package")

	os.Exit(1)
}
