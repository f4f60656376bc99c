// cmd/tools/vocabulary-updater/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finqa-agent/pkg/registry"
)

var vocabularyPath string

func main() {
	addCompanyCmd := flag.NewFlagSet("add-company", flag.ExitOnError)
	addAliasCmd := flag.NewFlagSet("add-alias", flag.ExitOnError)
	addMetricCmd := flag.NewFlagSet("add-metric", flag.ExitOnError)
	yearsCmd := flag.NewFlagSet("years", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{addCompanyCmd, addAliasCmd, addMetricCmd, yearsCmd, validateCmd, listCmd} {
		fs.StringVar(&vocabularyPath, "path", "configs/vocabulary.json", "Path to vocabulary file")
	}

	ticker := addCompanyCmd.String("ticker", "", "Ticker (e.g., AMZN)")
	name := addCompanyCmd.String("name", "", "Company name used in questions (e.g., amazon)")
	displayName := addCompanyCmd.String("displayName", "", "Display name (e.g., Amazon)")
	aliases := addCompanyCmd.String("aliases", "", "Comma separated aliases")
	segments := addCompanyCmd.String("segments", "", "Comma separated business segments")

	aliasTicker := addAliasCmd.String("ticker", "", "Ticker to extend")
	alias := addAliasCmd.String("alias", "", "Alias to add")

	metricName := addMetricCmd.String("name", "", "Canonical metric keyword (e.g., free cash flow)")
	synonyms := addMetricCmd.String("synonyms", "", "Comma separated synonyms")

	minYear := yearsCmd.Int("min", 0, "First fiscal year covered")
	maxYear := yearsCmd.Int("max", 0, "Last fiscal year covered")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "add-company":
		addCompanyCmd.Parse(os.Args[2:])
		if *ticker == "" || *name == "" {
			fmt.Println("Error: ticker and name are required for add-company.")
			addCompanyCmd.Usage()
			os.Exit(1)
		}
		company := registry.Company{
			Ticker:      strings.ToUpper(*ticker),
			Name:        strings.ToLower(*name),
			DisplayName: *displayName,
			Aliases:     splitList(*aliases),
			Segments:    splitList(*segments),
		}
		if company.DisplayName == "" {
			company.DisplayName = *name
		}
		err = update(func(v *registry.Vocabulary) error {
			if _, ok := v.Company(company.Ticker); ok {
				return fmt.Errorf("company %s already exists", company.Ticker)
			}
			v.Companies = append(v.Companies, company)
			return nil
		})
		report(err, "Added company: "+company.Ticker)

	case "add-alias":
		addAliasCmd.Parse(os.Args[2:])
		if *aliasTicker == "" || *alias == "" {
			fmt.Println("Error: ticker and alias are required for add-alias.")
			addAliasCmd.Usage()
			os.Exit(1)
		}
		err = update(func(v *registry.Vocabulary) error {
			for i := range v.Companies {
				if v.Companies[i].Ticker == strings.ToUpper(*aliasTicker) {
					v.Companies[i].Aliases = append(v.Companies[i].Aliases, strings.ToLower(*alias))
					return nil
				}
			}
			return fmt.Errorf("company %s not found", *aliasTicker)
		})
		report(err, fmt.Sprintf("Added alias %q to %s", *alias, strings.ToUpper(*aliasTicker)))

	case "add-metric":
		addMetricCmd.Parse(os.Args[2:])
		if *metricName == "" {
			fmt.Println("Error: name is required for add-metric.")
			addMetricCmd.Usage()
			os.Exit(1)
		}
		err = update(func(v *registry.Vocabulary) error {
			for _, m := range v.Metrics {
				if m.Name == *metricName {
					return fmt.Errorf("metric %q already exists", *metricName)
				}
			}
			v.Metrics = append(v.Metrics, registry.Metric{Name: strings.ToLower(*metricName), Synonyms: splitList(*synonyms)})
			return nil
		})
		report(err, "Added metric: "+*metricName)

	case "years":
		yearsCmd.Parse(os.Args[2:])
		err = update(func(v *registry.Vocabulary) error {
			v.FiscalYears = registry.YearRange{Min: *minYear, Max: *maxYear}
			return nil
		})
		report(err, fmt.Sprintf("Fiscal years set to %d-%d", *minYear, *maxYear))

	case "validate":
		validateCmd.Parse(os.Args[2:])
		v, err := registry.LoadVocabulary(vocabularyPath)
		if err != nil {
			fmt.Printf("Vocabulary validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Vocabulary validation passed. Found %d companies and %d metrics.\n", len(v.Companies), len(v.Metrics))

	case "list":
		listCmd.Parse(os.Args[2:])
		v, err := registry.LoadOrDefault(vocabularyPath)
		if err != nil {
			fmt.Printf("Error loading vocabulary: %v\n", err)
			os.Exit(1)
		}
		for _, c := range v.Companies {
			fmt.Printf("%-6s %-12s aliases=%s segments=%s\n", c.Ticker, c.DisplayName,
				strings.Join(c.Aliases, ","), strings.Join(c.Segments, ","))
		}
		fmt.Printf("fiscal years %d-%d, %d metrics\n", v.FiscalYears.Min, v.FiscalYears.Max, len(v.Metrics))

	case "help":
		fallthrough
	default:
		help()
	}
}

// update loads the vocabulary (or the built-in one when the file is missing),
// applies fn, validates and saves.
func update(fn func(v *registry.Vocabulary) error) error {
	v, err := registry.LoadVocabulary(vocabularyPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load vocabulary: %w", err)
		}
		v = registry.Default()
	}

	if err := fn(v); err != nil {
		return err
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("vocabulary would be invalid: %w", err)
	}

	v.LastUpdated = time.Now().Format(time.RFC3339)
	return saveVocabulary(v, vocabularyPath)
}

func saveVocabulary(v *registry.Vocabulary, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal vocabulary: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write vocabulary file: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(strings.ToLower(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func report(err error, success string) {
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(success)
}

func help() {
	fmt.Println(`
Usage: vocabulary-updater <command> [flags]

Commands:
  add-company  Add a company with its aliases and segments
  add-alias    Add an alias to an existing company
  add-metric   Add a canonical metric keyword
  years        Set the fiscal year range covered by the filings
  validate     Validate the vocabulary file
  list         Print companies and coverage
  help         Show this help message

Examples:
  vocabulary-updater add-company -ticker AMZN -name amazon -displayName Amazon -aliases "amazon.com,aws" -segments "north america,international,aws"
  vocabulary-updater add-alias -ticker GOOGL -alias youtube
  vocabulary-updater add-metric -name "free cash flow" -synonyms "fcf"
  vocabulary-updater validate -path configs/vocabulary.json

Use 'vocabulary-updater <command> -h' for more information about a command.
`)
}
