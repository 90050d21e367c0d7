package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"newsroom/internal/bootstrap"
	"newsroom/internal/domain/article"
	"newsroom/internal/errs"
	"newsroom/internal/usecase/lifecycle"
)

// importFile is the YAML layout accepted by `articles import`.
//
//	defaults:
//	  category: politik
//	  languages: [en, fr]
//	articles:
//	  - text: Landtagswahl in Sachsen
//	  - trigger: url
//	    urls: [https://example.org/a]
type importFile struct {
	Defaults importEntry   `yaml:"defaults"`
	Articles []importEntry `yaml:"articles"`
}

type importEntry struct {
	Trigger   string   `yaml:"trigger"`
	Text      string   `yaml:"text"`
	Category  string   `yaml:"category"`
	Languages []string `yaml:"languages"`
	URLs      []string `yaml:"urls"`
	Image     string   `yaml:"image"`
}

var articlesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Create articles from a YAML file",
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, _ *bootstrap.App, svc *lifecycle.Service) error {
		path, _ := cmd.Flags().GetString("file")
		inputs, err := loadImportFile(path)
		if err != nil {
			return err
		}

		failed := 0
		for index, input := range inputs {
			created, err := svc.Create(ctx, input)
			if err != nil {
				failed++
				if _, werr := fmt.Fprintf(cmd.ErrOrStderr(), "entry %d: %v\n", index+1, err); werr != nil {
					return errs.Wrap(werr, "write import output")
				}
				continue
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "created article #%d status=%s\n", created.ArticleID, created.Status); err != nil {
				return errs.Wrap(err, "write import output")
			}
		}

		if failed > 0 {
			return article.Validationf("%d of %d entries failed", failed, len(inputs))
		}
		return nil
	}),
}

func loadImportFile(path string) ([]lifecycle.CreateInput, error) {
	raw, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return parseImport(raw)
}

func parseImport(raw []byte) ([]lifecycle.CreateInput, error) {
	var file importFile
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, article.Validationf("parse import file: %v", err)
	}
	if len(file.Articles) == 0 {
		return nil, article.Validationf("import file has no articles")
	}

	inputs := make([]lifecycle.CreateInput, 0, len(file.Articles))
	for _, entry := range file.Articles {
		merged := entry.withDefaults(file.Defaults)
		inputs = append(inputs, lifecycle.CreateInput{
			TriggerType: merged.Trigger,
			Text:        merged.Text,
			Category:    merged.Category,
			Languages:   languageSet(merged.Languages),
			URLs:        merged.URLs,
			ImageType:   merged.Image,
		})
	}
	return inputs, nil
}

func (e importEntry) withDefaults(defaults importEntry) importEntry {
	if strings.TrimSpace(e.Trigger) == "" {
		e.Trigger = defaults.Trigger
	}
	if strings.TrimSpace(e.Category) == "" {
		e.Category = defaults.Category
	}
	if len(e.Languages) == 0 {
		e.Languages = defaults.Languages
	}
	if strings.TrimSpace(e.Image) == "" {
		e.Image = defaults.Image
	}
	return e
}

func readFile(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, article.Validationf("file path is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(err, "read file %q", path)
	}
	return raw, nil
}

func init() {
	articlesCmd.AddCommand(articlesImportCmd)
	articlesImportCmd.Flags().String("file", "", "YAML file with articles")
	_ = articlesImportCmd.MarkFlagRequired("file")
}
