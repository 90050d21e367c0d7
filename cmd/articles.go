package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"newsroom/internal/bootstrap"
	"newsroom/internal/bootstrap/logging"
	"newsroom/internal/domain/article"
	"newsroom/internal/errs"
	"newsroom/internal/ports"
	"newsroom/internal/usecase/lifecycle"
)

var articlesCmd = &cobra.Command{
	Use:   "articles",
	Short: "Inspect and drive articles without the web UI",
}

var articlesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List articles, newest first",
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, _ *bootstrap.App, svc *lifecycle.Service) error {
		statusFlag, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := ports.ArticleFilter{Limit: limit}
		if strings.TrimSpace(statusFlag) != "" {
			status, err := article.ParseStatus(statusFlag)
			if err != nil {
				return err
			}
			filter.Status = status
		}

		items, err := svc.List(ctx, filter)
		if err != nil {
			return errs.Wrap(err, "list articles")
		}
		return writeArticleTable(cmd.OutOrStdout(), items)
	}),
}

var articlesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an article from a prompt or URLs",
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, _ *bootstrap.App, svc *lifecycle.Service) error {
		triggerType, _ := cmd.Flags().GetString("trigger")
		category, _ := cmd.Flags().GetString("category")
		urls, _ := cmd.Flags().GetStringSlice("url")
		langs, _ := cmd.Flags().GetStringSlice("lang")
		imageType, _ := cmd.Flags().GetString("image")
		text, err := resolveText(cmd)
		if err != nil {
			return err
		}

		created, err := svc.Create(ctx, lifecycle.CreateInput{
			TriggerType: triggerType,
			Text:        text,
			Category:    category,
			Languages:   languageSet(langs),
			URLs:        urls,
			ImageType:   imageType,
		})
		if err != nil {
			logging.Error(ctx, "create article failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "create article")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "created article #%d status=%s\n", created.ArticleID, created.Status); err != nil {
			return errs.Wrap(err, "write create output")
		}
		return nil
	}),
}

type feedbackAction func(ctx context.Context, svc *lifecycle.Service, articleID uint64, feedback string) (ports.Article, error)

type plainAction func(ctx context.Context, svc *lifecycle.Service, articleID uint64) (ports.Article, error)

func newFeedbackCmd(use string, short string, action feedbackAction) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, _ *bootstrap.App, svc *lifecycle.Service) error {
			articleID, _ := cmd.Flags().GetUint64("id")
			feedback, _ := cmd.Flags().GetString("feedback")
			updated, err := action(ctx, svc, articleID, feedback)
			return reportAction(cmd, use, updated, err)
		}),
	}
	cmd.Flags().Uint64("id", 0, "Article id")
	cmd.Flags().String("feedback", "", "Editor feedback")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newPlainCmd(use string, short string, action plainAction) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, _ *bootstrap.App, svc *lifecycle.Service) error {
			articleID, _ := cmd.Flags().GetUint64("id")
			updated, err := action(ctx, svc, articleID)
			return reportAction(cmd, use, updated, err)
		}),
	}
	cmd.Flags().Uint64("id", 0, "Article id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func reportAction(cmd *cobra.Command, action string, updated ports.Article, err error) error {
	if errors.Is(err, article.ErrNoOp) {
		_, werr := fmt.Fprintf(cmd.OutOrStdout(), "%s: nothing to do\n", action)
		return errs.Wrap(werr, "write action output")
	}
	if err != nil {
		return errs.Wrapf(err, "%s article", action)
	}
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "article #%d %s: status=%s\n", updated.ArticleID, action, updated.Status); err != nil {
		return errs.Wrap(err, "write action output")
	}
	return nil
}

func writeArticleTable(w io.Writer, items []ports.Article) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "no articles")
		return errs.Wrap(err, "write list output")
	}
	for _, item := range items {
		title := item.Title
		if title == "" {
			title = "(untitled)"
		}
		if _, err := fmt.Fprintf(w, "#%d\t%-12s\t%-10s\t%s\n", item.ArticleID, item.Status, item.Category, title); err != nil {
			return errs.Wrap(err, "write list output")
		}
	}
	return nil
}

func resolveText(cmd *cobra.Command) (string, error) {
	inline, _ := cmd.Flags().GetString("text")
	textFile, _ := cmd.Flags().GetString("text-file")

	if strings.TrimSpace(inline) != "" && strings.TrimSpace(textFile) != "" {
		return "", article.Validationf("text and text-file are mutually exclusive")
	}
	if strings.TrimSpace(textFile) != "" {
		raw, err := readFile(textFile)
		if err != nil {
			return "", err
		}
		inline = string(raw)
	}
	return inline, nil
}

func languageSet(langs []string) map[string]bool {
	if len(langs) == 0 {
		return nil
	}
	out := make(map[string]bool, len(langs))
	for _, lang := range langs {
		if lang = strings.ToLower(strings.TrimSpace(lang)); lang != "" {
			out[lang] = true
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(articlesCmd)

	articlesCmd.AddCommand(articlesListCmd)
	articlesListCmd.Flags().String("status", "", "Optional status filter (generating|review|translating|...)")
	articlesListCmd.Flags().Int("limit", 50, "Maximum rows")

	articlesCmd.AddCommand(articlesCreateCmd)
	articlesCreateCmd.Flags().String("trigger", "prompt", "Trigger type (prompt|url|rss|calendar|image)")
	articlesCreateCmd.Flags().String("text", "", "Prompt text")
	articlesCreateCmd.Flags().String("text-file", "", "Read prompt text from file")
	articlesCreateCmd.Flags().String("category", "", "Category")
	articlesCreateCmd.Flags().StringSlice("url", nil, "Source URL (repeatable)")
	articlesCreateCmd.Flags().StringSlice("lang", nil, "Target language (repeatable)")
	articlesCreateCmd.Flags().String("image", "", "Image type")

	articlesCmd.AddCommand(
		newFeedbackCmd("approve", "Approve an article in review", func(ctx context.Context, svc *lifecycle.Service, id uint64, feedback string) (ports.Article, error) {
			return svc.Approve(ctx, id, feedback)
		}),
		newFeedbackCmd("revise", "Send an article back to generation with feedback", func(ctx context.Context, svc *lifecycle.Service, id uint64, feedback string) (ports.Article, error) {
			return svc.Revise(ctx, id, feedback)
		}),
		newFeedbackCmd("reject", "Reject an article", func(ctx context.Context, svc *lifecycle.Service, id uint64, feedback string) (ports.Article, error) {
			return svc.Reject(ctx, id, feedback)
		}),
		newPlainCmd("cancel", "Cancel an article", func(ctx context.Context, svc *lifecycle.Service, id uint64) (ports.Article, error) {
			return svc.Cancel(ctx, id)
		}),
		newPlainCmd("retry", "Retry a failed or cancelled article", func(ctx context.Context, svc *lifecycle.Service, id uint64) (ports.Article, error) {
			return svc.Retry(ctx, id)
		}),
	)
}
