package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/techbantu/GharSe-sub003/internal/domain"
	"github.com/techbantu/GharSe-sub003/internal/platform/observability"
	"github.com/techbantu/GharSe-sub003/internal/services"
)

type rootOptions struct {
	fixture   string
	output    string
	threshold float64
	verbose   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "assistantctl",
		Short:         "Replay assistant turns against a catalog fixture",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.fixture, "fixture", "f", "", "path to the YAML turn fixture")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "json", "output format: json or yaml")
	root.PersistentFlags().Float64Var(&opts.threshold, "threshold", 0.8, "fuzzy match threshold")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline events to stderr")

	root.AddCommand(newResolveCmd(opts), newMatchCmd(opts))
	return root
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the fixture turn into purchase actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := loadFixture(opts.fixture)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("message") {
				f.Message = message
			}
			calls, err := f.toolCalls()
			if err != nil {
				return err
			}

			logger := zap.NewNop()
			if opts.verbose {
				logger, err = zap.NewDevelopment()
				if err != nil {
					return err
				}
				defer func() { _ = logger.Sync() }()
			}

			svc, err := services.NewAssistantActionService(services.AssistantActionServiceDeps{
				Catalog:        staticCatalog(f.catalogItems()),
				FuzzyThreshold: opts.threshold,
				RenderMarkdown: true,
				Logger:         observability.EventLogger(logger),
			})
			if err != nil {
				return err
			}
			result, err := svc.ResolveActions(cmd.Context(), services.ResolveActionsCommand{
				UserID:    f.UserID,
				Message:   f.Message,
				ToolCalls: calls,
				Cart:      f.cartSnapshot(),
			})
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, newResolveReport(result))
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "override the fixture message")
	return cmd
}

func newMatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "match NAME",
		Short: "Fuzzy-match a single item name against the fixture catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFixture(opts.fixture)
			if err != nil {
				return err
			}
			catalog, _ := staticCatalog(f.catalogItems()).ListAvailableItems(cmd.Context())
			matcher := services.NewCatalogMatcher(opts.threshold)
			report := matchReport{Query: args[0], Threshold: matcher.Threshold()}
			if item, ok := matcher.Match(args[0], catalog); ok {
				report.Match = &reportItem{
					ID:         item.ID,
					Name:       item.Name,
					Price:      item.Price,
					Category:   item.Category,
					Confidence: item.Confidence,
				}
			}
			return render(cmd.OutOrStdout(), opts.output, report)
		},
	}
}

type reportItem struct {
	ID         string  `json:"id" yaml:"id"`
	Name       string  `json:"name" yaml:"name"`
	Price      float64 `json:"price" yaml:"price"`
	Category   string  `json:"category,omitempty" yaml:"category,omitempty"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Layer      string  `json:"layer,omitempty" yaml:"layer,omitempty"`
}

type matchReport struct {
	Query     string      `json:"query" yaml:"query"`
	Threshold float64     `json:"threshold" yaml:"threshold"`
	Match     *reportItem `json:"match" yaml:"match"`
}

type resolveReport struct {
	TurnID    string          `json:"turnId" yaml:"turnId"`
	Layer     string          `json:"layer" yaml:"layer"`
	Degraded  bool            `json:"degraded" yaml:"degraded"`
	Resolved  []reportItem    `json:"resolved" yaml:"resolved"`
	Mentioned []reportItem    `json:"mentioned" yaml:"mentioned"`
	Actions   []domain.Action `json:"actions" yaml:"actions"`
}

func newResolveReport(result services.ResolveActionsResult) resolveReport {
	report := resolveReport{
		TurnID:    result.TurnID,
		Layer:     string(result.Layer),
		Degraded:  result.Degraded,
		Resolved:  toReportItems(result.Resolved),
		Mentioned: toReportItems(result.Mentioned),
		Actions:   result.Actions,
	}
	if report.Actions == nil {
		report.Actions = []domain.Action{}
	}
	return report
}

func toReportItems(items []domain.ResolvedItem) []reportItem {
	out := make([]reportItem, 0, len(items))
	for _, item := range items {
		out = append(out, reportItem{
			ID:         item.ID,
			Name:       item.Name,
			Price:      item.Price,
			Category:   item.Category,
			Confidence: item.Confidence,
			Layer:      string(item.Layer),
		})
	}
	return out
}

func render(w io.Writer, format string, value any) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
