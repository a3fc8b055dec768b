package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lifeapp/lifecycle-backend/internal/app"
	types "github.com/lifeapp/lifecycle-backend/internal/domain"
	"github.com/lifeapp/lifecycle-backend/internal/modules/lifecycle"
)

var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Record lifecycle steps and change their visibility",
}

var stepAdd struct {
	product     string
	user        string
	stepType    string
	title       string
	description string
	source      string
	priority    int
	ecoBefore   int
	ecoAfter    int
	priceBefore float64
	priceAfter  float64
	metadata    string
	hidden      bool
}

var stepAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Append a step and summarize when a batch completes",
	RunE:  runStepAdd,
}

var stepVisibility struct {
	visible bool
	force   bool
}

var stepVisibilityCmd = &cobra.Command{
	Use:   "visibility <step-id>",
	Short: "Show or hide a step",
	Long: `Show or hide a step. Changing a step inside an already summarized batch
is refused unless --force is given, which regenerates the affected summaries.`,
	Args: cobra.ExactArgs(1),
	RunE: runStepVisibility,
}

func init() {
	f := stepAddCmd.Flags()
	f.StringVar(&stepAdd.product, "product", "", "product id (required)")
	f.StringVar(&stepAdd.user, "user", "", "user id for a user-scoped step")
	f.StringVar(&stepAdd.stepType, "type", "note", "step type, e.g. repaired, broken, just bought")
	f.StringVar(&stepAdd.title, "title", "", "short title (required)")
	f.StringVar(&stepAdd.description, "description", "", "free-form description")
	f.StringVar(&stepAdd.source, "source", "user", "user, bot, system or extension")
	f.IntVar(&stepAdd.priority, "priority", 0, "1-10; 0 uses the step type's default")
	f.IntVar(&stepAdd.ecoBefore, "eco-before", -1, "eco score before the event")
	f.IntVar(&stepAdd.ecoAfter, "eco-after", -1, "eco score after the event")
	f.Float64Var(&stepAdd.priceBefore, "price-before", -1, "price before the event")
	f.Float64Var(&stepAdd.priceAfter, "price-after", -1, "price after the event")
	f.StringVar(&stepAdd.metadata, "metadata", "", "JSON metadata object")
	f.BoolVar(&stepAdd.hidden, "hidden", false, "record without counting toward summaries")
	_ = stepAddCmd.MarkFlagRequired("product")
	_ = stepAddCmd.MarkFlagRequired("title")

	stepVisibilityCmd.Flags().BoolVar(&stepVisibility.visible, "visible", true, "target visibility")
	stepVisibilityCmd.Flags().BoolVar(&stepVisibility.force, "force", false, "regenerate summaries the change invalidates")

	stepCmd.AddCommand(stepAddCmd, stepVisibilityCmd)
	rootCmd.AddCommand(stepCmd)
}

func runStepAdd(cmd *cobra.Command, _ []string) error {
	productID, err := parseID("product id", stepAdd.product)
	if err != nil {
		return err
	}
	userID, err := parseOptionalID("user id", stepAdd.user)
	if err != nil {
		return err
	}
	in := lifecycle.RecordStepInput{
		ProductID:   productID,
		UserID:      userID,
		StepType:    stepAdd.stepType,
		Title:       stepAdd.title,
		Description: stepAdd.description,
		Source:      stepAdd.source,
		Priority:    stepAdd.priority,
		Hidden:      stepAdd.hidden,
	}
	if stepAdd.ecoBefore >= 0 {
		in.EcoBefore = &stepAdd.ecoBefore
	}
	if stepAdd.ecoAfter >= 0 {
		in.EcoAfter = &stepAdd.ecoAfter
	}
	if stepAdd.priceBefore >= 0 {
		in.PriceBefore = &stepAdd.priceBefore
	}
	if stepAdd.priceAfter >= 0 {
		in.PriceAfter = &stepAdd.priceAfter
	}
	if stepAdd.metadata != "" {
		if !json.Valid([]byte(stepAdd.metadata)) {
			return fmt.Errorf("--metadata is not valid JSON")
		}
		in.Metadata = types.DecodeStepMetadata([]byte(stepAdd.metadata))
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		out, err := a.Services.Lifecycle.RecordStep(ctx, in)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), out)
		}
		w := cmd.OutOrStdout()
		okColor.Fprintf(w, "recorded ")
		fmt.Fprintf(w, "step %s seq=%d type=%s priority=%d\n", out.Step.ID, out.Step.Seq, out.Step.StepType, out.Step.Priority)
		if out.Summarized && out.Summary != nil {
			infoColor.Fprintf(w, "summarized ")
			fmt.Fprintf(w, "steps %d-%d\n", out.Summary.StepCountStart, out.Summary.StepCountEnd)
		}
		return nil
	})
}

func runStepVisibility(cmd *cobra.Command, args []string) error {
	stepID, err := parseID("step id", args[0])
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		out, err := a.Services.Lifecycle.SetStepVisibility(ctx, lifecycle.SetVisibilityInput{
			StepID:  stepID,
			Visible: stepVisibility.visible,
			Force:   stepVisibility.force,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), out)
		}
		w := cmd.OutOrStdout()
		if !out.Changed {
			dimColor.Fprintln(w, "unchanged")
			return nil
		}
		okColor.Fprintf(w, "updated ")
		fmt.Fprintf(w, "step %s visible=%v\n", out.Step.ID, out.Step.IsVisible)
		for _, s := range out.Regenerated {
			infoColor.Fprintf(w, "  summary ")
			fmt.Fprintf(w, "steps %d-%d\n", s.StepCountStart, s.StepCountEnd)
		}
		return nil
	})
}
