package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"plantdoc/internal/analyses"
	"plantdoc/internal/bootstrap"
	"plantdoc/internal/shared/apiclient"
)

const cliNamespace = "cli"

type analyzeOptions struct {
	lat, lng, accuracy float64
	noSave             bool
}

type analyzeOutput struct {
	Analysis  analyses.CompleteAnalysis `json:"analysis"`
	Mode      analyses.Mode             `json:"mode"`
	Simulated bool                      `json:"simulated"`
	Notice    string                    `json:"notice,omitempty"`
	HistoryID string                    `json:"historyId,omitempty"`
}

func (c *cli) analyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze <image>",
		Short: "Identify and diagnose a plant photo",
		Long: `Store the photo, identify the plant, assess its health and print the
complete analysis as JSON. The analysis is saved to history unless
--no-save is given.

Examples:
  plantdoc analyze leaf.jpg
  plantdoc analyze leaf.jpg --lat -23.55 --lng -46.63 --accuracy 12`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAnalyze(cmd, args[0], opts)
		},
	}
	cmd.Flags().Float64Var(&opts.lat, "lat", 0, "latitude of the photo")
	cmd.Flags().Float64Var(&opts.lng, "lng", 0, "longitude of the photo")
	cmd.Flags().Float64Var(&opts.accuracy, "accuracy", 0, "location accuracy in meters")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "do not save the analysis to history")
	cmd.MarkFlagsRequiredTogether("lat", "lng")
	return cmd
}

func (c *cli) runAnalyze(cmd *cobra.Command, path string, opts *analyzeOptions) error {
	loc, err := locationFromFlags(cmd, opts)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	app, err := c.app(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	imageURI, err := storeImage(ctx, app, path)
	if err != nil {
		return err
	}

	res := app.AnalysisService.CompleteAnalysis(ctx, imageURI, loc)
	out := analyzeOutput{
		Analysis:  res.Analysis,
		Mode:      res.Mode,
		Simulated: res.Simulated(),
	}
	if res.Cause != nil {
		out.Notice = apiclient.UserMessage(res.Cause)
	}
	if !opts.noSave {
		id, err := app.HistoryService.SaveAnalysis(ctx, res.Analysis, imageURI, loc)
		if err != nil {
			return fmt.Errorf("save analysis: %w", err)
		}
		out.Analysis.ID = id
		out.HistoryID = id
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func (c *cli) identifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "identify <image>",
		Short: "Identify a plant photo without a health assessment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := c.app(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			imageURI, err := storeImage(ctx, app, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"identification": app.AnalysisService.QuickAnalysis(ctx, imageURI),
				"imageUri":       imageURI,
			})
		},
	}
}

func locationFromFlags(cmd *cobra.Command, opts *analyzeOptions) (*analyses.Location, error) {
	flags := cmd.Flags()
	if !flags.Changed("lat") && !flags.Changed("lng") {
		if flags.Changed("accuracy") {
			return nil, errors.New("--accuracy needs --lat and --lng")
		}
		return nil, nil
	}
	loc := &analyses.Location{Latitude: opts.lat, Longitude: opts.lng}
	if flags.Changed("accuracy") {
		acc := opts.accuracy
		loc.Accuracy = &acc
	}
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	return loc, nil
}

// storeImage copies the photo at path into the object store and returns its
// storage key.
func storeImage(ctx context.Context, app *bootstrap.App, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	key, _, _, err := app.Store.Save(ctx, cliNamespace, filepath.Base(path), f)
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return key, nil
}
