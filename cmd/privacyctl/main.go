package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/locationprivacy/backend/internal/domain"
	"github.com/locationprivacy/backend/internal/service"
)

var (
	seed       int64
	outputFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:          "privacyctl",
	Short:        "Location privacy risk and anonymization toolkit",
	Long:         `Generate synthetic trajectories, score re-identification risk and apply location anonymization offline.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		}
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a synthetic Calgary dataset",
	Long:  `Draw a synthetic dataset of daily routines around Calgary landmarks.`,
	Args:  cobra.NoArgs,
	RunE:  runGenerate,
}

var riskCmd = &cobra.Command{
	Use:   "risk <dataset.json>",
	Short: "Score re-identification risk",
	Long:  `Score every user of a dataset, or a single user with --user.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRisk,
}

var anonymizeCmd = &cobra.Command{
	Use:   "anonymize <dataset.json>",
	Short: "Apply an anonymization technique",
	Long:  `Apply k-anonymity, spatial-cloaking or differential-privacy to a dataset.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAnonymize,
}

var patternsCmd = &cobra.Command{
	Use:   "patterns <dataset.json>",
	Short: "Show inferred places of one user",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatterns,
}

var compareCmd = &cobra.Command{
	Use:   "compare <original.json> <anonymized.json>",
	Short: "Compare risk and distortion of two datasets",
	Args:  cobra.ExactArgs(2),
	RunE:  runCompare,
}

var (
	numUsers     int
	userID       string
	technique    string
	k            int
	radiusMeters float64
	epsilon      float64
)

var logger = logrus.New()

func init() {
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)

	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 0, "Random seed (0 seeds from the clock)")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "Write JSON output to file instead of stdout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	generateCmd.Flags().IntVarP(&numUsers, "users", "n", 0, "Number of users (0 picks 30-50)")

	riskCmd.Flags().StringVarP(&userID, "user", "u", "", "Score only this user")

	anonymizeCmd.Flags().StringVarP(&technique, "technique", "t", string(domain.TechniqueKAnonymity), "k-anonymity, spatial-cloaking or differential-privacy")
	anonymizeCmd.Flags().IntVar(&k, "k", int(domain.KRange.Default), "k for k-anonymity")
	anonymizeCmd.Flags().Float64VarP(&radiusMeters, "radius", "r", domain.RadiusRange.Default, "Cloaking radius in meters")
	anonymizeCmd.Flags().Float64VarP(&epsilon, "epsilon", "e", domain.EpsilonRange.Default, "Privacy budget for differential privacy")

	patternsCmd.Flags().StringVarP(&userID, "user", "u", "", "User to inspect")
	_ = patternsCmd.MarkFlagRequired("user")

	compareCmd.Flags().StringVarP(&technique, "technique", "t", string(domain.TechniqueKAnonymity), "Technique used to produce the anonymized dataset")
	compareCmd.Flags().IntVar(&k, "k", int(domain.KRange.Default), "k for k-anonymity")
	compareCmd.Flags().Float64VarP(&radiusMeters, "radius", "r", domain.RadiusRange.Default, "Cloaking radius in meters")
	compareCmd.Flags().Float64VarP(&epsilon, "epsilon", "e", domain.EpsilonRange.Default, "Privacy budget for differential privacy")

	rootCmd.AddCommand(generateCmd, riskCmd, anonymizeCmd, patternsCmd, compareCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newService() *service.PrivacyService {
	rng := service.NewLockedSource(seed)
	synth := service.NewTrajectorySynthesizer(service.DefaultSynthesizerConfig(), rng, nil, logger, nil)
	inferencer := service.NewPlaceInferencer(service.DefaultInferenceConfig(), service.NewDBSCAN())
	scorer := service.NewRiskScorer(inferencer, 0)
	engine := service.NewAnonymizationEngine(rng)
	evaluator := service.NewUtilityEvaluator(scorer, service.DefaultUtilityReferenceMeters)
	return service.NewPrivacyService(synth, scorer, engine, evaluator, nil, logger, nil)
}

// techniqueParams maps the technique flags onto the engine parameter map
func techniqueParams() map[string]float64 {
	switch domain.Technique(technique) {
	case domain.TechniqueKAnonymity:
		return map[string]float64{domain.KRange.Name: float64(k)}
	case domain.TechniqueSpatialCloaking:
		return map[string]float64{domain.RadiusRange.Name: radiusMeters}
	case domain.TechniqueDifferentialPrivacy:
		return map[string]float64{domain.EpsilonRange.Name: epsilon}
	}
	return map[string]float64{}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ds, err := newService().Generate(context.Background(), numUsers, true)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"users": len(ds.Users), "points": ds.PointCount()}).Info("Generated dataset")
	return writeOutput(cmd.OutOrStdout(), ds)
}

func runRisk(cmd *cobra.Command, args []string) error {
	ds, err := readDataset(args[0])
	if err != nil {
		return err
	}
	svc := newService()
	ctx := context.Background()

	if userID != "" {
		score, err := svc.CalculateUserRisk(ctx, ds, userID)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), score)
	}

	scores, err := svc.CalculateRisk(ctx, ds)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), struct {
		Users     map[string]domain.RiskScore `json:"users"`
		Aggregate domain.RiskScore            `json:"aggregate"`
	}{scores, service.Aggregate(scores)})
}

func runAnonymize(cmd *cobra.Command, args []string) error {
	ds, err := readDataset(args[0])
	if err != nil {
		return err
	}
	result, err := newService().Anonymize(context.Background(), ds, technique, techniqueParams())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: utility loss %.2f%%, overall risk %.1f\n",
		result.Technique, result.UtilityLoss, result.NewRiskScore.OverallRisk)
	return writeOutput(cmd.OutOrStdout(), result.Dataset)
}

func runPatterns(cmd *cobra.Command, args []string) error {
	ds, err := readDataset(args[0])
	if err != nil {
		return err
	}
	result, err := newService().IdentifyPatterns(context.Background(), ds, userID)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), result)
}

func runCompare(cmd *cobra.Command, args []string) error {
	original, err := readDataset(args[0])
	if err != nil {
		return err
	}
	anonymized, err := readDataset(args[1])
	if err != nil {
		return err
	}
	result, err := newService().ComparePrivacy(context.Background(), original, anonymized, technique, techniqueParams())
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), result)
}

func writeOutput(stdout io.Writer, v any) error {
	if outputFile == "" {
		return writeJSON(stdout, v)
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("create %s: %w", outputFile, err)
	}
	defer f.Close()
	return writeJSON(f, v)
}
