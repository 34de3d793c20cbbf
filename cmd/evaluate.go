package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pennon-io/pennon/pkg/evaluator"
	"github.com/pennon-io/pennon/pkg/model"
	"github.com/pennon-io/pennon/pkg/schema"
	"github.com/pennon-io/pennon/pkg/store"
)

var (
	evalURI     string
	evalFlagKey string
	evalContext string
	evalType    string
	evalStrict  bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate one flag from a configuration file and print the result",
	Long: `Evaluate loads a flag configuration file, resolves a single flag against
the given evaluation context and prints the structured result as JSON.
Evaluation failures are part of the result, not exit codes.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		log, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		raw, err := os.ReadFile(evalURI)
		if err != nil {
			return fmt.Errorf("reading %s: %w", evalURI, err)
		}

		validator, err := schema.NewValidator()
		if err != nil {
			return err
		}
		storeOpts := []store.Option{store.WithValidator(validator)}
		if evalStrict {
			storeOpts = append(storeOpts, store.WithStrictValidation())
		}
		flagStore := store.New(log, storeOpts...)
		if _, err := flagStore.Update(string(raw)); err != nil {
			return fmt.Errorf("loading %s: %w", evalURI, err)
		}

		evalCtx := map[string]any{}
		if evalContext != "" {
			if err := json.Unmarshal([]byte(evalContext), &evalCtx); err != nil {
				return fmt.Errorf("parsing evaluation context: %w", err)
			}
		}

		resolver := evaluator.NewResolver(log, flagStore)
		result, err := resolveByType(cmd.Context(), resolver, evalType, evalFlagKey, evalCtx)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("rendering result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func resolveByType(ctx context.Context, r *evaluator.Resolver, typeName, flagKey string, evalCtx map[string]any) (*model.EvaluationResult, error) {
	switch typeName {
	case "", "any":
		return r.Evaluate(ctx, flagKey, evalCtx), nil
	case "boolean", "bool":
		return r.ResolveBooleanValue(ctx, flagKey, evalCtx), nil
	case "string":
		return r.ResolveStringValue(ctx, flagKey, evalCtx), nil
	case "int", "integer":
		return r.ResolveIntValue(ctx, flagKey, evalCtx), nil
	case "float", "number":
		return r.ResolveFloatValue(ctx, flagKey, evalCtx), nil
	case "object":
		return r.ResolveObjectValue(ctx, flagKey, evalCtx), nil
	default:
		return nil, fmt.Errorf("unknown expected type %q", typeName)
	}
}

func init() {
	evaluateCmd.Flags().StringVarP(&evalURI, "uri", "f", "", "path of the flag configuration file")
	evaluateCmd.Flags().StringVarP(&evalFlagKey, "flag", "k", "", "key of the flag to evaluate")
	evaluateCmd.Flags().StringVarP(&evalContext, "context", "c", "", "evaluation context as a JSON object")
	evaluateCmd.Flags().StringVarP(&evalType, "type", "t", "any", "expected value type (any, boolean, string, int, float, object)")
	evaluateCmd.Flags().BoolVar(&evalStrict, "strict", false, "reject configurations that fail schema validation")
	_ = evaluateCmd.MarkFlagRequired("uri")
	_ = evaluateCmd.MarkFlagRequired("flag")
	rootCmd.AddCommand(evaluateCmd)
}
