// Package main provides the entry point for the prampel CLI tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sgaunet/bullets"
	"github.com/spf13/cobra"

	"github.com/prampel/prampel/internal/logger"
	"github.com/prampel/prampel/internal/security"
	"github.com/prampel/prampel/internal/ui"
	"github.com/prampel/prampel/pkg/config"
	"github.com/prampel/prampel/pkg/diff"
	"github.com/prampel/prampel/pkg/model"
	"github.com/prampel/prampel/pkg/orchestrator"
	"github.com/prampel/prampel/pkg/provider"
	"github.com/prampel/prampel/pkg/status"
	"github.com/prampel/prampel/pkg/tokens"
)

var errNoProvidersConfigured = errors.New(
	"no provider credentials found; set GITHUB_TOKEN, GITLAB_TOKEN, or BITBUCKET_USERNAME and BITBUCKET_APP_PASSWORD")

var (
	logLevel   string
	configPath string
	log        *bullets.Logger
)

var rootCmd = &cobra.Command{
	Use:   "prampel",
	Short: "Traffic-light dashboard and bulk merge for pull requests",
	Long: `prampel aggregates pull requests from GitHub, GitLab, and Bitbucket,
classifies each one into a green/yellow/red readiness status, and merges
ready pull requests in bulk with per-repository pacing.`,
}

var statusCmd = &cobra.Command{
	Use:   "status <provider:owner/repo#number>...",
	Short: "Classify pull requests into green, yellow, or red",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		skipReview, _ := cmd.Flags().GetBool("skip-review")
		return runStatus(cmd.Context(), args, skipReview)
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff <provider:owner/repo#number>",
	Short: "Show the normalized file diff of a pull request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDiff(cmd.Context(), args[0])
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge --pr <provider:owner/repo#number>...",
	Short: "Bulk merge pull requests with per-repository pacing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		refs, _ := cmd.Flags().GetStringArray("pr")
		strategy, _ := cmd.Flags().GetString("strategy")
		deleteBranch, _ := cmd.Flags().GetBool("delete-branch")
		yes, _ := cmd.Flags().GetBool("yes")
		selectRefs, _ := cmd.Flags().GetBool("select")
		return runMerge(cmd.Context(), refs, strategy, deleteBranch, yes, selectRefs)
	},
}

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "List the repositories visible to the configured credentials",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runRepos(cmd.Context())
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configured provider credentials",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runValidate(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info",
		"Set log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".",
		"Directory holding the config file")

	statusCmd.Flags().Bool("skip-review", false,
		"Do not require approvals for green status")

	mergeCmd.Flags().StringArray("pr", nil,
		"Pull request to merge, repeatable (provider:owner/repo#number)")
	mergeCmd.Flags().String("strategy", string(model.StrategyMerge),
		"Merge strategy (merge, squash, rebase)")
	mergeCmd.Flags().Bool("delete-branch", false,
		"Delete the source branch after merging")
	mergeCmd.Flags().BoolP("yes", "y", false,
		"Skip the interactive confirmation")
	mergeCmd.Flags().Bool("select", false,
		"Interactively narrow the given pull requests before merging")

	rootCmd.AddCommand(statusCmd, diffCmd, mergeCmd, reposCmd, validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the adapters for every provider whose
// credentials are present in the environment.
func setup(ctx context.Context) (*config.Config, provider.StaticSource, error) {
	log = logger.NewLogger(logLevel)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel == "info" && cfg.LogLevel != "" {
		log = logger.NewLogger(cfg.LogLevel)
	}

	tokenSource, bitbucketUser := credentialSourceFromEnv()

	source := provider.StaticSource{}
	for _, kind := range []model.ProviderKind{
		model.ProviderGitHub, model.ProviderGitLab, model.ProviderBitbucket,
	} {
		token, err := tokenSource.Token(ctx, string(kind))
		if err != nil {
			if errors.Is(err, tokens.ErrUnknownAccount) {
				continue
			}
			return nil, nil, err
		}

		creds := provider.Credentials{Token: token}
		if kind == model.ProviderBitbucket {
			creds.Username = bitbucketUser
		}

		prov, err := provider.New(kind, creds, cfg.Provider.Timeout(), log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize %s: %w", kind, err)
		}
		source[kind] = prov
		log.Debugf("%s credentials configured", kind)
	}
	if len(source) == 0 {
		return nil, nil, errNoProvidersConfigured
	}

	return cfg, source, nil
}

// credentialSourceFromEnv reads provider tokens from the environment into a
// token source keyed by provider kind. The Bitbucket username rides alongside
// because app passwords always pair with one.
func credentialSourceFromEnv() (tokens.StaticSource, string) {
	src := tokens.StaticSource{}

	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		src[string(model.ProviderGitHub)] = security.NewSecureToken(token)
	}
	if token := os.Getenv("GITLAB_TOKEN"); token != "" {
		src[string(model.ProviderGitLab)] = security.NewSecureToken(token)
	}
	username := os.Getenv("BITBUCKET_USERNAME")
	appPassword := os.Getenv("BITBUCKET_APP_PASSWORD")
	if username != "" && appPassword != "" {
		src[string(model.ProviderBitbucket)] = security.NewSecureToken(appPassword)
	}

	return src, username
}

func runStatus(ctx context.Context, args []string, skipReview bool) error {
	_, source, err := setup(ctx)
	if err != nil {
		return err
	}

	refs, err := parseRefs(args)
	if err != nil {
		return err
	}

	opts := status.Options{SkipReviewRequirement: skipReview}
	for _, ref := range refs {
		prov, _, err := source.Provider(ctx, ref.Repo)
		if err != nil {
			return err
		}

		pr, err := prov.GetPullRequest(ctx, ref.Repo, ref.Number)
		if err != nil {
			return fmt.Errorf("failed to fetch %s: %w", ref, security.SanitizeError(err))
		}

		ampel := status.Classify(*pr, opts)
		fmt.Printf("%s  %s  %q by %s\n", renderAmpel(ampel), ref, pr.Title, pr.Author)
		for _, blocker := range status.Blockers(*pr, opts) {
			fmt.Printf("    - %s\n", blocker.Message)
		}
	}
	return nil
}

func runDiff(ctx context.Context, arg string) error {
	cfg, source, err := setup(ctx)
	if err != nil {
		return err
	}

	ref, err := model.ParsePRRef(arg)
	if err != nil {
		return err
	}

	prov, _, err := source.Provider(ctx, ref.Repo)
	if err != nil {
		return err
	}

	service := diff.NewService(prov.GetPullRequestDiff, cfg.Diff.CacheTTL(), log)
	summary, err := service.Get(ctx, ref.Repo, ref.Number)
	if err != nil {
		return fmt.Errorf("failed to fetch diff of %s: %w", ref, security.SanitizeError(err))
	}

	for _, file := range summary.Files {
		line := fmt.Sprintf("%-9s %s", file.Status, file.FilePath)
		if file.Status == model.FileRenamed && file.PreviousFilename != "" {
			line += fmt.Sprintf(" (from %s)", file.PreviousFilename)
		}
		if file.IsBinary {
			line += "  [binary]"
		} else {
			line += fmt.Sprintf("  +%d -%d", file.Additions, file.Deletions)
		}
		if file.Language != "" {
			line += "  " + file.Language
		}
		fmt.Println(line)
	}
	fmt.Printf("%d files changed, +%d -%d\n",
		summary.TotalFiles, summary.TotalAdditions, summary.TotalDeletions)
	return nil
}

func runMerge(ctx context.Context, args []string, strategyArg string, deleteBranch, yes, selectRefs bool) error {
	cfg, source, err := setup(ctx)
	if err != nil {
		return err
	}

	refs, err := parseRefs(args)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return orchestrator.ErrEmptyBatch
	}

	strategy := model.MergeStrategy(strategyArg)
	prompter := ui.NewMergePrompter()

	if selectRefs {
		refs, err = prompter.SelectPullRequests(refs)
		if err != nil {
			return err
		}
		if len(refs) == 0 {
			log.Info("nothing selected, merge cancelled")
			return nil
		}
	}

	if !yes {
		confirmed, err := prompter.ConfirmBulkMerge(refs, strategy)
		if err != nil {
			return err
		}
		if !confirmed {
			log.Info("merge cancelled")
			return nil
		}
	}

	orch := orchestrator.New(source, orchestrator.Policy{
		MergeDelay:             cfg.Merge.Delay(),
		MaxBatchSize:           cfg.Merge.MaxBatchSize,
		MaxAttempts:            cfg.Merge.MaxAttempts,
		BackoffBase:            cfg.Merge.Backoff(),
		ConcurrentRepositories: cfg.Merge.ConcurrentRepositories,
	}, log)

	result, err := orch.Execute(ctx, orchestrator.Request{
		PullRequests: refs,
		Strategy:     strategy,
		DeleteBranch: deleteBranch,
	})
	if err != nil {
		return err
	}

	printResult(result)

	// Failed items stay retryable without re-merging the succeeded ones.
	for result.Failed > 0 && !yes {
		retry, err := prompter.ConfirmRetry(result.Failed)
		if err != nil {
			return err
		}
		if !retry {
			break
		}
		result, err = orch.RetryFailed(ctx, result.OperationID)
		if err != nil {
			return err
		}
		printResult(result)
	}

	return nil
}

func runRepos(ctx context.Context) error {
	_, source, err := setup(ctx)
	if err != nil {
		return err
	}

	for _, prov := range source {
		repos, err := prov.ListRepositories(ctx)
		if err != nil {
			return fmt.Errorf("failed to list %s repositories: %w", prov.Name(), security.SanitizeError(err))
		}
		for _, repo := range repos {
			visibility := "public"
			if repo.Private {
				visibility = "private"
			}
			fmt.Printf("%s:%s  %s  default=%s\n", repo.Provider, repo.FullName, visibility, repo.DefaultBranch)
		}
	}
	return nil
}

func runValidate(ctx context.Context) error {
	_, source, err := setup(ctx)
	if err != nil {
		return err
	}

	var failed bool
	for _, prov := range source {
		validation, err := prov.ValidateCredentials(ctx)
		if err != nil {
			failed = true
			log.Errorf("%s: %s", prov.Name(), security.UserMessage(err))
			continue
		}
		log.Infof("%s: authenticated as %s", prov.Name(), validation.Username)
	}
	if failed {
		return errors.New("one or more credentials failed validation")
	}
	return nil
}

func parseRefs(args []string) ([]model.PRRef, error) {
	refs := make([]model.PRRef, len(args))
	for i, arg := range args {
		ref, err := model.ParsePRRef(strings.TrimSpace(arg))
		if err != nil {
			return nil, err
		}
		refs[i] = ref
	}
	return refs, nil
}

func printResult(result *model.BulkMergeResult) {
	fmt.Printf("operation %s: %d merged, %d failed\n",
		result.OperationID, result.Success, result.Failed)
	for _, item := range result.Results {
		if item.Success {
			fmt.Printf("  ok    %s\n", item.PullRequestID)
			continue
		}
		fmt.Printf("  fail  %s  [%s] %s\n", item.PullRequestID, item.ErrorCode, item.Error)
	}
}

func renderAmpel(a status.Ampel) string {
	switch a {
	case status.Green:
		return "🟢"
	case status.Yellow:
		return "🟡"
	default:
		return "🔴"
	}
}
