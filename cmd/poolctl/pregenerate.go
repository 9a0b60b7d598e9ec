package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	internalapp "cvone/interview/internal/app"
	"cvone/interview/internal/config"
	"cvone/interview/internal/interview"
	"cvone/interview/internal/models"
	"cvone/interview/internal/utils"
)

type jobEntry struct {
	JobDescription string `yaml:"job_description"`
	JobTitle       string `yaml:"job_title"`
	CompanyName    string `yaml:"company_name"`
	Count          int    `yaml:"count"`
	Difficulty     string `yaml:"difficulty"`
}

type jobFile struct {
	Jobs []jobEntry `yaml:"jobs"`
}

type preGenerator interface {
	PreGenerateQuestions(ctx context.Context, in interview.PreGenerateInput) (*models.PreGenerateResponse, error)
}

type jobResult struct {
	Job      jobEntry
	Response *models.PreGenerateResponse
	Err      error
}

var errSomeFailed = errors.New("some job descriptions failed")

var pregenerateCmd = &cobra.Command{
	Use:   "pregenerate [job description...]",
	Short: "Warm the question pool for job descriptions",
	Long: "Generates and stores question sets so later sessions for the same job description hit the pool. " +
		"Job descriptions come from positional arguments or a YAML file with a top-level jobs list.",
	RunE: runPreGenerate,
}

func init() {
	rootCmd.AddCommand(pregenerateCmd)

	pregenerateCmd.Flags().StringP("file", "f", "", "YAML file with job descriptions")
	pregenerateCmd.Flags().IntP("concurrency", "c", 4, "maximum concurrent generations")
	pregenerateCmd.Flags().Int("count", models.DefaultQuestionCount, "question count for positional job descriptions")
	pregenerateCmd.Flags().String("difficulty", "", "difficulty for positional job descriptions, classified when empty")
}

func runPreGenerate(cmd *cobra.Command, args []string) error {
	jobs, err := collectJobs(cmd, args)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return errors.New("no job descriptions given, pass arguments or --file")
	}

	cfg, err := config.LoadToolConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	level, format := cfg.LogLevel, "console"
	if viper.GetBool("debug") {
		level = "debug"
	}
	if viper.GetBool("json") {
		format = "json"
	}
	logger, err := utils.NewLogger(level, format)
	if err != nil {
		return fmt.Errorf("creating a logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := internalapp.New(ctx, cfg, logger, internalapp.Options{Version: version})
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}
	defer application.Close(context.Background())

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	logger.Info("pre-generating question sets", zap.Int("jobs", len(jobs)), zap.Int("concurrency", concurrency))

	results := preGenerateAll(ctx, application.Service, jobs, concurrency)
	return printResults(cmd.OutOrStdout(), results)
}

func collectJobs(cmd *cobra.Command, args []string) ([]jobEntry, error) {
	var jobs []jobEntry
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening job file: %w", err)
		}
		defer f.Close()
		fromFile, err := loadJobs(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		jobs = append(jobs, fromFile...)
	}

	count, _ := cmd.Flags().GetInt("count")
	difficulty, _ := cmd.Flags().GetString("difficulty")
	for _, jd := range args {
		jobs = append(jobs, jobEntry{JobDescription: jd, Count: count, Difficulty: difficulty})
	}
	return jobs, nil
}

func loadJobs(r io.Reader) ([]jobEntry, error) {
	var file jobFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return file.Jobs, nil
}

// preGenerateAll runs every job with at most concurrency in flight. A
// failing job does not stop the others.
func preGenerateAll(ctx context.Context, svc preGenerator, jobs []jobEntry, concurrency int) []jobResult {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]jobResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = runJob(ctx, svc, job)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func runJob(ctx context.Context, svc preGenerator, job jobEntry) jobResult {
	req := models.PreGenerateRequest{
		JobDescription: job.JobDescription,
		JobTitle:       job.JobTitle,
		CompanyName:    job.CompanyName,
		Count:          job.Count,
		Difficulty:     job.Difficulty,
	}
	if err := req.Validate(); err != nil {
		return jobResult{Job: job, Err: err}
	}
	resp, err := svc.PreGenerateQuestions(ctx, interview.PreGenerateInput{
		JobDescription: req.JobDescription,
		JobTitle:       req.JobTitle,
		CompanyName:    req.CompanyName,
		Count:          req.Count,
		Difficulty:     models.Difficulty(req.Difficulty),
	})
	return jobResult{Job: job, Response: resp, Err: err}
}

func printResults(w io.Writer, results []jobResult) error {
	failed := 0
	for _, r := range results {
		label := utils.TruncateForLog(r.Job.JobDescription, 40)
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "FAIL  %-44s %v\n", label, r.Err)
			continue
		}
		state := "new"
		if r.Response.CacheHit {
			state = "hit"
		}
		fmt.Fprintf(w, "OK    %-44s %s %-6s %2d questions  %5d tokens  %s\n",
			label, state, r.Response.Difficulty, r.Response.QuestionCount, r.Response.TokensUsed, r.Response.PoolKey)
	}
	fmt.Fprintf(w, "%d succeeded, %d failed\n", len(results)-failed, failed)
	if failed > 0 {
		return errSomeFailed
	}
	return nil
}
