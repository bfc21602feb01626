package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"archmap/internal/analysis"
	"archmap/internal/client"
	"archmap/internal/config"
	"archmap/internal/diagram"
	"archmap/internal/session"
	"archmap/internal/storage"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "archmap",
		Short: "Visualize a repository's architecture via a remote analysis service",
	}

	cfgPath  string
	gitRef   string
	level    int
	outPath  string
	maxDepth int
	jobState string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "archmap.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVarP(&gitRef, "ref", "r", "main", "Branch, tag, or commit to analyze")
	rootCmd.PersistentFlags().IntVarP(&level, "level", "l", 0, "Diagram granularity: 1=folder, 2=file, 3=symbol")
	rootCmd.PersistentFlags().StringVarP(&outPath, "out", "o", "", "Write the diagram to a file instead of stdout")

	callflowCmd.Flags().IntVar(&maxDepth, "depth", 0, "Maximum call-flow depth")
	jobsCmd.Flags().StringVar(&jobState, "status", "", "Filter jobs by status")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(switchCmd)
	rootCmd.AddCommand(callflowCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(deleteJobCmd)
}

// initSession wires the configured client, snapshot store and session.
func initSession() (*session.Session, *config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level != 0 {
		cfg.Diagram.Level = level
	}
	if maxDepth > 0 {
		cfg.CallFlow.MaxDepth = maxDepth
	}

	c, err := client.New(cfg.Server.URL, client.WithTimeout(cfg.Server.Timeout))
	if err != nil {
		return nil, nil, err
	}

	opts := []session.Option{}
	if cfg.Cache.Path != "" {
		store, err := storage.Open(cfg.Cache.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open snapshot cache: %w", err)
		}
		opts = append(opts, session.WithStore(store))
	}

	sess := session.New(c, session.Config{
		PollInterval:  cfg.Poll.Interval,
		PollTimeout:   cfg.Poll.Ceiling,
		Level:         diagram.LevelFromInt(cfg.Diagram.Level),
		CallFlowDepth: cfg.CallFlow.MaxDepth,
	}, opts...)
	return sess, cfg, nil
}

func emitDiagram(text string) error {
	if outPath == "" {
		fmt.Println(text)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(outPath, []byte(text), 0644)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [repo]",
	Short: "Analyze a repository and print its architecture diagram",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sess, cfg, err := initSession()
		if err != nil {
			log.Fatalf("%v", err)
		}

		fmt.Printf("🚀 Analyzing %s@%s via %s...\n", args[0], gitRef, cfg.Server.URL)
		start := time.Now()

		report, err := sess.Analyze(context.Background(), args[0], gitRef)
		if err != nil {
			log.Fatalf("Analysis failed: %v", err)
		}

		res := report.Result
		fmt.Printf("✅ Analysis of %s done in %v (%d files, %d symbols).\n",
			res.GitRef, time.Since(start).Round(time.Second), res.FileCount, res.SymbolCount)
		if report.Incomplete {
			fmt.Println("⚠️  Result carried no diagram data; showing placeholder.")
		}
		if methods := sess.Methods(); len(methods) > 0 {
			fmt.Printf("🔍 %d call-flow entry points available.\n", len(methods))
		}

		if err := emitDiagram(report.Diagram); err != nil {
			log.Fatalf("Failed to write diagram: %v", err)
		}
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare [repo] [refA] [refB]",
	Short: "Analyze two versions concurrently and summarize the difference",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		sess, _, err := initSession()
		if err != nil {
			log.Fatalf("%v", err)
		}

		fmt.Printf("🚀 Comparing %s: %s vs %s...\n", args[0], args[1], args[2])
		cmp, err := sess.Compare(context.Background(), args[0], args[1], args[2])
		if err != nil {
			log.Fatalf("Comparison failed: %v", err)
		}

		fmt.Printf("✅ %s → %s\n", cmp.RefA, cmp.RefB)
		fmt.Printf("   Files added:     %d\n", len(cmp.FilesAdded))
		fmt.Printf("   Files removed:   %d\n", len(cmp.FilesRemoved))
		fmt.Printf("   Files unchanged: %d\n", len(cmp.FilesUnchanged))
		fmt.Printf("   Symbols: %d → %d\n", cmp.SymbolCountA, cmp.SymbolCountB)
		for _, f := range cmp.FilesAdded {
			fmt.Printf("   + %s\n", f)
		}
		for _, f := range cmp.FilesRemoved {
			fmt.Printf("   - %s\n", f)
		}

		if err := emitDiagram(cmp.DiagramB); err != nil {
			log.Fatalf("Failed to write diagram: %v", err)
		}
	},
}

var switchCmd = &cobra.Command{
	Use:   "switch [repo] [ref]",
	Short: "Render another version, reusing cached analysis when possible",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		sess, _, err := initSession()
		if err != nil {
			log.Fatalf("%v", err)
		}

		// A stored snapshot for the ref serves without any network traffic;
		// only a full miss re-runs the analysis.
		sess.Attach(args[0])
		report, err := sess.SwitchVersion(context.Background(), args[1])
		if err != nil {
			log.Fatalf("Switch failed: %v", err)
		}

		fmt.Printf("✅ Now showing %s.\n", report.Result.GitRef)
		if err := emitDiagram(report.Diagram); err != nil {
			log.Fatalf("Failed to write diagram: %v", err)
		}
	},
}

var callflowCmd = &cobra.Command{
	Use:   "callflow [repo] [method]",
	Short: "Trace the call flow starting from a method",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		sess, _, err := initSession()
		if err != nil {
			log.Fatalf("%v", err)
		}

		if _, err := sess.Analyze(context.Background(), args[0], gitRef); err != nil {
			log.Fatalf("Analysis failed: %v", err)
		}

		flow, err := sess.SelectMethod(context.Background(), args[1])
		if err != nil {
			log.Fatalf("Call flow failed: %v", err)
		}

		if flow.TotalCalls == 0 {
			fmt.Printf("No calls found from %q.\n", args[1])
			if methods := sess.Methods(); len(methods) > 0 {
				fmt.Println("Available entry points:")
				for _, m := range methods {
					fmt.Printf("  - %s\n", m)
				}
			}
			return
		}

		fmt.Printf("🔍 %d calls from %q (max depth %d):\n", flow.TotalCalls, flow.StartMethod, flow.MaxDepth)
		for _, call := range flow.Calls {
			indent := ""
			for i := 0; i < call.Depth; i++ {
				indent += "  "
			}
			loc := ""
			if call.File != "" {
				loc = fmt.Sprintf(" (%s:%d)", call.File, call.Line)
			}
			fmt.Printf("  %s%s → %s%s\n", indent, call.From, call.To, loc)
		}
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [repo]",
	Short: "List branches, tags and recent commits known to the service",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		c, err := client.New(cfg.Server.URL, client.WithTimeout(cfg.Server.Timeout))
		if err != nil {
			log.Fatalf("%v", err)
		}

		hist, err := c.GitHistory(context.Background(), args[0])
		if err != nil {
			log.Fatalf("Failed to fetch git history: %v", err)
		}

		fmt.Printf("Branches (%d):\n", len(hist.Branches))
		for _, b := range hist.Branches {
			fmt.Printf("  %s\n", b)
		}
		fmt.Printf("Tags (%d):\n", len(hist.Tags))
		for _, tag := range hist.Tags {
			fmt.Printf("  %s\n", tag)
		}
		fmt.Printf("Recent commits (%d):\n", len(hist.RecentCommits))
		for _, commit := range hist.RecentCommits {
			fmt.Printf("  %s  %s  %s\n", commit.Hash, commit.Date, commit.Message)
		}
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload [archive]",
	Short: "Upload a zip or tar archive for analysis",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		c, err := client.New(cfg.Server.URL, client.WithTimeout(cfg.Server.Timeout))
		if err != nil {
			log.Fatalf("%v", err)
		}

		file, err := os.Open(args[0])
		if err != nil {
			log.Fatalf("Failed to open archive: %v", err)
		}
		defer file.Close()

		fmt.Printf("📦 Uploading %s...\n", args[0])
		resp, err := c.Upload(context.Background(), filepath.Base(args[0]), file)
		if err != nil {
			log.Fatalf("Upload failed: %v", err)
		}

		switch {
		case resp.JobID != "":
			fmt.Printf("✅ Upload accepted, job %s started.\n", resp.JobID)
		case resp.Path != "":
			fmt.Printf("✅ Extracted %d files to %s.\n", resp.FileCount, resp.Path)
			fmt.Printf("   Run: archmap analyze %s\n", resp.Path)
		default:
			fmt.Println("✅ Upload accepted.")
		}
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List recent analysis jobs",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		c, err := client.New(cfg.Server.URL, client.WithTimeout(cfg.Server.Timeout))
		if err != nil {
			log.Fatalf("%v", err)
		}

		jobs, err := c.ListJobs(context.Background(), analysis.JobStatus(jobState), 50)
		if err != nil {
			log.Fatalf("Failed to list jobs: %v", err)
		}
		if len(jobs) == 0 {
			fmt.Println("No jobs found.")
			return
		}
		for _, job := range jobs {
			fmt.Printf("  %s  %-9s  %3d%%  %s\n", job.ID, job.Status, job.Progress, job.Message)
		}
	},
}

var deleteJobCmd = &cobra.Command{
	Use:   "delete-job [id]",
	Short: "Delete a finished job and its server-side results",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		c, err := client.New(cfg.Server.URL, client.WithTimeout(cfg.Server.Timeout))
		if err != nil {
			log.Fatalf("%v", err)
		}

		if err := c.DeleteJob(context.Background(), args[0]); err != nil {
			log.Fatalf("Delete failed: %v", err)
		}
		fmt.Printf("✅ Job %s deleted.\n", args[0])
	},
}
