package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	benchQuery string
	benchTopK  int
	benchRuns  int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure retrieval quality and latency for a query",
	Long: `Run a query against the cached vector table, rate the similarity of the
matches and time repeated uncached searches.

Examples:
  docrag bench -q "What prevents anemia?"
  docrag bench -q "vitamin sources" -k 10 -n 500`,
	Args: cobra.NoArgs,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().StringVarP(&benchQuery, "query", "q", "", "query to test (required)")
	benchCmd.Flags().IntVarP(&benchTopK, "top-k", "k", 10, "number of results")
	benchCmd.Flags().IntVarP(&benchRuns, "runs", "n", 100, "number of timed searches")
	benchCmd.MarkFlagRequired("query")
}

func runBench(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(GetConfig(), GetRootDir(), GetLogger())
	if err != nil {
		return err
	}
	if _, err := a.manager.Ensure(ctx); err != nil {
		return fmt.Errorf("vector table unavailable: %w", err)
	}

	st := a.manager.Status()
	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Chunks:    %d\n", st.Chunks)
	fmt.Printf("Model:     %s (%s)\n", st.Model, a.cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n\n", st.Dimension)
	fmt.Printf("Query: %q\n", benchQuery)
	fmt.Println(strings.Repeat("-", 70))

	results, err := a.retriever.Retrieve(ctx, benchQuery, benchTopK)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	fmt.Printf("Top %d matches:\n\n", len(results))
	totalScore := 0.0
	for i, r := range results {
		preview := []rune(strings.ReplaceAll(r.Chunk.Text, "\n", " "))
		if len(preview) > 150 {
			preview = append(preview[:150], []rune("...")...)
		}
		totalScore += r.Score
		fmt.Printf("%d. [%s %.3f] chunk %d, runes %d-%d\n", i+1, rating(r.Score), r.Score, r.Chunk.Index, r.Chunk.Start, r.Chunk.End)
		fmt.Printf("   %s\n\n", string(preview))
	}

	vec, err := a.embedder.EmbedOne(ctx, benchQuery)
	if err != nil {
		return err
	}
	latencies := make([]time.Duration, 0, benchRuns)
	for i := 0; i < benchRuns; i++ {
		start := time.Now()
		if _, err := a.store.Search(vec, benchTopK); err != nil {
			return err
		}
		latencies = append(latencies, time.Since(start))
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	avgScore := totalScore / float64(len(results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].Score)
	if len(latencies) > 0 {
		fmt.Printf("SEARCH LATENCY (%d runs):\n", len(latencies))
		fmt.Printf("  p50: %s\n", percentile(latencies, 0.50))
		fmt.Printf("  p95: %s\n", percentile(latencies, 0.95))
		fmt.Printf("  max: %s\n", latencies[len(latencies)-1])
	}
	return nil
}

func rating(score float64) string {
	switch {
	case score > 0.7:
		return "HIGH"
	case score > 0.5:
		return "GOOD"
	case score > 0.3:
		return "OK"
	default:
		return "LOW"
	}
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}
