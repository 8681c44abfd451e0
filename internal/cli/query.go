package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"docrag/internal/domain"
	"docrag/internal/usecase"
)

var (
	queryText   string
	queryTopK   int
	queryJSON    bool
	queryAnswer  bool
	queryContext bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Retrieve the chunks most similar to a query",
	Long: `Retrieve the top-k chunks of the document by cosine similarity. The cached
vector table is loaded, or rebuilt first if it is missing or stale.

Examples:
  docrag query -q "What prevents anemia?"
  docrag query -q "vitamin sources" --top-k 2 --json
  docrag query -q "What prevents anemia?" --answer
  docrag query -q "What prevents anemia?" --context | llm "Answer briefly"`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.Flags().BoolVar(&queryAnswer, "answer", false, "pass the results through the configured generator")
	queryCmd.Flags().BoolVar(&queryContext, "context", false, "print only the retrieved text, best first")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	a, err := newApp(cfg, GetRootDir(), GetLogger())
	if err != nil {
		return err
	}
	if _, err := a.manager.Ensure(ctx); err != nil {
		return fmt.Errorf("vector table unavailable: %w", err)
	}

	topK := cfg.Retrieve.TopK
	if cmd.Flags().Changed("top-k") {
		topK = queryTopK
	}

	var answer domain.Answer
	if queryAnswer {
		answerer, err := a.answerer(GetLogger())
		if err != nil {
			return err
		}
		answer, err = answerer.Answer(ctx, queryText, topK)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
	} else {
		results, err := a.retriever.Retrieve(ctx, queryText, topK)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		answer = domain.Answer{Query: queryText, Chunks: results}
	}

	if queryContext {
		fmt.Println(usecase.ContextText(answer.Chunks))
		return nil
	}
	if queryJSON {
		output, _ := json.MarshalIndent(answer, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if queryAnswer {
		fmt.Printf("%s\n\n", answer.Text)
	}
	if len(answer.Chunks) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(answer.Chunks), queryText)
	for i, r := range answer.Chunks {
		fmt.Printf("--- [%d] chunk %d, runes %d-%d (score: %.3f) ---\n", i+1, r.Chunk.Index, r.Chunk.Start, r.Chunk.End, r.Score)
		text := r.Chunk.Text
		if runes := []rune(text); len(runes) > 500 {
			text = string(runes[:500]) + "..."
		}
		fmt.Println(text)
		fmt.Println()
	}
	return nil
}
