package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"docrag/internal/adapter/embedding"
)

var indexForce bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or refresh the cached vector table",
	Long: `Fetch the document, and rebuild the cached vector table when it is missing,
corrupt or stale. The table is stored in .docrag/embeddings.db by default.

Examples:
  docrag index --source handbook.txt
  docrag index --force                   # Rebuild even if the cache is current`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVarP(&indexForce, "force", "f", false, "rebuild even if the cached table is current")
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	a, err := newApp(cfg, GetRootDir(), GetLogger())
	if err != nil {
		return err
	}
	a.manager.SetProgress(newEmbeddingProgress("Embedding", os.Stdout))

	fmt.Printf("Document: %s\n", a.manager.Status().DocumentID)

	rebuild := a.manager.Ensure
	if indexForce {
		rebuild = a.manager.Rebuild
	}
	result, err := rebuild(cmd.Context())
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	st := a.manager.Status()
	fmt.Printf("\nIndexing complete:\n")
	if result.Rebuilt {
		fmt.Printf("  Rebuilt:    yes (%s)\n", formatDuration(result.Duration))
	} else {
		fmt.Printf("  Rebuilt:    no (cache is current)\n")
	}
	fmt.Printf("  Chunks:     %d\n", st.Chunks)
	fmt.Printf("  Model:      %s (dimension %d)\n", st.Model, st.Dimension)
	fmt.Printf("\nCache stored at: %s\n", a.artifactPath)
	return nil
}

// terminalProgress draws on f only when it is a terminal, so piped or
// collected logs stay free of bar redraws.
func terminalProgress(label string, f *os.File) embedding.ProgressFunc {
	if !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return newEmbeddingProgress(label, f)
}

// newEmbeddingProgress returns a progress callback that draws a bar on w
// once the total is known and shows an ETA.
func newEmbeddingProgress(label string, w io.Writer) embedding.ProgressFunc {
	var (
		bar       *progressbar.ProgressBar
		mu        sync.Mutex
		startTime time.Time
	)

	return func(done, total int) {
		mu.Lock()
		defer mu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]"+label+"[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(w)
				}),
			)
		}

		bar.Set(done)

		if done > 0 && done < total {
			elapsed := time.Since(startTime)
			rate := float64(done) / elapsed.Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]%s[reset] ETA: %s", label, formatDuration(eta)))
			}
		}
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
