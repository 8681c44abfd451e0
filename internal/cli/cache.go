package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cacheRebuild bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the cached vector table",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the cached vector table",
	Long: `Delete the cache artifact and any temp files left by an interrupted write.

Examples:
  docrag cache clear
  docrag cache clear --rebuild   # Delete, then rebuild from the document`,
	Args: cobra.NoArgs,
	RunE: runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheClearCmd.Flags().BoolVar(&cacheRebuild, "rebuild", false, "rebuild the table after clearing")
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	a, err := newApp(GetConfig(), GetRootDir(), GetLogger())
	if err != nil {
		return err
	}

	if err := a.manager.Clear(); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", a.artifactPath)

	if !cacheRebuild {
		return nil
	}
	a.manager.SetProgress(newEmbeddingProgress("Embedding", os.Stdout))
	result, err := a.manager.Rebuild(cmd.Context())
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}
	fmt.Printf("Rebuilt %d chunks in %s\n", result.Chunks, formatDuration(result.Duration))
	return nil
}
