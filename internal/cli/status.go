package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"docrag/internal/adapter/source"
	"docrag/internal/adapter/store"
)

var statusJSON bool

// CacheStatus describes the artifact on disk relative to the document.
type CacheStatus struct {
	Document     string    `json:"document"`
	ArtifactPath string    `json:"artifact_path"`
	Exists       bool      `json:"exists"`
	Current      bool      `json:"current"`
	Reason       string    `json:"reason,omitempty"`
	Model        string    `json:"model,omitempty"`
	Dimension    int       `json:"dimension,omitempty"`
	Chunks       int       `json:"chunks"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the cached vector table matches the document",
	Long: `Inspect the cache artifact without rebuilding it: report its model, size and
whether it is current for the document and configuration.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	a, err := newApp(cfg, GetRootDir(), GetLogger())
	if err != nil {
		return err
	}
	st := inspectCache(cmd.Context(), a)

	if statusJSON {
		output, _ := json.MarshalIndent(st, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Document:  %s\n", st.Document)
	fmt.Printf("Cache:     %s\n", st.ArtifactPath)
	if !st.Exists {
		fmt.Printf("State:     missing (%s)\n", st.Reason)
		return nil
	}
	state := "current"
	if !st.Current {
		state = "stale (" + st.Reason + ")"
	}
	fmt.Printf("State:     %s\n", state)
	fmt.Printf("Model:     %s (dimension %d)\n", st.Model, st.Dimension)
	fmt.Printf("Chunks:    %d\n", st.Chunks)
	fmt.Printf("Created:   %s\n", st.CreatedAt.Local().Format(time.RFC3339))
	return nil
}

func inspectCache(ctx context.Context, a *app) CacheStatus {
	docID := a.manager.Status().DocumentID
	st := CacheStatus{Document: docID, ArtifactPath: a.artifactPath}

	artifact, err := store.ReadArtifact(a.artifactPath)
	if err != nil {
		if errors.Is(err, store.ErrArtifactMissing) {
			st.Reason = "not built yet"
		} else {
			st.Reason = err.Error()
		}
		return st
	}

	st.Exists = true
	st.Model = artifact.Meta.Model
	st.Dimension = artifact.Meta.Dimension
	st.Chunks = artifact.Meta.Count
	st.CreatedAt = artifact.Meta.CreatedAt

	fetchCtx, cancel := context.WithTimeout(ctx, seconds(a.cfg.Document.FetchTimeoutSecs))
	defer cancel()
	doc, err := source.New(docID, seconds(a.cfg.Document.FetchTimeoutSecs)).Fetch(fetchCtx, docID)
	if err != nil {
		st.Reason = err.Error()
		return st
	}

	if artifact.Meta.ValidityKey == store.ValidityKey(doc.ValidityKey, store.ComputeConfigHash(a.cfg)) {
		st.Current = true
	} else {
		st.Reason = "document or configuration changed"
	}
	return st
}
