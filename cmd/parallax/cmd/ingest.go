package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/parallax-rag/parallax/internal/backend"
	"github.com/parallax-rag/parallax/internal/ingest"
	"github.com/parallax-rag/parallax/internal/output"
)

// documentFile is the on-disk JSON shape accepted by `parallax ingest`.
type documentFile struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Source   string            `json:"source"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Chunks   []chunkFile       `json:"chunks"`
}

type chunkFile struct {
	Ordinal    int       `json:"ordinal"`
	Content    string    `json:"content"`
	TokenCount int       `json:"token_count"`
	Embedding  []float32 `json:"embedding"`
}

func newIngestCmd() *cobra.Command {
	var tenantID string
	var mode string
	var clear bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "ingest <document.json> [more.json...]",
		Short: "Ingest documents into every backend",
		Long: `Ingest pre-chunked documents into the configured backends.

Each input file holds one document: its content, chunks (with optional
embeddings), and metadata. Graph entities and relations travel in the
metadata under the "entities" and "relations" keys.

The cloud-search leg runs first; the vector and graph legs run
concurrently after it. A failing backend is reported per document
instead of aborting the whole batch.

Examples:
  parallax ingest --tenant acme docs/handbook.json
  parallax ingest --tenant acme --mode new docs/*.json
  parallax ingest --tenant acme --mode skip --clear docs/reload.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args, tenantID, mode, clear, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant id (required)")
	cmd.Flags().StringVar(&mode, "mode", "", "Cloud-search connector mode: existing, new, skip")
	cmd.Flags().BoolVar(&clear, "clear", false, "Clear vector and graph state before ingesting")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func runIngest(cmd *cobra.Command, paths []string, tenantID, mode string, clear, jsonOutput bool) error {
	ctx := cmd.Context()

	if mode == "" {
		mode = cfg.Ingest.Mode
	}
	parsedMode, err := ingest.ParseMode(mode)
	if err != nil {
		return err
	}

	inputs, totalBytes, err := loadDocuments(paths, tenantID)
	if err != nil {
		return err
	}

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	// An idempotent re-ingest is already counted in the tenant's usage,
	// so only the net-new documents and bytes face the quota check.
	docIDs := make([]string, len(inputs))
	for i, in := range inputs {
		docIDs[i] = in.Document.ID
	}
	existing, err := app.store.ExistingFootprint(ctx, tenantID, docIDs)
	if err != nil {
		return err
	}
	addDocs := max(int64(len(inputs))-existing.Documents, 0)
	addBytes := max(totalBytes-existing.StorageBytes, 0)

	tctx, err := app.registry.AuthorizeIngest(ctx, tenantID, time.Time{}, addDocs, addBytes)
	if err != nil {
		return err
	}

	orch, err := app.orchestrator()
	if err != nil {
		return err
	}
	defer orch.Close()

	results, err := orch.Ingest(ctx, tctx, inputs, ingest.Options{
		Mode:              parsedMode,
		ClearBeforeIngest: clear,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	out := output.New(cmd.OutOrStdout())
	var failed int
	for _, r := range results {
		switch r.Status {
		case ingest.StatusSuccess:
			out.Successf("%s: all backends ok", r.DocumentID)
		case ingest.StatusPartial:
			out.Warningf("%s: partial (%s)", r.DocumentID, describeFailures(r))
		default:
			failed++
			out.Errorf("%s: failed (%s)", r.DocumentID, describeFailures(r))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed on every backend", failed, len(results))
	}
	return nil
}

// describeFailures summarizes the failed legs of one document result.
func describeFailures(r ingest.DocumentResult) string {
	s := ""
	for _, o := range r.Outcomes {
		if o.OK {
			continue
		}
		if s != "" {
			s += "; "
		}
		s += fmt.Sprintf("%s: %s", o.Backend, o.Error)
	}
	return s
}

// loadDocuments reads and validates the input files, returning the
// ingestion inputs and the total content size for quota admission.
func loadDocuments(paths []string, tenantID string) ([]ingest.Input, int64, error) {
	inputs := make([]ingest.Input, 0, len(paths))
	var totalBytes int64

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, 0, fmt.Errorf("read document file %s: %w", path, err)
		}

		var df documentFile
		if err := json.Unmarshal(data, &df); err != nil {
			return nil, 0, fmt.Errorf("parse document file %s: %w", path, err)
		}
		if df.ID == "" {
			return nil, 0, fmt.Errorf("document file %s is missing an id", path)
		}
		if df.Content == "" && len(df.Chunks) == 0 {
			return nil, 0, fmt.Errorf("document file %s has no content or chunks", path)
		}

		doc := &backend.Document{
			ID:       df.ID,
			TenantID: tenantID,
			Title:    df.Title,
			Source:   df.Source,
			Content:  df.Content,
			Metadata: df.Metadata,
		}

		chunks := make([]*backend.Chunk, 0, len(df.Chunks))
		for _, cf := range df.Chunks {
			chunks = append(chunks, &backend.Chunk{
				ID:         uuid.NewString(),
				DocumentID: df.ID,
				TenantID:   tenantID,
				Ordinal:    cf.Ordinal,
				Content:    cf.Content,
				TokenCount: cf.TokenCount,
				Embedding:  cf.Embedding,
			})
		}

		totalBytes += int64(len(df.Content))
		inputs = append(inputs, ingest.Input{Document: doc, Chunks: chunks})
	}

	return inputs, totalBytes, nil
}
