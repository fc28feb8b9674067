//go:build ignore

// Package main generates a synthetic document corpus for ingestion
// benchmarking.
// Usage: go run scripts/generate-test-corpus.go -docs 500 -output testdata/bench
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

var (
	numDocs   = flag.Int("docs", 500, "Number of documents to generate")
	numChunks = flag.Int("chunks", 6, "Chunks per document")
	dims      = flag.Int("dims", 768, "Embedding dimensions (0 to omit embeddings)")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var topics = []string{
	"onboarding", "expense policy", "incident response", "release process",
	"security review", "travel guidelines", "support runbook", "data retention",
	"vendor management", "performance review",
}

var sentences = []string{
	"All requests must be submitted through the internal portal before the end of the quarter.",
	"The on-call engineer acknowledges the page within fifteen minutes.",
	"Receipts above the threshold require a manager approval in writing.",
	"Rollbacks follow the same review process as forward deploys.",
	"Access is revoked automatically after ninety days of inactivity.",
	"Escalations go to the duty manager when the queue exceeds the agreed limit.",
	"Every change to customer data is recorded in the audit log.",
	"Contracts are renewed annually unless either party gives notice.",
}

type document struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Source   string            `json:"source"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Chunks   []chunk           `json:"chunks"`
}

type chunk struct {
	Ordinal    int       `json:"ordinal"`
	Content    string    `json:"content"`
	TokenCount int       `json:"token_count"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output dir: %v\n", err)
		os.Exit(1)
	}

	for i := 0; i < *numDocs; i++ {
		topic := topics[rng.Intn(len(topics))]
		doc := document{
			ID:     fmt.Sprintf("bench-doc-%05d", i),
			Title:  fmt.Sprintf("%s handbook %d", topic, i),
			Source: fmt.Sprintf("https://intranet.example.com/%s/%d", topic, i),
			Metadata: map[string]string{
				"topic":    topic,
				"revision": fmt.Sprintf("%d", rng.Intn(20)+1),
			},
		}

		var content string
		for j := 0; j < *numChunks; j++ {
			text := paragraph(rng)
			content += text + "\n\n"
			c := chunk{
				Ordinal:    j,
				Content:    text,
				TokenCount: len(text) / 4,
			}
			if *dims > 0 {
				c.Embedding = randomVector(rng, *dims)
			}
			doc.Chunks = append(doc.Chunks, c)
		}
		doc.Content = content

		path := filepath.Join(*outputDir, doc.ID+".json")
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "marshal %s: %v\n", doc.ID, err)
			os.Exit(1)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", path, err)
			os.Exit(1)
		}
	}

	fmt.Printf("generated %d documents in %s\n", *numDocs, *outputDir)
}

func paragraph(rng *rand.Rand) string {
	n := rng.Intn(4) + 3
	var out string
	for i := 0; i < n; i++ {
		if i > 0 {
			out += " "
		}
		out += sentences[rng.Intn(len(sentences))]
	}
	return out
}

func randomVector(rng *rand.Rand, dims int) []float32 {
	v := make([]float32, dims)
	for i := range v {
		v[i] = rng.Float32()*2 - 1
	}
	return v
}
