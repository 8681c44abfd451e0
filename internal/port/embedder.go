package port

import "context"

// EmbeddingModel is a provider of dense text vectors. Implementations may
// hold heavy state (a client, a loaded model); Load is called once before
// the first Embed.
type EmbeddingModel interface {
	// Load prepares the model. An error here means the model is unusable.
	Load(ctx context.Context) error

	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
