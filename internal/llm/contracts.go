package llm

import "context"

// Generator sends one prompt to the inference endpoint and returns the raw
// model text. jsonMode asks the endpoint to constrain output to JSON.
// Failures are transport failures (timeout, connection, non-2xx).
type Generator interface {
	Generate(ctx context.Context, prompt string, jsonMode bool) (string, error)
}

// Classification is the normalized output of the classification stage.
type Classification struct {
	BillType    string `json:"bill_type"`
	BillSubtype string `json:"bill_subtype"`
}
