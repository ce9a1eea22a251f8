package fetch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forest-guardian/geotile-dataset/internal/planner"
	"github.com/forest-guardian/geotile-dataset/internal/sentinel"
	"github.com/google/uuid"
)

const MetadataFile = "metadata.json"

// Metadata describes a dataset directory. It is written before the first
// tile so that a partial download can still be identified.
type Metadata struct {
	PlanID     string    `json:"plan_id"`
	CreatedAt  time.Time `json:"created_at"`
	Collection string    `json:"collection"`
	Bands      []string  `json:"bands"`
	Precision  int       `json:"precision"`
	Requests   int       `json:"requests"`
	Background int       `json:"background"`
	POI        int       `json:"poi"`
	Cells      int       `json:"cells"`
	Summary    *Summary  `json:"summary,omitempty"`
}

func NewMetadata(collection sentinel.Collection, precision int, requests []planner.Request) Metadata {
	s := planner.Summarize(requests)
	return Metadata{
		PlanID:     uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
		Collection: collection.Name,
		Bands:      collection.Bands,
		Precision:  precision,
		Requests:   len(requests),
		Background: s.Background,
		POI:        s.POI,
		Cells:      s.Cells,
	}
}

func WriteMetadata(outDir string, m Metadata) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return writeFile(filepath.Join(outDir, MetadataFile), data)
}

func ReadMetadata(outDir string) (Metadata, error) {
	var m Metadata
	data, err := os.ReadFile(filepath.Join(outDir, MetadataFile))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("failed to parse %s: %w", MetadataFile, err)
	}
	return m, nil
}
