package conceptmap

import (
	"context"
	"fmt"

	"github.com/namaste/namaste/internal/domain/terminology"
)

// SeedMapping is a curated NAMASTE to ICD-11 mapping identified by codes.
type SeedMapping struct {
	SourceSystem string
	SourceCode   string
	TargetCode   string
	Equivalence  Equivalence
	Confidence   float64
	Comment      string
}

// SeedMappings returns the curated reference mappings.
func SeedMappings() []SeedMapping {
	return []SeedMapping{
		{terminology.SystemAyurveda, "AY001", "MD90.0", EquivalenceRelated, 0.75, "Vata imbalance often correlates with anxiety"},
		{terminology.SystemAyurveda, "AY002", "MG30.0", EquivalenceWider, 0.68, "Pitta excess can manifest as hypertension"},
		{terminology.SystemAyurveda, "AY003", "ME84.1", EquivalenceEquivalent, 0.82, "Kapha stagnation similar to chronic fatigue"},
		{terminology.SystemAyurveda, "AY004", "MF25.2", EquivalenceRelated, 0.73, "Agni Mandya relates to digestive issues"},
		{terminology.SystemAyurveda, "AY005", "MF40.1", EquivalenceNarrower, 0.67, "Ama can cause various digestive problems"},
		{terminology.SystemSiddha, "SI001", "MD90.0", EquivalenceRelated, 0.70, "Vatha disorders often include anxiety symptoms"},
		{terminology.SystemSiddha, "SI002", "MG30.0", EquivalenceRelated, 0.72, "Pitham excess can lead to cardiovascular issues"},
		{terminology.SystemSiddha, "SI003", "MF50.3", EquivalenceEquivalent, 0.78, "Kabam stagnation similar to IBS"},
		{terminology.SystemUnani, "UN001", "MG30.0", EquivalenceNarrower, 0.65, "Sanguine temperament encompasses various cardiovascular issues"},
		{terminology.SystemUnani, "UN002", "ME84.1", EquivalenceRelated, 0.69, "Melancholic constitution often presents with fatigue"},
		{terminology.SystemUnani, "UN003", "MG24.0", EquivalenceRelated, 0.71, "Phlegmatic imbalance affects sleep patterns"},
		{terminology.SystemUnani, "UN004", "MG31.1", EquivalenceRelated, 0.66, "Choleric heat can contribute to metabolic disorders"},
	}
}

// Seed resolves each seed mapping's concepts and upserts it as an active
// curated mapping. Both concepts must already exist.
func Seed(ctx context.Context, concepts terminology.ConceptRepository, store MappingStore) (int, error) {
	n := 0
	for _, sm := range SeedMappings() {
		src, err := concepts.FindByCode(ctx, sm.SourceCode, sm.SourceSystem)
		if err != nil {
			return n, fmt.Errorf("seed mapping source: %w", err)
		}
		tgt, err := concepts.FindByCode(ctx, sm.TargetCode, terminology.SystemICD11)
		if err != nil {
			return n, fmt.Errorf("seed mapping target: %w", err)
		}
		m := &Mapping{
			SourceConceptID: src.ID,
			TargetConceptID: tgt.ID,
			SourceSystem:    src.System,
			SourceCode:      src.Code,
			TargetSystem:    tgt.System,
			TargetCode:      tgt.Code,
			TargetDisplay:   tgt.Display,
			Equivalence:     sm.Equivalence,
			Confidence:      sm.Confidence,
			Comment:         sm.Comment,
			Status:          StatusActive,
			Origin:          OriginCurated,
		}
		if err := store.Upsert(ctx, m); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
