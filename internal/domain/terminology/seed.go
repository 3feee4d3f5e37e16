package terminology

import "context"

func namaste(system, code, display, definition string, props map[string]interface{}) *Concept {
	return &Concept{System: system, Code: code, Display: display, Definition: definition, Properties: props, Status: StatusActive}
}

func icd11(code, display, definition, category, parent string) *Concept {
	return &Concept{
		System:     SystemICD11,
		Code:       code,
		Display:    display,
		Definition: definition,
		Properties: map[string]interface{}{"category": category, "parentCode": parent},
		Status:     StatusActive,
	}
}

// SeedConcepts returns the reference concept set: twelve NAMASTE concepts
// across the three traditional systems and the ICD-11 codes they map to.
// Each call returns fresh values.
func SeedConcepts() []*Concept {
	return []*Concept{
		namaste(SystemAyurveda, "AY001", "Vata Dosha Imbalance", "Imbalance in Vata dosha causing various symptoms", map[string]interface{}{"dosha": "vata", "severity": "moderate"}),
		namaste(SystemAyurveda, "AY002", "Pitta Dosha Excess", "Excessive Pitta dosha manifestation", map[string]interface{}{"dosha": "pitta", "severity": "high"}),
		namaste(SystemAyurveda, "AY003", "Kapha Stagnation", "Stagnant Kapha dosha condition", map[string]interface{}{"dosha": "kapha", "severity": "mild"}),
		namaste(SystemAyurveda, "AY004", "Agni Mandya", "Digestive fire weakness", map[string]interface{}{"dosha": "all", "digestive": "weak"}),
		namaste(SystemAyurveda, "AY005", "Ama Accumulation", "Toxic accumulation in body", map[string]interface{}{"toxins": "high", "cleansing": "needed"}),
		namaste(SystemSiddha, "SI001", "Vatha Kalam Disorder", "Siddha medicine Vatha humor imbalance", map[string]interface{}{"humor": "vatha", "manifestation": "chronic"}),
		namaste(SystemSiddha, "SI002", "Pitham Excess Syndrome", "Excessive Pitham humor in Siddha system", map[string]interface{}{"humor": "pitham", "manifestation": "acute"}),
		namaste(SystemSiddha, "SI003", "Kabam Stagnation", "Kabam humor stagnation condition", map[string]interface{}{"humor": "kabam", "flow": "blocked"}),
		namaste(SystemUnani, "UN001", "Sanguine Temperament Disorder", "Hot and moist temperament imbalance", map[string]interface{}{"temperament": "sanguine", "quality": "hot_moist"}),
		namaste(SystemUnani, "UN002", "Melancholic Constitution Issue", "Cold and dry temperament problem", map[string]interface{}{"temperament": "melancholic", "quality": "cold_dry"}),
		namaste(SystemUnani, "UN003", "Phlegmatic Imbalance", "Cold and moist temperament excess", map[string]interface{}{"temperament": "phlegmatic", "quality": "cold_moist"}),
		namaste(SystemUnani, "UN004", "Choleric Heat Syndrome", "Hot and dry temperament dominance", map[string]interface{}{"temperament": "choleric", "quality": "hot_dry"}),

		icd11("MG30.0", "Essential hypertension", "High blood pressure with no identifiable cause", "Cardiovascular", "MG30"),
		icd11("MG31.1", "Type 2 diabetes mellitus", "Non-insulin dependent diabetes", "Endocrine", "MG31"),
		icd11("MD90.0", "Anxiety disorders", "Excessive worry and fear responses", "Mental Health", "MD90"),
		icd11("MF25.2", "Chronic gastritis", "Long-term inflammation of stomach lining", "Digestive", "MF25"),
		icd11("ME84.1", "Chronic fatigue syndrome", "Persistent unexplained fatigue", "General", "ME84"),
		icd11("MF40.1", "Functional dyspepsia", "Digestive discomfort without clear cause", "Digestive", "MF40"),
		icd11("MG24.0", "Sleep disorders", "Disrupted sleep patterns", "Neurological", "MG24"),
		icd11("MF50.3", "Irritable bowel syndrome", "Functional bowel disorder", "Digestive", "MF50"),
	}
}

// Seed loads SeedConcepts into repo.
func Seed(ctx context.Context, repo ConceptRepository) (int, error) {
	return repo.BulkInsert(ctx, SeedConcepts())
}
