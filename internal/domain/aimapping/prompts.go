package aimapping

import (
	"fmt"
	"strings"
)

func mappingPrompt(concept, system string) string {
	return fmt.Sprintf(`You are an expert medical terminology specialist with deep knowledge of traditional medicine systems and ICD-11.

Task: Map the following %[1]s concept to appropriate ICD-11 codes.

Input Concept: %[2]q
Source System: %[1]s
Target System: ICD-11

Provide up to 3 mapping suggestions, best first, as a JSON array:
[
  {
    "icd11Code": "ICD-11 code",
    "icd11Display": "ICD-11 title",
    "relationship": "equivalent|related-to|source-is-narrower-than-target|source-is-broader-than-target",
    "confidenceScore": 0.85,
    "comment": "Brief explanation of the mapping rationale",
    "clinicalContext": "Clinical context where this mapping applies"
  }
]

Use real ICD-11 MMS codes and realistic confidence scores between 0 and 1.
Return only valid JSON, no other text.`, system, concept)
}

func translationPrompt(term, sourceLang, targetLang, system string) string {
	return fmt.Sprintf(`Translate the %s medicine concept %q from %s to %s.
Consider cultural and medical context. Provide a translation confidence score (0-1) and cultural context notes.

Return JSON:
{
  "translatedTerm": "translated concept",
  "confidence": 0.85,
  "culturalContext": "explanation of cultural/medical context"
}`, system, term, sourceLang, targetLang)
}

func symptomsPrompt(symptoms []string, language, system string) string {
	return fmt.Sprintf(`Analyze these symptoms from a %s medicine perspective: %s.
Suggest possible conditions and recommendations in %s.

Return JSON:
{
  "suggestedConditions": [
    {"code": "condition_code", "display": "Condition Name", "severity": "mild|moderate|severe", "explanation": "explanation"}
  ],
  "recommendations": "general recommendations"
}`, system, strings.Join(symptoms, ", "), language)
}

func similarPrompt(query, system string, limit int) string {
	return fmt.Sprintf(`Find %d %s medicine concepts similar to %q.

Return a JSON array:
[
  {"code": "concept_code", "display": "Concept Name", "definition": "concept definition", "system": %q}
]`, limit, system, query, system)
}
